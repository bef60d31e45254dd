package overpass

import (
	"fmt"
	"strings"

	"github.com/citykit/dmur-cli/internal/model"
)

// commercialAmenities are the amenity values counted as commercial
// activity. Civic and transport amenities are deliberately absent.
var commercialAmenities = []string{
	"restaurant", "cafe", "bar", "pub", "fast_food", "food_court",
	"ice_cream", "biergarten", "bank", "bureau_de_change", "pharmacy",
	"marketplace", "cinema", "theatre", "nightclub", "casino",
	"veterinary", "dentist", "doctors", "clinic",
}

// QuerySpec names the place to fetch, either by administrative area or by
// explicit bounding box (min_lat, min_lon, max_lat, max_lon).
type QuerySpec struct {
	City    string
	State   string
	Country string
	BBox    []float64
}

// Place is the human-readable place label for logs and errors.
func (s QuerySpec) Place() string {
	parts := []string{}
	for _, p := range []string{s.City, s.State, s.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 && len(s.BBox) == 4 {
		return fmt.Sprintf("bbox(%g,%g,%g,%g)", s.BBox[0], s.BBox[1], s.BBox[2], s.BBox[3])
	}
	return strings.Join(parts, ", ")
}

// Build renders the Overpass QL query for the requested area.
func (s QuerySpec) Build() (string, error) {
	var filter string
	switch {
	case len(s.BBox) == 4:
		filter = fmt.Sprintf("(%g,%g,%g,%g)", s.BBox[0], s.BBox[1], s.BBox[2], s.BBox[3])
	case len(s.BBox) != 0:
		return "", model.ConfigErrorf("bbox", "need 4 values, got %d", len(s.BBox))
	case s.City != "":
		filter = "(area.search)"
	default:
		return "", model.ConfigErrorf("city", "either a city name or a bbox is required")
	}

	var b strings.Builder
	b.WriteString("[out:json][timeout:180];\n")
	if filter == "(area.search)" {
		fmt.Fprintf(&b, "area[\"name\"=%q][\"boundary\"=\"administrative\"]->.search;\n", s.City)
	}

	b.WriteString("(\n")
	amenity := strings.Join(commercialAmenities, "|")
	for _, sel := range []string{
		`["shop"]`,
		fmt.Sprintf(`["amenity"~"^(%s)$"]`, amenity),
		`["office"]`,
		`["tourism"~"^(hotel|hostel|guest_house|motel|museum|gallery)$"]`,
		`["craft"]`,
		`["healthcare"]`,
	} {
		fmt.Fprintf(&b, "  node%s%s;\n", sel, filter)
		fmt.Fprintf(&b, "  way%s%s;\n", sel, filter)
	}
	b.WriteString(");\n")
	b.WriteString("out body geom;\n")
	return b.String(), nil
}
