package overpass

import (
	"strings"

	"github.com/citykit/dmur-cli/internal/model"
)

// Classification is the normalized category assignment for one element.
type Classification struct {
	Category model.Category
	Subtype  string
	Status   model.Status
}

// classifyOrder fixes tag precedence when an element carries several
// category tags. A hotel with a ground-floor shop tag counts as a shop.
var classifyOrder = []struct {
	tag      string
	category model.Category
}{
	{"shop", model.CategoryShop},
	{"amenity", model.CategoryAmenity},
	{"office", model.CategoryOffice},
	{"tourism", model.CategoryTourism},
	{"craft", model.CategoryCraft},
	{"healthcare", model.CategoryHealthcare},
	{"leisure", model.CategoryOther},
	{"building", model.CategoryOther},
}

// lifecyclePrefixes mark elements that no longer operate. A prefixed
// category tag, like disused:shop, keeps the element but flags its status.
var lifecyclePrefixes = []struct {
	prefix string
	status model.Status
}{
	{"disused:", model.StatusDisused},
	{"abandoned:", model.StatusAbandoned},
	{"demolished:", model.StatusDemolished},
	{"was:", model.StatusAbandoned},
}

// Classify maps OSM tags to a category, subtype, and operating status.
// Elements with no recognizable category tag are rejected.
func Classify(tags map[string]string) (Classification, bool) {
	for _, co := range classifyOrder {
		if v, ok := tags[co.tag]; ok && v != "" && v != "no" {
			return Classification{
				Category: co.category,
				Subtype:  v,
				Status:   statusOf(tags),
			}, true
		}
	}
	// Lifecycle-prefixed tags still identify a former business location.
	for _, co := range classifyOrder {
		for _, lp := range lifecyclePrefixes {
			if v, ok := tags[lp.prefix+co.tag]; ok && v != "" {
				return Classification{
					Category: co.category,
					Subtype:  v,
					Status:   lp.status,
				}, true
			}
		}
	}
	return Classification{}, false
}

func statusOf(tags map[string]string) model.Status {
	if v := tags["disused"]; v == "yes" {
		return model.StatusDisused
	}
	if v := tags["abandoned"]; v == "yes" {
		return model.StatusAbandoned
	}
	if v := strings.ToLower(tags["vacant"]); v == "yes" {
		return model.StatusVacant
	}
	return model.StatusActive
}
