package listings

import (
	"fmt"

	"github.com/citykit/dmur-cli/internal/model"
)

// Validate checks each record's ranges and splits the input into valid
// records and human-readable issue descriptions for the rest.
func Validate(recs []model.ListingRecord) ([]model.ListingRecord, []string) {
	valid := make([]model.ListingRecord, 0, len(recs))
	var issues []string
	for i, r := range recs {
		if msg := check(r); msg != "" {
			issues = append(issues, fmt.Sprintf("row %d: %s", i+1, msg))
			continue
		}
		valid = append(valid, r)
	}
	return valid, issues
}

func check(r model.ListingRecord) string {
	switch {
	case r.Lat < -90 || r.Lat > 90:
		return fmt.Sprintf("latitude %v out of range", r.Lat)
	case r.Lon < -180 || r.Lon > 180:
		return fmt.Sprintf("longitude %v out of range", r.Lon)
	case r.Bedrooms < 0:
		return fmt.Sprintf("negative bedrooms %d", r.Bedrooms)
	case r.AreaSqm <= 0:
		return fmt.Sprintf("non-positive area %v", r.AreaSqm)
	case r.Price <= 0:
		return fmt.Sprintf("non-positive price %v", r.Price)
	case r.Type != "" && r.Type != model.ListingRental && r.Type != model.ListingSale:
		return fmt.Sprintf("unknown listing type %q", r.Type)
	}
	return ""
}
