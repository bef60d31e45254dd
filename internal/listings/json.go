package listings

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/citykit/dmur-cli/internal/model"
)

// loadJSON accepts either a bare array of records or an object with a
// "listings" array.
func loadJSON(path string) ([]model.ListingRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "listings: read json")
	}

	var recs []model.ListingRecord
	if err := json.Unmarshal(raw, &recs); err == nil {
		return recs, nil
	}

	var wrapped struct {
		Listings []model.ListingRecord `json:"listings"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, eris.Wrap(err, "listings: parse json")
	}
	if wrapped.Listings == nil {
		return nil, model.DataErrorf("listings", "json object has no listings array")
	}
	return wrapped.Listings, nil
}
