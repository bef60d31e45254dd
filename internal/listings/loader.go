// Package listings loads residential listing data from CSV, JSON, and
// XLSX files into the shared record shape. Column mapping is header driven
// and tolerant of common aliases.
package listings

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/citykit/dmur-cli/internal/model"
)

// Options configures loading.
type Options struct {
	// SkipInvalid drops rows that fail validation instead of failing the
	// whole load. Rows with unparseable coordinates are always an error.
	SkipInvalid bool
}

// Load reads a listings file, dispatching on extension. Supported formats
// are .csv, .json, and .xlsx.
func Load(ctx context.Context, path string, opts Options) ([]model.ListingRecord, error) {
	var (
		recs []model.ListingRecord
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		recs, err = loadCSV(ctx, path)
	case ".json":
		recs, err = loadJSON(path)
	case ".xlsx":
		recs, err = loadXLSX(ctx, path)
	default:
		return nil, model.DataErrorf("listings", "unsupported listings format %q", ext)
	}
	if err != nil {
		return nil, err
	}

	valid, issues := Validate(recs)
	if len(issues) > 0 {
		if !opts.SkipInvalid {
			return nil, model.DataErrorf("listings", "%d of %d rows invalid, first: %s",
				len(issues), len(recs), issues[0])
		}
		zap.L().Warn("dropping invalid listing rows",
			zap.Int("dropped", len(issues)),
			zap.Int("kept", len(valid)),
			zap.String("first_issue", issues[0]),
		)
	}
	if len(valid) == 0 {
		return nil, model.DataErrorf("listings", "no valid listings in %s", path)
	}
	zap.L().Info("listings loaded", zap.String("path", path), zap.Int("count", len(valid)))
	return valid, nil
}

// columnAliases maps canonical field names to accepted header spellings.
var columnAliases = map[string][]string{
	"lat":          {"lat", "latitude"},
	"lon":          {"lon", "lng", "long", "longitude"},
	"bedrooms":     {"bedrooms", "beds", "bedroom_count"},
	"area_sqm":     {"area_sqm", "area", "sqm", "size_sqm"},
	"price":        {"price", "rent", "list_price"},
	"listing_type": {"listing_type", "type"},
}

type columnMap map[string]int

func mapHeader(header []string) (columnMap, error) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		byName[strings.ToLower(strings.TrimSpace(h))] = i
	}

	cm := make(columnMap)
	for canon, aliases := range columnAliases {
		for _, a := range aliases {
			if i, ok := byName[a]; ok {
				cm[canon] = i
				break
			}
		}
	}
	if _, ok := cm["lat"]; !ok {
		return nil, model.DataErrorf("listings", "no latitude column in header %v", header)
	}
	if _, ok := cm["lon"]; !ok {
		return nil, model.DataErrorf("listings", "no longitude column in header %v", header)
	}
	return cm, nil
}

func (cm columnMap) field(row []string, canon string) string {
	i, ok := cm[canon]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// record converts one data row. Missing optional fields default to zero.
func (cm columnMap) record(row []string, rowNum int) (model.ListingRecord, error) {
	var rec model.ListingRecord
	var err error

	if rec.Lat, err = strconv.ParseFloat(cm.field(row, "lat"), 64); err != nil {
		return rec, model.DataErrorf("listings", "row %d: bad latitude %q", rowNum, cm.field(row, "lat"))
	}
	if rec.Lon, err = strconv.ParseFloat(cm.field(row, "lon"), 64); err != nil {
		return rec, model.DataErrorf("listings", "row %d: bad longitude %q", rowNum, cm.field(row, "lon"))
	}
	if s := cm.field(row, "bedrooms"); s != "" {
		if rec.Bedrooms, err = strconv.Atoi(s); err != nil {
			// Some feeds export bedrooms as "2.0".
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil {
				return rec, model.DataErrorf("listings", "row %d: bad bedrooms %q", rowNum, s)
			}
			rec.Bedrooms = int(f)
		}
	}
	if s := cm.field(row, "area_sqm"); s != "" {
		if rec.AreaSqm, err = strconv.ParseFloat(s, 64); err != nil {
			return rec, model.DataErrorf("listings", "row %d: bad area %q", rowNum, s)
		}
	}
	if s := cm.field(row, "price"); s != "" {
		if rec.Price, err = strconv.ParseFloat(s, 64); err != nil {
			return rec, model.DataErrorf("listings", "row %d: bad price %q", rowNum, s)
		}
	}
	if s := strings.ToLower(cm.field(row, "listing_type")); s != "" {
		rec.Type = model.ListingType(s)
	}
	return rec, nil
}
