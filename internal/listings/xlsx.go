package listings

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/citykit/dmur-cli/internal/model"
)

// loadXLSX reads the first sheet, treating row one as the header.
func loadXLSX(ctx context.Context, path string) ([]model.ListingRecord, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "listings: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, model.DataErrorf("listings", "xlsx %s has no sheets", path)
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, model.DataErrorf("listings", "xlsx sheet %q is empty", sheet.Name)
	}

	cm, err := mapHeader(rowToStrings(sheet.Rows[0]))
	if err != nil {
		return nil, err
	}

	var recs []model.ListingRecord
	for i, row := range sheet.Rows[1:] {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "listings: context cancelled")
		}
		cells := rowToStrings(row)
		if empty(cells) {
			continue
		}
		rec, err := cm.record(cells, i+2)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func rowToStrings(row *xlsx.Row) []string {
	out := make([]string, len(row.Cells))
	for i, c := range row.Cells {
		out[i] = c.String()
	}
	return out
}

func empty(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
