package listings

import (
	"context"
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/citykit/dmur-cli/internal/model"
)

func loadCSV(ctx context.Context, path string) ([]model.ListingRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "listings: open csv")
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.TrimLeadingSpace = true
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, eris.Wrap(err, "listings: read csv header")
	}
	cm, err := mapHeader(header)
	if err != nil {
		return nil, err
	}

	var recs []model.ListingRecord
	for rowNum := 2; ; rowNum++ {
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "listings: context cancelled")
		}
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "listings: read csv row %d", rowNum)
		}
		rec, err := cm.record(row, rowNum)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}
