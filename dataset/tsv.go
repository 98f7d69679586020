package dataset

import (
	"encoding/csv"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// LoadTSV reads a tab-separated file with a header row into a Dataset.
// Column names come from the header; every field is loaded as a raw string.
func LoadTSV(path string) (_ *Dataset, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open tsv")
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "read tsv %q", path)
	}
	if len(records) == 0 {
		return nil, errors.Errorf("tsv %q has no header row", path)
	}

	header := records[0]
	rows := make([]Row, 0, len(records)-1)
	for i, record := range records[1:] {
		if len(record) != len(header) {
			return nil, errors.Errorf("tsv %q row %d has %d fields, header has %d",
				path, i+1, len(record), len(header))
		}
		row := make(Row, len(header))
		for j, name := range header {
			row[name] = record[j]
		}
		rows = append(rows, row)
	}
	return New(rows), nil
}
