// Package dataset provides in-memory row datasets, toy data generators and
// deterministic split utilities for training sequence models.
package dataset

import (
	"github.com/pkg/errors"

	"github.com/dkhr/goseq/encoders"
)

// Row is a single training example: column name to value. Raw columns hold
// strings; encoded columns hold []int64 index sequences.
type Row map[string]interface{}

// String returns the raw string value of a column.
func (r Row) String(key string) (string, error) {
	v, ok := r[key]
	if !ok {
		return "", errors.Errorf("row has no column %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", errors.Errorf("column %q holds %T, not string", key, v)
	}
	return s, nil
}

// Seq returns the encoded index sequence of a column.
func (r Row) Seq(key string) ([]int64, error) {
	v, ok := r[key]
	if !ok {
		return nil, errors.Errorf("row has no column %q", key)
	}
	seq, ok := v.([]int64)
	if !ok {
		return nil, errors.Errorf("column %q holds %T, not []int64", key, v)
	}
	return seq, nil
}

// Dataset is an ordered sequence of rows. Rows are mutated in place when a
// column is encoded; the row order and count never change.
type Dataset struct {
	Rows []Row
}

// New wraps rows in a Dataset.
func New(rows []Row) *Dataset {
	return &Dataset{Rows: rows}
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.Rows) }

// Row returns the i-th row.
func (d *Dataset) Row(i int) Row { return d.Rows[i] }

// Column collects the raw string values of one column across all rows.
func (d *Dataset) Column(key string) ([]string, error) {
	out := make([]string, len(d.Rows))
	for i, row := range d.Rows {
		s, err := row.String(key)
		if err != nil {
			return nil, errors.Wrapf(err, "row %d", i)
		}
		out[i] = s
	}
	return out, nil
}

// EncodeColumn replaces the raw string value of a column with its encoded
// index sequence in every row.
func (d *Dataset) EncodeColumn(key string, enc encoders.Encoder) error {
	for i, row := range d.Rows {
		s, err := row.String(key)
		if err != nil {
			return errors.Wrapf(err, "row %d", i)
		}
		row[key] = enc.Encode(s)
	}
	return nil
}
