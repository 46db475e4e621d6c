package normal

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/gocarina/gocsv"

	"github.com/rickgao/ivengine/internal/model"
)

//go:embed data/cdf_table.csv
var defaultTableCSV []byte

// Default returns a fresh copy of the built-in table (z from 0 to 4.000 in
// steps of 0.001).
func Default() *Table {
	t, err := LoadCSV(bytes.NewReader(defaultTableCSV))
	if err != nil {
		panic(fmt.Sprintf("normal: built-in table is invalid: %v", err))
	}
	return t
}

// LoadCSV reads a table with a "bucket,probability" header.
func LoadCSV(r io.Reader) (*Table, error) {
	var rows []model.DataPoint
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("parse probability table csv: %w", err)
	}
	return NewTable(rows)
}

// LoadFile reads a CSV table from path.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open probability table: %w", err)
	}
	defer f.Close()

	return LoadCSV(f)
}

// Apply writes points in bucket order through SetDataPoint.
// It stops at the first rejected point.
func (t *Table) Apply(points []model.DataPoint) (int, error) {
	sorted := make([]model.DataPoint, len(points))
	copy(sorted, points)
	sortPoints(sorted)

	for i, p := range sorted {
		if _, err := t.SetDataPoint(p.Bucket, p.Probability); err != nil {
			return i, fmt.Errorf("apply bucket %d: %w", p.Bucket, err)
		}
	}
	return len(sorted), nil
}
