package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// Row is one parsed CSV row keyed by trimmed header name.
type Row map[string]string

// RowError describes a single malformed row that was skipped.
type RowError struct {
	Line   int    `json:"line"`
	Reason string `json:"reason"`
}

// RowResult carries the outcome of reading a delimited file. Per-row
// failures are collected in Errors alongside whatever rows did parse;
// Err is set only when the source itself could not be read.
type RowResult struct {
	Rows   []Row
	Errors []RowError
	Err    error
}

// progressEvery is how many rows pass between progress callbacks.
const progressEvery = 250

// countingReader tracks bytes consumed so progress can be reported as a
// fraction of the source size.
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

// ReadRows streams header-keyed rows out of r. Quoted fields may contain
// the delimiter, doubled quotes and embedded newlines. onProgress is
// invoked incrementally with a 0..1 fraction (size <= 0 disables the
// fractional signal; a final 1.0 is still emitted). ReadRows never
// panics past its boundary: malformed rows are skipped and reported in
// the result's error list.
func ReadRows(r io.Reader, size int64, onProgress func(float64)) RowResult {
	cr := &countingReader{r: r}
	cs := csv.NewReader(cr)
	cs.FieldsPerRecord = -1
	cs.TrimLeadingSpace = true

	report := func(f float64) {
		if onProgress == nil {
			return
		}
		if f < 0 {
			f = 0
		}
		if f > 1 {
			f = 1
		}
		onProgress(f)
	}

	header, err := cs.Read()
	if err != nil {
		if err == io.EOF {
			return RowResult{Err: fmt.Errorf("empty file")}
		}
		return RowResult{Err: fmt.Errorf("reading header: %w", err)}
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	var res RowResult
	line := 1
	for {
		record, err := cs.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			res.Errors = append(res.Errors, RowError{Line: line, Reason: err.Error()})
			continue
		}
		row := make(Row, len(header))
		for i, name := range header {
			if name == "" || i >= len(record) {
				continue
			}
			row[name] = strings.TrimSpace(record[i])
		}
		if len(row) == 0 {
			continue
		}
		res.Rows = append(res.Rows, row)

		if len(res.Rows)%progressEvery == 0 && size > 0 {
			report(float64(cr.n) / float64(size))
		}
	}
	report(1)
	return res
}
