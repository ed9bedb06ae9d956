package pipeline

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
)

// ErrParse marks an upload that is not parseable tabular data. The whole
// import aborts and nothing is inserted.
var ErrParse = errors.New("upload is not parseable tabular data")

// Table is a parsed upload: a header row plus data rows. Column access is by
// header name; missing cells read as empty strings.
type Table struct {
	Headers []string
	Rows    [][]string

	index map[string]int
}

// ParseCSV parses raw bytes as a CSV table. The first record is the header.
// Any malformation (ragged rows, bad quoting, no header) fails the whole
// parse with ErrParse.
func ParseCSV(data []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(data))

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrParse)
	}

	t := &Table{
		Headers: records[0],
		Rows:    records[1:],
		index:   make(map[string]int, len(records[0])),
	}
	for i, h := range t.Headers {
		t.index[h] = i
	}
	return t, nil
}

// HeaderSet returns the headers as a membership set.
func (t *Table) HeaderSet() map[string]bool {
	set := make(map[string]bool, len(t.Headers))
	for _, h := range t.Headers {
		set[h] = true
	}
	return set
}

// Value returns the named column's value in row, or "" when the column does
// not exist or the row is short.
func (t *Table) Value(row []string, column string) string {
	i, ok := t.index[column]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}
