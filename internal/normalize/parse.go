package normalize

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// RawTable is a parsed CSV: a header and rows of the same width
type RawTable struct {
	Header  []string
	Rows    [][]string
	Dropped int
}

// Width returns the number of columns
func (t *RawTable) Width() int {
	return len(t.Header)
}

// ParseCSV reads comma-delimited, double-quoted text with a header row.
// A leading UTF-8 byte-order mark is ignored. Blank lines are skipped. Rows
// whose field count differs from the header, or that contain bare or
// unbalanced quotes, are dropped and counted.
func ParseCSV(raw string) (*RawTable, error) {
	raw = strings.TrimPrefix(raw, "\ufeff")
	r := csv.NewReader(strings.NewReader(raw))
	r.Comma = ','
	r.FieldsPerRecord = 0

	table := &RawTable{}
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}

		if table.Header == nil {
			if err != nil {
				// A header that fails to parse leaves nothing to check columns against
				return nil, err
			}
			table.Header = record
			continue
		}

		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				table.Dropped++
				continue
			}
			return nil, err
		}
		table.Rows = append(table.Rows, record)
	}

	return table, nil
}

// TruncateExtraColumn drops the last column when the table is exactly one
// column wider than width. Upstream exports occasionally append a trailing
// column; any other mismatch is left alone. It returns the number of
// columns removed.
func TruncateExtraColumn(t *RawTable, width int) int {
	if width <= 0 || t.Width() != width+1 {
		return 0
	}

	t.Header = t.Header[:width]
	for i, row := range t.Rows {
		t.Rows[i] = row[:width]
	}
	return 1
}
