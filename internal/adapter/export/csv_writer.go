// Package export writes summary and ticket tables to CSV and spreadsheet files.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"

	"github.com/fixora/triage/internal/domain"
)

// WriteCSV writes a summary table as UTF-8, comma-delimited CSV with a header row
func WriteCSV(w io.Writer, table domain.Tabular) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Header()); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	if err := cw.WriteAll(table.Records()); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}
	return nil
}

// CSVBytes renders a summary table to memory
func CSVBytes(table domain.Tabular) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteCSV(&buf, table); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
