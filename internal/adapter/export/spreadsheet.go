package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/fixora/triage/internal/domain"
)

// DefaultSpreadsheetPath is the fixed export filename used when none is configured
const DefaultSpreadsheetPath = "cleaned_data_username_resolved.xlsx"

const sheetName = "tickets"

// SpreadsheetExporter writes the normalized ticket table to one xlsx file,
// replacing it on every call
type SpreadsheetExporter struct {
	path string
}

// NewSpreadsheetExporter creates an exporter for path
func NewSpreadsheetExporter(path string) *SpreadsheetExporter {
	if path == "" {
		path = DefaultSpreadsheetPath
	}
	return &SpreadsheetExporter{path: path}
}

// Path returns the export location
func (e *SpreadsheetExporter) Path() string {
	return e.path
}

// Export writes table to the configured path
func (e *SpreadsheetExporter) Export(ctx context.Context, table *domain.TicketTable) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return "", fmt.Errorf("rename sheet: %w", err)
	}

	header := make([]interface{}, len(table.Columns))
	for i, c := range table.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}

	for i, rec := range table.Records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return "", err
		}
		row := cellValues(rec, table.Fields)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return "", fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	dir := filepath.Dir(e.path)
	tmp, err := os.CreateTemp(dir, ".export-*.xlsx")
	if err != nil {
		return "", fmt.Errorf("create temp export: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write export: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close export: %w", err)
	}
	if err := os.Rename(tmp.Name(), e.path); err != nil {
		return "", fmt.Errorf("replace %s: %w", e.path, err)
	}

	return e.path, nil
}

// cellValues leaves missing values as empty cells
func cellValues(rec domain.TicketRecord, fields []domain.Field) []interface{} {
	row := make([]interface{}, len(fields))
	for i, f := range fields {
		switch f {
		case domain.FieldUsername:
			if v, ok := rec.Username.Get(); ok {
				row[i] = v
			}
		case domain.FieldResolved:
			if v, ok := rec.Resolved.Get(); ok {
				row[i] = v
			}
		default:
			if v, ok := rec.Time(f).Get(); ok {
				row[i] = v
			}
		}
	}
	return row
}
