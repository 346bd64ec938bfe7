// Package normalize turns raw helpdesk CSV exports into typed ticket tables.
package normalize

import (
	"fmt"
	"time"

	"github.com/fixora/triage/internal/domain"
)

// CanonicalWidth is the documented column count of the helpdesk export
const CanonicalWidth = 23

var fieldOrder = []domain.Field{
	domain.FieldUsername,
	domain.FieldResolved,
	domain.FieldReceivedAt,
	domain.FieldFirstClosedAt,
	domain.FieldCreatedAt,
}

// Schema describes one export source: its documented width and the exact
// header name of every field it must carry.
type Schema struct {
	Name    string
	Width   int
	Columns map[domain.Field]string
}

// Fields returns the schema's fields in a stable order
func (s Schema) Fields() []domain.Field {
	fields := make([]domain.Field, 0, len(s.Columns))
	for _, f := range fieldOrder {
		if _, ok := s.Columns[f]; ok {
			fields = append(fields, f)
		}
	}
	return fields
}

// Headers returns the required header names in field order
func (s Schema) Headers() []string {
	fields := s.Fields()
	headers := make([]string, 0, len(fields))
	for _, f := range fields {
		headers = append(headers, s.Columns[f])
	}
	return headers
}

// Normalizer parses, checks and coerces CSV exports
type Normalizer struct {
	loc *time.Location
}

// New creates a normalizer that reads naive datetimes in loc
func New(loc *time.Location) *Normalizer {
	if loc == nil {
		loc = time.Local
	}
	return &Normalizer{loc: loc}
}

// Normalize parses raw CSV and returns the schema's columns coerced to their
// types. A missing required column fails with *domain.SchemaError; a bad cell
// only becomes a missing value.
func (n *Normalizer) Normalize(raw string, schema Schema) (*domain.TicketTable, error) {
	parsed, err := ParseCSV(raw)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", schema.Name, err)
	}
	if parsed.Header == nil {
		return nil, &domain.SchemaError{Source: schema.Name, Missing: schema.Headers()}
	}

	truncated := TruncateExtraColumn(parsed, schema.Width)

	index := make(map[string]int, parsed.Width())
	for i, name := range parsed.Header {
		if _, seen := index[name]; !seen {
			index[name] = i
		}
	}

	var missing []string
	for _, name := range schema.Headers() {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		columns := make([]string, len(parsed.Header))
		copy(columns, parsed.Header)
		return nil, &domain.SchemaError{Source: schema.Name, Missing: missing, Columns: columns}
	}

	fields := schema.Fields()
	records := make([]domain.TicketRecord, 0, len(parsed.Rows))
	for _, row := range parsed.Rows {
		var rec domain.TicketRecord
		for _, f := range fields {
			n.assign(&rec, f, row[index[schema.Columns[f]]])
		}
		records = append(records, rec)
	}

	return &domain.TicketTable{
		Source:           schema.Name,
		Fields:           fields,
		Columns:          schema.Headers(),
		Records:          records,
		DroppedRows:      parsed.Dropped,
		TruncatedColumns: truncated,
	}, nil
}

func (n *Normalizer) assign(rec *domain.TicketRecord, f domain.Field, value string) {
	switch f {
	case domain.FieldUsername:
		rec.Username = CoerceString(value)
	case domain.FieldResolved:
		rec.Resolved = CoerceStatus(value)
	case domain.FieldReceivedAt:
		rec.ReceivedAt = CoerceTime(value, n.loc)
	case domain.FieldFirstClosedAt:
		rec.FirstClosedAt = CoerceTime(value, n.loc)
	case domain.FieldCreatedAt:
		rec.CreatedAt = CoerceTime(value, n.loc)
	}
}
