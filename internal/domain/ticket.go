package domain

import (
	"strconv"
	"time"
)

// DateTimeLayout is how datetimes are written to CSV
const DateTimeLayout = "2006-01-02 15:04:05"

// Resolved-status codes used by the helpdesk export
const (
	StatusOpen     = 0
	StatusResolved = 1
	StatusReopened = 2
)

// Field identifies a logical ticket column independent of its header name
type Field string

const (
	FieldUsername      Field = "username"
	FieldResolved      Field = "resolved"
	FieldReceivedAt    Field = "received_at"
	FieldFirstClosedAt Field = "first_closed_at"
	FieldCreatedAt     Field = "created_at"
)

// FieldKind is the semantic type a column is coerced to
type FieldKind int

const (
	KindString FieldKind = iota
	KindStatus
	KindDateTime
)

// Kind returns the coercion kind of the field
func (f Field) Kind() FieldKind {
	switch f {
	case FieldResolved:
		return KindStatus
	case FieldReceivedAt, FieldFirstClosedAt, FieldCreatedAt:
		return KindDateTime
	default:
		return KindString
	}
}

// Valid reports whether f is a known field
func (f Field) Valid() bool {
	switch f {
	case FieldUsername, FieldResolved, FieldReceivedAt, FieldFirstClosedAt, FieldCreatedAt:
		return true
	}
	return false
}

// TicketRecord is one normalized ticket row. Fields the source schema
// does not carry stay missing.
type TicketRecord struct {
	Username      Optional[string]    `json:"username"`
	Resolved      Optional[int]       `json:"resolved"`
	ReceivedAt    Optional[time.Time] `json:"received_at"`
	FirstClosedAt Optional[time.Time] `json:"first_closed_at"`
	CreatedAt     Optional[time.Time] `json:"created_at"`
}

// IsOpen reports whether the ticket's status is open (0) or reopened (2)
func (r TicketRecord) IsOpen() bool {
	status, ok := r.Resolved.Get()
	return ok && (status == StatusOpen || status == StatusReopened)
}

// IsResolved reports whether the ticket's status is resolved (1)
func (r TicketRecord) IsResolved() bool {
	status, ok := r.Resolved.Get()
	return ok && status == StatusResolved
}

// Time returns the datetime stored for a datetime field
func (r TicketRecord) Time(f Field) Optional[time.Time] {
	switch f {
	case FieldReceivedAt:
		return r.ReceivedAt
	case FieldFirstClosedAt:
		return r.FirstClosedAt
	case FieldCreatedAt:
		return r.CreatedAt
	}
	return None[time.Time]()
}

// TicketTable is the normalized output of one source
type TicketTable struct {
	Source           string         `json:"source"`
	Fields           []Field        `json:"fields"`
	Columns          []string       `json:"columns"`
	Records          []TicketRecord `json:"records"`
	DroppedRows      int            `json:"dropped_rows"`
	TruncatedColumns int            `json:"truncated_columns"`
}

// Cells renders the record's values for fields in order. Missing values are
// empty strings.
func (r TicketRecord) Cells(fields []Field) []string {
	cells := make([]string, len(fields))
	for i, f := range fields {
		switch f.Kind() {
		case KindString:
			cells[i], _ = r.Username.Get()
		case KindStatus:
			if v, ok := r.Resolved.Get(); ok {
				cells[i] = strconv.Itoa(v)
			}
		case KindDateTime:
			if v, ok := r.Time(f).Get(); ok {
				cells[i] = v.Format(DateTimeLayout)
			}
		}
	}
	return cells
}

// CleanedTable is a normalized ticket table viewed as Tabular
type CleanedTable struct {
	Table *TicketTable
}

// Header implements Tabular
func (t CleanedTable) Header() []string {
	return append([]string(nil), t.Table.Columns...)
}

// Records implements Tabular
func (t CleanedTable) Records() [][]string {
	out := make([][]string, 0, len(t.Table.Records))
	for _, rec := range t.Table.Records {
		out = append(out, rec.Cells(t.Table.Fields))
	}
	return out
}
