package domain

import (
	"time"

	"github.com/google/uuid"
)

// CycleOutcome classifies how a fetch-and-render cycle ended
type CycleOutcome string

const (
	CycleSucceeded      CycleOutcome = "succeeded"
	CycleTransportError CycleOutcome = "transport_error"
	CycleSchemaError    CycleOutcome = "schema_error"
	CycleFailed         CycleOutcome = "failed"
)

// CycleRun records metadata about one cycle. It never carries the
// aggregated tables themselves.
type CycleRun struct {
	ID          string       `json:"id"`
	StartedAt   time.Time    `json:"started_at"`
	FinishedAt  time.Time    `json:"finished_at"`
	Outcome     CycleOutcome `json:"outcome"`
	Error       string       `json:"error,omitempty"`
	TicketRows  int          `json:"ticket_rows"`
	DroppedRows int          `json:"dropped_rows"`
	OpenTickets int          `json:"open_tickets"`
}

// NewCycleRun starts a run record
func NewCycleRun(startedAt time.Time) *CycleRun {
	return &CycleRun{
		ID:        uuid.NewString(),
		StartedAt: startedAt,
	}
}

// Duration returns how long the cycle took
func (r *CycleRun) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
