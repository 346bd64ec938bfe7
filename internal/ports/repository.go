package ports

import (
	"context"
	"time"

	"github.com/fixora/triage/internal/domain"
)

// CSVSource fetches raw CSV text from a helpdesk export endpoint
type CSVSource interface {
	// Fetch performs one GET and returns the body. Failures are *domain.TransportError.
	Fetch(ctx context.Context, url string) (string, error)
}

// SpreadsheetExporter writes the full normalized ticket table to a fixed location
type SpreadsheetExporter interface {
	// Export overwrites the previous export and returns the path written
	Export(ctx context.Context, table *domain.TicketTable) (string, error)
}

// RunLogRepository defines the interface for cycle-run persistence
type RunLogRepository interface {
	// Record saves a finished cycle
	Record(ctx context.Context, run *domain.CycleRun) error

	// Recent returns the latest runs, newest first
	Recent(ctx context.Context, limit int) ([]*domain.CycleRun, error)
}

// RateLimiter counts triggers per key in a fixed window
type RateLimiter interface {
	// Allow increments the counter for key and reports whether it is still within limit
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
