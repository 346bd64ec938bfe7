package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fixora/triage/internal/aggregate"
	"github.com/fixora/triage/internal/domain"
	"github.com/fixora/triage/internal/infra/logger"
	"github.com/fixora/triage/internal/normalize"
	"github.com/fixora/triage/internal/ports"
)

// Summary table names, as used in export URLs
const (
	TableOpenDuration = "open-duration"
	TableOpenTickets  = "open-tickets"
	TableResolved     = "resolved"
	TableDaily        = "daily"
)

// TableTickets is the full normalized ticket table
const TableTickets = "tickets"

// TableNames lists every summary table
var TableNames = []string{TableOpenDuration, TableOpenTickets, TableResolved, TableDaily}

// ExportNames lists every table available as a CSV export
var ExportNames = []string{TableOpenDuration, TableOpenTickets, TableResolved, TableDaily, TableTickets}

var exportFileNames = map[string]string{
	TableOpenDuration: "open_tickets_duration.csv",
	TableOpenTickets:  "open_tickets_summary.csv",
	TableResolved:     "resolved_tickets_selected_dates.csv",
	TableDaily:        "todays_ticket_count.csv",
	TableTickets:      "cleaned_data_username_resolved.csv",
}

// ExportFileName returns the download file name for an export table
func ExportFileName(table string) string {
	if name, ok := exportFileNames[table]; ok {
		return name
	}
	return table + ".csv"
}

// DashboardSettings holds the per-deployment source configuration
type DashboardSettings struct {
	TicketsURL   string
	TicketSchema normalize.Schema
	DailyURL     string
	DailySchema  normalize.Schema
	AllowedUsers []string
	Location     *time.Location
	// EarliestDate bounds the selectable range; zero means domain.EarliestSelectableDate
	EarliestDate domain.Date
}

// RefreshRequest selects the resolved-ticket date range. Nil bounds default to today.
type RefreshRequest struct {
	Start *domain.Date `json:"start_date,omitempty"`
	End   *domain.Date `json:"end_date,omitempty"`
}

// DashboardResult is everything one cycle produced
type DashboardResult struct {
	RunID             string             `json:"run_id"`
	GeneratedAt       time.Time          `json:"generated_at"`
	Today             domain.Date        `json:"today"`
	StartDate         domain.Date        `json:"start_date"`
	EndDate           domain.Date        `json:"end_date"`
	SelectedDates     []domain.Date      `json:"selected_dates"`
	TotalOpenTickets  int                `json:"total_open_tickets"`
	TotalTicketsToday int                `json:"total_tickets_today"`
	OpenDuration      domain.BucketTable `json:"open_duration"`
	OpenTickets       domain.CountTable  `json:"open_tickets"`
	Resolved          domain.CountTable  `json:"resolved"`
	Daily             *domain.CountTable `json:"daily,omitempty"`
	SpreadsheetPath   string             `json:"spreadsheet_path"`
	TicketRows        int                `json:"ticket_rows"`
	DroppedRows       int                `json:"dropped_rows"`
	// Tickets is the normalized tickets source, exported but never serialized
	Tickets *domain.TicketTable `json:"-"`
}

// Table returns one export table by name
func (r *DashboardResult) Table(name string) (domain.Tabular, error) {
	switch name {
	case TableOpenDuration:
		return r.OpenDuration, nil
	case TableOpenTickets:
		return r.OpenTickets, nil
	case TableResolved:
		return r.Resolved, nil
	case TableDaily:
		if r.Daily != nil {
			return *r.Daily, nil
		}
		return nil, fmt.Errorf("%s: daily source not configured: %w", name, domain.ErrUnknownTable)
	case TableTickets:
		if r.Tickets != nil {
			return domain.CleanedTable{Table: r.Tickets}, nil
		}
		return nil, fmt.Errorf("%s: %w", name, domain.ErrUnknownTable)
	}
	return nil, fmt.Errorf("%s: %w", name, domain.ErrUnknownTable)
}

// DashboardUseCase runs fetch-and-render cycles, one at a time
type DashboardUseCase struct {
	source     ports.CSVSource
	normalizer *normalize.Normalizer
	exporter   ports.SpreadsheetExporter
	runs       ports.RunLogRepository
	logger     logger.Logger
	settings   DashboardSettings
	now        func() time.Time

	mu sync.Mutex
}

// NewDashboardUseCase creates a new dashboard use case. runs may be nil.
func NewDashboardUseCase(
	source ports.CSVSource,
	normalizer *normalize.Normalizer,
	exporter ports.SpreadsheetExporter,
	runs ports.RunLogRepository,
	log logger.Logger,
	settings DashboardSettings,
) *DashboardUseCase {
	if settings.Location == nil {
		settings.Location = time.Local
	}
	return &DashboardUseCase{
		source:     source,
		normalizer: normalizer,
		exporter:   exporter,
		runs:       runs,
		logger:     log,
		settings:   settings,
		now:        time.Now,
	}
}

// WithClock replaces the wall clock, for tests and replays
func (uc *DashboardUseCase) WithClock(now func() time.Time) *DashboardUseCase {
	uc.now = now
	return uc
}

// SelectableWindow returns the first and last dates a caller may select.
// The last is today in the dashboard location.
func (uc *DashboardUseCase) SelectableWindow() (domain.Date, domain.Date) {
	return uc.earliest(), domain.DateOf(uc.now().In(uc.settings.Location))
}

func (uc *DashboardUseCase) earliest() domain.Date {
	if uc.settings.EarliestDate == (domain.Date{}) {
		return domain.EarliestSelectableDate
	}
	return uc.settings.EarliestDate
}

// Refresh runs one complete cycle. Any failure aborts the cycle and no
// partial result is returned.
func (uc *DashboardUseCase) Refresh(ctx context.Context, req RefreshRequest) (*DashboardResult, error) {
	now := uc.now().In(uc.settings.Location)
	today := domain.DateOf(now)

	start, end := today, today
	if req.Start != nil {
		start = *req.Start
	}
	if req.End != nil {
		end = *req.End
	}
	dates, err := domain.BoundedDateRange(start, end, uc.earliest(), today)
	if err != nil {
		return nil, err
	}

	if !uc.mu.TryLock() {
		return nil, domain.ErrCycleInProgress
	}
	defer uc.mu.Unlock()

	run := domain.NewCycleRun(now)
	result, err := uc.cycle(ctx, now, dates)
	run.FinishedAt = uc.now().In(uc.settings.Location)

	if err != nil {
		run.Outcome = classify(err)
		run.Error = err.Error()
		uc.record(ctx, run)
		return nil, err
	}

	result.RunID = run.ID
	result.StartDate = start
	result.EndDate = end

	run.Outcome = domain.CycleSucceeded
	run.TicketRows = result.TicketRows
	run.DroppedRows = result.DroppedRows
	run.OpenTickets = result.TotalOpenTickets
	uc.record(ctx, run)

	return result, nil
}

func (uc *DashboardUseCase) cycle(ctx context.Context, now time.Time, dates domain.DateSet) (*DashboardResult, error) {
	tickets, err := uc.load(ctx, uc.settings.TicketsURL, uc.settings.TicketSchema)
	if err != nil {
		return nil, err
	}

	today := domain.DateOf(now)
	result := &DashboardResult{
		GeneratedAt:   now,
		Today:         today,
		SelectedDates: dates.Sorted(),
		OpenTickets:   aggregate.OpenByUser(tickets.Records),
		Resolved:      aggregate.ResolvedInRange(tickets.Records, dates),
		OpenDuration:  aggregate.OpenDuration(tickets.Records, now),
		TicketRows:    len(tickets.Records),
		DroppedRows:   tickets.DroppedRows,
		Tickets:       tickets,
	}
	result.TotalOpenTickets = result.OpenTickets.Total()

	path, err := uc.exporter.Export(ctx, tickets)
	if err != nil {
		return nil, fmt.Errorf("export spreadsheet: %w", err)
	}
	result.SpreadsheetPath = path

	if uc.settings.DailyURL != "" {
		daily, err := uc.load(ctx, uc.settings.DailyURL, uc.settings.DailySchema)
		if err != nil {
			return nil, err
		}
		counts := aggregate.DailyByUser(daily.Records, today, uc.settings.AllowedUsers)
		result.Daily = &counts
		result.TotalTicketsToday = counts.Total()
		result.DroppedRows += daily.DroppedRows
	}

	return result, nil
}

func (uc *DashboardUseCase) load(ctx context.Context, url string, schema normalize.Schema) (*domain.TicketTable, error) {
	start := time.Now()

	raw, err := uc.source.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", schema.Name, err)
	}

	table, err := uc.normalizer.Normalize(raw, schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", schema.Name, err)
	}

	logger.LogPerformance(ctx, uc.logger, "load "+schema.Name, time.Since(start), map[string]interface{}{
		"rows":              len(table.Records),
		"dropped_rows":      table.DroppedRows,
		"truncated_columns": table.TruncatedColumns,
	})

	return table, nil
}

func (uc *DashboardUseCase) record(ctx context.Context, run *domain.CycleRun) {
	fields := map[string]interface{}{
		"run_id":       run.ID,
		"outcome":      run.Outcome,
		"duration_ms":  run.Duration().Milliseconds(),
		"ticket_rows":  run.TicketRows,
		"dropped_rows": run.DroppedRows,
		"open_tickets": run.OpenTickets,
	}
	if run.Outcome == domain.CycleSucceeded {
		uc.logger.Info(ctx, "Dashboard cycle finished", fields)
	} else {
		fields["error"] = run.Error
		uc.logger.Warn(ctx, "Dashboard cycle failed", fields)
	}

	if uc.runs == nil {
		return
	}

	// Run history is best-effort and must outlive a cancelled request
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := uc.runs.Record(rctx, run); err != nil {
		uc.logger.Error(ctx, "Failed to record cycle run", err, map[string]interface{}{"run_id": run.ID})
	}
}

// RecentRuns returns the latest recorded cycles. It reports ok=false when no
// run log is configured.
func (uc *DashboardUseCase) RecentRuns(ctx context.Context, limit int) ([]*domain.CycleRun, bool, error) {
	if uc.runs == nil {
		return nil, false, nil
	}
	runs, err := uc.runs.Recent(ctx, limit)
	if err != nil {
		return nil, true, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, true, nil
}

func classify(err error) domain.CycleOutcome {
	var transportErr *domain.TransportError
	var schemaErr *domain.SchemaError
	switch {
	case errors.As(err, &transportErr):
		return domain.CycleTransportError
	case errors.As(err, &schemaErr):
		return domain.CycleSchemaError
	default:
		return domain.CycleFailed
	}
}
