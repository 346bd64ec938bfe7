package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/fixora/triage/internal/adapter/export"
	"github.com/fixora/triage/internal/adapter/fetcher"
	"github.com/fixora/triage/internal/config"
	"github.com/fixora/triage/internal/domain"
	"github.com/fixora/triage/internal/infra/logger"
	"github.com/fixora/triage/internal/normalize"
	"github.com/fixora/triage/internal/usecase"
)

func main() {
	var (
		start = flag.String("start", "", "first resolved date, YYYY-MM-DD (default today)")
		end   = flag.String("end", "", "last resolved date, YYYY-MM-DD (default today)")
		out   = flag.String("out", "", "directory to write one CSV per summary table")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	earliest, err := cfg.EarliestDate()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	req, err := parseRange(*start, *end)
	if err != nil {
		log.Fatal(err)
	}

	structuredLogger := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		ServiceName: "triage-report",
		Output:      os.Stderr,
	})

	dashboard := usecase.NewDashboardUseCase(
		fetcher.NewHTTPFetcher(fetcher.Config{Timeout: cfg.Fetch.Timeout, MaxBytes: cfg.Fetch.MaxBytes}),
		normalize.New(loc),
		export.NewSpreadsheetExporter(cfg.Dashboard.SpreadsheetPath),
		nil,
		structuredLogger,
		usecase.DashboardSettings{
			TicketsURL:   cfg.Sources.Tickets.URL,
			TicketSchema: cfg.TicketSchema(),
			DailyURL:     cfg.Sources.Daily.URL,
			DailySchema:  cfg.DailySchema(),
			AllowedUsers: cfg.Sources.AllowedUsers,
			Location:     loc,
			EarliestDate: earliest,
		},
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := dashboard.Refresh(ctx, req)
	if err != nil {
		if schemaErr, ok := asSchemaError(err); ok {
			fmt.Fprintf(os.Stderr, "Columns in the dataset: %s\n", strings.Join(schemaErr.Columns, ", "))
		}
		log.Fatalf("Refresh failed: %v", err)
	}

	if err := printReport(os.Stdout, result); err != nil {
		log.Fatalf("Failed to print report: %v", err)
	}

	if *out != "" {
		if err := writeTables(*out, result); err != nil {
			log.Fatalf("Failed to write tables: %v", err)
		}
	}
}

func parseRange(start, end string) (usecase.RefreshRequest, error) {
	var req usecase.RefreshRequest
	if start != "" {
		d, err := domain.ParseDate(start)
		if err != nil {
			return req, fmt.Errorf("-start: %w", err)
		}
		req.Start = &d
	}
	if end != "" {
		d, err := domain.ParseDate(end)
		if err != nil {
			return req, fmt.Errorf("-end: %w", err)
		}
		req.End = &d
	}
	return req, nil
}

func printReport(w io.Writer, result *usecase.DashboardResult) error {
	fmt.Fprintf(w, "Generated:          %s\n", result.GeneratedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Resolved dates:     %s .. %s\n", result.StartDate, result.EndDate)
	fmt.Fprintf(w, "Total open tickets: %d\n", result.TotalOpenTickets)
	if result.Daily != nil {
		fmt.Fprintf(w, "Tickets today:      %d\n", result.TotalTicketsToday)
	}
	fmt.Fprintf(w, "Spreadsheet:        %s\n", result.SpreadsheetPath)

	for _, name := range usecase.TableNames {
		table, err := result.Table(name)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "\n== %s ==\n", name)

		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(table.Header(), "\t"))
		for _, row := range table.Records() {
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func writeTables(dir string, result *usecase.DashboardResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, name := range usecase.ExportNames {
		table, err := result.Table(name)
		if err != nil {
			continue
		}
		data, err := export.CSVBytes(table)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, usecase.ExportFileName(name)), data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

func asSchemaError(err error) (*domain.SchemaError, bool) {
	var schemaErr *domain.SchemaError
	ok := errors.As(err, &schemaErr)
	return schemaErr, ok
}
