package http

import (
	_ "embed"
	"encoding/base64"
	"fmt"
	"html/template"
	"io"
	"time"
	"unicode/utf8"

	"github.com/fixora/triage/internal/adapter/export"
	"github.com/fixora/triage/internal/domain"
	"github.com/fixora/triage/internal/usecase"
)

//go:embed templates/dashboard.html
var dashboardHTML string

var dashboardTemplate = template.Must(template.New("dashboard").Parse(dashboardHTML))

// RenderOptions are per-render presentation settings
type RenderOptions struct {
	// MaxColWidth truncates cell text to this many characters; 0 means no limit
	MaxColWidth int
	// DateLayout formats dates shown on the page
	DateLayout string
}

// DefaultRenderOptions returns the settings used when none are configured
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{DateLayout: domain.DateLayout}
}

// PageData is what the dashboard template receives
type PageData struct {
	Earliest     string
	Today        string
	StartDate    string
	EndDate      string
	Info         string
	Error        string
	ErrorColumns []string
	Result       *ResultView
}

// ResultView is a rendered cycle result
type ResultView struct {
	GeneratedAt       string
	SelectedDates     []string
	TotalOpenTickets  int
	TotalTicketsToday int
	HasDaily          bool
	DroppedRows       int
	Tables            []TableView
	// CleanedData downloads the full normalized ticket table
	CleanedData *DownloadLink
}

// DownloadLink is a CSV file embedded in the page
type DownloadLink struct {
	URI      template.URL
	FileName string
}

// TableView is one summary table ready for display
type TableView struct {
	Name        string
	Title       string
	Header      []string
	Rows        [][]string
	DownloadURI template.URL
	FileName    string
}

// NewResultView prepares a cycle result for the page. The download links carry
// the same cycle's data.
func NewResultView(result *usecase.DashboardResult, opts RenderOptions) (*ResultView, error) {
	view := &ResultView{
		GeneratedAt:       result.GeneratedAt.Format("2006-01-02 15:04:05 MST"),
		TotalOpenTickets:  result.TotalOpenTickets,
		TotalTicketsToday: result.TotalTicketsToday,
		HasDaily:          result.Daily != nil,
		DroppedRows:       result.DroppedRows,
	}
	for _, d := range result.SelectedDates {
		view.SelectedDates = append(view.SelectedDates, formatDate(d, opts))
	}

	titles := map[string]string{
		usecase.TableOpenDuration: result.OpenDuration.Title,
		usecase.TableOpenTickets:  result.OpenTickets.Title,
		usecase.TableResolved:     result.Resolved.Title,
	}
	if result.Daily != nil {
		titles[usecase.TableDaily] = result.Daily.Title
	}

	for _, name := range usecase.TableNames {
		title, ok := titles[name]
		if !ok {
			continue
		}
		table, err := result.Table(name)
		if err != nil {
			return nil, err
		}
		tv, err := newTableView(name, title, table, opts)
		if err != nil {
			return nil, err
		}
		view.Tables = append(view.Tables, tv)
	}

	if result.Tickets != nil {
		table, err := result.Table(usecase.TableTickets)
		if err != nil {
			return nil, err
		}
		uri, err := csvDataURI(table)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", usecase.TableTickets, err)
		}
		view.CleanedData = &DownloadLink{URI: uri, FileName: usecase.ExportFileName(usecase.TableTickets)}
	}

	return view, nil
}

func newTableView(name, title string, table domain.Tabular, opts RenderOptions) (TableView, error) {
	uri, err := csvDataURI(table)
	if err != nil {
		return TableView{}, fmt.Errorf("render %s: %w", name, err)
	}

	rows := table.Records()
	for _, row := range rows {
		for i := range row {
			row[i] = truncate(row[i], opts.MaxColWidth)
		}
	}

	return TableView{
		Name:        name,
		Title:       title,
		Header:      table.Header(),
		Rows:        rows,
		DownloadURI: uri,
		FileName:    usecase.ExportFileName(name),
	}, nil
}

func csvDataURI(table domain.Tabular) (template.URL, error) {
	data, err := export.CSVBytes(table)
	if err != nil {
		return "", err
	}
	return template.URL("data:text/csv;charset=utf-8;base64," + base64.StdEncoding.EncodeToString(data)), nil
}

// RenderPage writes the dashboard page
func RenderPage(w io.Writer, data PageData) error {
	return dashboardTemplate.Execute(w, data)
}

func formatDate(d domain.Date, opts RenderOptions) string {
	layout := opts.DateLayout
	if layout == "" {
		layout = domain.DateLayout
	}
	return d.In(time.UTC).Format(layout)
}

func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "…"
}
