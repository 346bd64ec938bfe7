package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fixora/triage/internal/domain"
	"github.com/fixora/triage/internal/infra/logger"
	"github.com/fixora/triage/internal/usecase"
)

// MockDashboardService is a mock implementation of DashboardService
type MockDashboardService struct {
	mock.Mock
}

func (m *MockDashboardService) Refresh(ctx context.Context, req usecase.RefreshRequest) (*usecase.DashboardResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*usecase.DashboardResult), args.Error(1)
}

func (m *MockDashboardService) RecentRuns(ctx context.Context, limit int) ([]*domain.CycleRun, bool, error) {
	args := m.Called(ctx, limit)
	var runs []*domain.CycleRun
	if args.Get(0) != nil {
		runs = args.Get(0).([]*domain.CycleRun)
	}
	return runs, args.Bool(1), args.Error(2)
}

func (m *MockDashboardService) SelectableWindow() (domain.Date, domain.Date) {
	args := m.Called()
	return args.Get(0).(domain.Date), args.Get(1).(domain.Date)
}

var (
	testToday    = domain.Date{Year: 2026, Month: time.October, Day: 19}
	testEarliest = domain.EarliestSelectableDate
)

func sampleResult() *usecase.DashboardResult {
	row := domain.BucketRow{Username: "alice", Total: 2}
	row.Buckets[1] = 1
	row.Buckets[5] = 1

	return &usecase.DashboardResult{
		RunID:         "run-1",
		GeneratedAt:   time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
		Today:         testToday,
		StartDate:     testToday,
		EndDate:       testToday,
		SelectedDates: []domain.Date{testToday},
		OpenTickets: domain.CountTable{
			Title:       "Open Tickets Summary",
			CountColumn: "Open tickets",
			Rows:        []domain.CountRow{{Username: "alice", Count: 2}, {Username: "bob", Count: 1}},
		},
		Resolved: domain.CountTable{
			Title:       "Resolved Tickets on Selected Dates",
			CountColumn: "Resolved on Selected Dates",
			Rows:        []domain.CountRow{{Username: "bob", Count: 1}},
		},
		OpenDuration:     domain.BucketTable{Title: "Open Tickets by Duration (Hours)", Rows: []domain.BucketRow{row}},
		TotalOpenTickets: 3,
		SpreadsheetPath:  "cleaned_data_username_resolved.xlsx",
		TicketRows:       2,
		Tickets: &domain.TicketTable{
			Source:  "tickets",
			Fields:  []domain.Field{domain.FieldUsername, domain.FieldResolved},
			Columns: []string{"username", "resolved"},
			Records: []domain.TicketRecord{
				{Username: domain.Some("alice"), Resolved: domain.Some(0)},
				{Username: domain.Some("bob"), Resolved: domain.None[int]()},
			},
		},
	}
}

func setupDashboardRouter(svc *MockDashboardService) *mux.Router {
	handler := NewDashboardHandler(svc, DefaultRenderOptions(), logger.Nop(), 20)
	router := mux.NewRouter()
	handler.RegisterRoutes(router, nil)
	return router
}

func decodeEnvelope(t *testing.T, body *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(body.Bytes(), &env))
	return env
}

func TestDashboardHandler_Refresh(t *testing.T) {
	svc := new(MockDashboardService)
	start := domain.Date{Year: 2026, Month: time.October, Day: 17}
	svc.On("Refresh", mock.Anything, mock.MatchedBy(func(req usecase.RefreshRequest) bool {
		return req.Start != nil && *req.Start == start && req.End != nil && *req.End == testToday
	})).Return(sampleResult(), nil).Once()

	req := httptest.NewRequest("POST", "/api/v1/dashboard/refresh", strings.NewReader(`{"start_date":"2026-10-17","end_date":"2026-10-19"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	setupDashboardRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w.Body)
	assert.Equal(t, true, env["status"])
	assert.Equal(t, "Dashboard refreshed successfully", env["message"])

	data := env["data"].(map[string]interface{})
	assert.EqualValues(t, 3, data["total_open_tickets"])
	assert.Equal(t, "2026-10-19", data["today"])
	assert.Equal(t, "run-1", data["run_id"])
	assert.NotContains(t, data, "daily")

	svc.AssertExpectations(t)
}

func TestDashboardHandler_Refresh_EmptyBodyDefaultsToToday(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Refresh", mock.Anything, usecase.RefreshRequest{}).Return(sampleResult(), nil).Once()

	req := httptest.NewRequest("POST", "/api/v1/dashboard/refresh", nil)
	w := httptest.NewRecorder()
	setupDashboardRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestDashboardHandler_Refresh_Errors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
	}{
		{"fetch failure", &domain.TransportError{URL: "http://helpdesk", StatusCode: 500}, http.StatusBadGateway, "FETCH_FAILED"},
		{"schema mismatch", &domain.SchemaError{Source: "tickets", Missing: []string{"resolved"}, Columns: []string{"username"}}, http.StatusUnprocessableEntity, "SCHEMA_MISMATCH"},
		{"busy", domain.ErrCycleInProgress, http.StatusConflict, "CONFLICT"},
		{"bad range", domain.ErrInvalidDateRange, http.StatusBadRequest, "BAD_REQUEST"},
		{"outside window", fmt.Errorf("%w: choose dates from 2000-01-01 to 2026-10-19", domain.ErrDateOutOfRange), http.StatusBadRequest, "BAD_REQUEST"},
		{"unexpected", assert.AnError, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDashboardService)
			svc.On("Refresh", mock.Anything, mock.Anything).Return(nil, tt.err).Once()

			req := httptest.NewRequest("POST", "/api/v1/dashboard/refresh", nil)
			w := httptest.NewRecorder()
			setupDashboardRouter(svc).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			env := decodeEnvelope(t, w.Body)
			assert.Equal(t, false, env["status"])
			assert.Equal(t, tt.expectedCode, env["code"])
			assert.Nil(t, env["data"])
		})
	}
}

func TestDashboardHandler_Refresh_SchemaDetails(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Refresh", mock.Anything, mock.Anything).
		Return(nil, &domain.SchemaError{Source: "tickets", Missing: []string{"resolved"}, Columns: []string{"username", "Received_Timestamp"}}).Once()

	req := httptest.NewRequest("POST", "/api/v1/dashboard/refresh", nil)
	w := httptest.NewRecorder()
	setupDashboardRouter(svc).ServeHTTP(w, req)

	env := decodeEnvelope(t, w.Body)
	details := env["details"].(map[string]interface{})
	assert.Equal(t, []interface{}{"username", "Received_Timestamp"}, details["columns"])
	assert.Equal(t, []interface{}{"resolved"}, details["missing"])
}

func TestDashboardHandler_Refresh_BadInput(t *testing.T) {
	tests := []struct {
		name string
		url  string
		body string
	}{
		{"invalid json", "/api/v1/dashboard/refresh", `{"start_date": }`},
		{"invalid date in body", "/api/v1/dashboard/refresh", `{"start_date":"19/10/2026"}`},
		{"invalid date in query", "/api/v1/dashboard/refresh?end_date=yesterday", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockDashboardService)

			req := httptest.NewRequest("POST", tt.url, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			setupDashboardRouter(svc).ServeHTTP(w, req)

			assert.Equal(t, http.StatusBadRequest, w.Code)
			svc.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
		})
	}
}

func TestDashboardHandler_Export(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Refresh", mock.Anything, usecase.RefreshRequest{}).Return(sampleResult(), nil).Once()

	req := httptest.NewRequest("GET", "/api/v1/dashboard/exports/open-tickets", nil)
	w := httptest.NewRecorder()
	setupDashboardRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "open_tickets_summary.csv")
	assert.Equal(t, "username,Open tickets\nalice,2\nbob,1\n", w.Body.String())
	svc.AssertExpectations(t)
}

func TestDashboardHandler_Export_OpenDuration(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Refresh", mock.Anything, mock.Anything).Return(sampleResult(), nil).Once()

	req := httptest.NewRequest("GET", "/api/v1/dashboard/exports/open-duration?start_date=2026-10-18", nil)
	w := httptest.NewRecorder()
	setupDashboardRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "username,Total Open Tickets,1h,2h,3h,4h,5h,6h,7h,8h,9h,10h,>10h", lines[0])
	assert.Equal(t, "alice,2,0,1,0,0,0,1,0,0,0,0,0", lines[1])
}

func TestDashboardHandler_Export_CleanedTickets(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Refresh", mock.Anything, mock.Anything).Return(sampleResult(), nil).Once()

	req := httptest.NewRequest("GET", "/api/v1/dashboard/exports/tickets", nil)
	w := httptest.NewRecorder()
	setupDashboardRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "cleaned_data_username_resolved.csv")
	assert.Equal(t, "username,resolved\nalice,0\nbob,\n", w.Body.String())
}

func TestDashboardHandler_Export_UnknownTable(t *testing.T) {
	svc := new(MockDashboardService)

	req := httptest.NewRequest("GET", "/api/v1/dashboard/exports/everything", nil)
	w := httptest.NewRecorder()
	setupDashboardRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	svc.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func TestDashboardHandler_Export_DailyNotConfigured(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("Refresh", mock.Anything, mock.Anything).Return(sampleResult(), nil).Once()

	req := httptest.NewRequest("GET", "/api/v1/dashboard/exports/daily", nil)
	w := httptest.NewRecorder()
	setupDashboardRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDashboardHandler_Runs(t *testing.T) {
	started := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	runs := []*domain.CycleRun{{
		ID:         "run-1",
		StartedAt:  started,
		FinishedAt: started.Add(time.Second),
		Outcome:    domain.CycleSucceeded,
		TicketRows: 5,
	}}

	t.Run("listed", func(t *testing.T) {
		svc := new(MockDashboardService)
		svc.On("RecentRuns", mock.Anything, 5).Return(runs, true, nil).Once()

		req := httptest.NewRequest("GET", "/api/v1/dashboard/runs?limit=5", nil)
		w := httptest.NewRecorder()
		setupDashboardRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		env := decodeEnvelope(t, w.Body)
		data := env["data"].([]interface{})
		require.Len(t, data, 1)
		assert.Equal(t, "succeeded", data[0].(map[string]interface{})["outcome"])
		svc.AssertExpectations(t)
	})

	t.Run("limit capped", func(t *testing.T) {
		svc := new(MockDashboardService)
		svc.On("RecentRuns", mock.Anything, 20).Return(nil, true, nil).Once()

		req := httptest.NewRequest("GET", "/api/v1/dashboard/runs?limit=500", nil)
		w := httptest.NewRecorder()
		setupDashboardRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":true,"message":"Runs retrieved successfully","data":[]}`, w.Body.String())
	})

	t.Run("not configured", func(t *testing.T) {
		svc := new(MockDashboardService)
		svc.On("RecentRuns", mock.Anything, 20).Return(nil, false, nil).Once()

		req := httptest.NewRequest("GET", "/api/v1/dashboard/runs", nil)
		w := httptest.NewRecorder()
		setupDashboardRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})

	t.Run("bad limit", func(t *testing.T) {
		svc := new(MockDashboardService)

		req := httptest.NewRequest("GET", "/api/v1/dashboard/runs?limit=-1", nil)
		w := httptest.NewRecorder()
		setupDashboardRouter(svc).ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestDashboardHandler_Page(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("SelectableWindow").Return(testEarliest, testToday)

	req := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	setupDashboardRouter(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "Fetch Data")
	assert.Contains(t, body, `value="2026-10-19"`)
	assert.Contains(t, body, `min="2000-01-01"`)
	assert.Contains(t, body, `max="2026-10-19"`)
	assert.Contains(t, body, "to load ticket information")
	assert.NotContains(t, body, "Dashboard Summary")
	svc.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}

func postForm(values url.Values) *http.Request {
	req := httptest.NewRequest("POST", "/", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestDashboardHandler_PageRefresh(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("SelectableWindow").Return(testEarliest, testToday)
	svc.On("Refresh", mock.Anything, mock.MatchedBy(func(req usecase.RefreshRequest) bool {
		return req.Start != nil && req.Start.Day == 18 && req.End != nil && req.End.Day == 19
	})).Return(sampleResult(), nil).Once()

	w := httptest.NewRecorder()
	setupDashboardRouter(svc).ServeHTTP(w, postForm(url.Values{
		"start_date": {"2026-10-18"},
		"end_date":   {"2026-10-19"},
	}))

	assert.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Dashboard Summary")
	assert.Contains(t, body, "Total Open Tickets")
	assert.Contains(t, body, "<td>alice</td>")
	assert.Contains(t, body, `value="2026-10-18"`)
	assert.Contains(t, body, `href="data:text/csv;charset=utf-8;base64,`)
	assert.Contains(t, body, `download="open_tickets_duration.csv"`)
	assert.NotContains(t, body, "Total Tickets Today", "no daily card without a daily source")
	svc.AssertExpectations(t)
}

func TestDashboardHandler_PageRefresh_SchemaError(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("SelectableWindow").Return(testEarliest, testToday)
	svc.On("Refresh", mock.Anything, mock.Anything).
		Return(nil, &domain.SchemaError{Source: "tickets", Missing: []string{"resolved"}, Columns: []string{"username", "Received_Timestamp"}}).Once()

	w := httptest.NewRecorder()
	setupDashboardRouter(svc).ServeHTTP(w, postForm(url.Values{}))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "required columns resolved not found")
	assert.Contains(t, body, "Columns in the dataset: username, Received_Timestamp")
	assert.NotContains(t, body, "Dashboard Summary")
}

func TestDashboardHandler_PageRefresh_FetchError(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("SelectableWindow").Return(testEarliest, testToday)
	svc.On("Refresh", mock.Anything, mock.Anything).
		Return(nil, &domain.TransportError{URL: "http://helpdesk", StatusCode: 503}).Once()

	w := httptest.NewRecorder()
	setupDashboardRouter(svc).ServeHTTP(w, postForm(url.Values{}))

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), "Failed to fetch data")
}

func TestDashboardHandler_PageRefresh_InvalidDate(t *testing.T) {
	svc := new(MockDashboardService)
	svc.On("SelectableWindow").Return(testEarliest, testToday)

	w := httptest.NewRecorder()
	setupDashboardRouter(svc).ServeHTTP(w, postForm(url.Values{"start_date": {"not-a-date"}}))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid start_date")
	svc.AssertNotCalled(t, "Refresh", mock.Anything, mock.Anything)
}
