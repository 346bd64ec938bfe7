package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/fixora/triage/internal/adapter/export"
	"github.com/fixora/triage/internal/domain"
	"github.com/fixora/triage/internal/infra/logger"
	"github.com/fixora/triage/internal/usecase"
	apperror "github.com/fixora/triage/pkg/error"
)

// DashboardService defines the behavior the handler depends on
type DashboardService interface {
	Refresh(ctx context.Context, req usecase.RefreshRequest) (*usecase.DashboardResult, error)
	RecentRuns(ctx context.Context, limit int) ([]*domain.CycleRun, bool, error)
	SelectableWindow() (domain.Date, domain.Date)
}

// DashboardHandler handles the dashboard page and its JSON API
type DashboardHandler struct {
	service  DashboardService
	options  RenderOptions
	logger   logger.Logger
	runLimit int
}

// NewDashboardHandler creates a new dashboard handler
func NewDashboardHandler(service DashboardService, options RenderOptions, log logger.Logger, runLimit int) *DashboardHandler {
	if runLimit <= 0 {
		runLimit = 20
	}
	return &DashboardHandler{
		service:  service,
		options:  options,
		logger:   log,
		runLimit: runLimit,
	}
}

// RegisterRoutes registers dashboard routes. guard wraps every route that
// runs a cycle.
func (h *DashboardHandler) RegisterRoutes(router *mux.Router, guard func(http.Handler) http.Handler) {
	if guard == nil {
		guard = func(next http.Handler) http.Handler { return next }
	}

	router.HandleFunc("/", h.Page).Methods("GET")
	router.Handle("/", guard(http.HandlerFunc(h.PageRefresh))).Methods("POST")

	api := router.PathPrefix("/api/v1/dashboard").Subrouter()
	api.Handle("/refresh", guard(http.HandlerFunc(h.Refresh))).Methods("POST")
	api.Handle("/exports/{table}", guard(http.HandlerFunc(h.Export))).Methods("GET")
	api.HandleFunc("/runs", h.Runs).Methods("GET")
}

// Page renders the dashboard before any cycle has run
func (h *DashboardHandler) Page(w http.ResponseWriter, r *http.Request) {
	data := h.pageData()
	data.Info = "Click the 'Fetch Data' button above to load ticket information."
	h.renderPage(w, r, http.StatusOK, data)
}

// PageRefresh runs a cycle from the page form and renders the result
func (h *DashboardHandler) PageRefresh(w http.ResponseWriter, r *http.Request) {
	data := h.pageData()

	if err := r.ParseForm(); err != nil {
		data.Error = "Invalid form submission"
		h.renderPage(w, r, http.StatusBadRequest, data)
		return
	}

	req, err := parseRange(r.PostForm.Get("start_date"), r.PostForm.Get("end_date"))
	if err != nil {
		data.Error = err.Error()
		h.renderPage(w, r, http.StatusBadRequest, data)
		return
	}
	if req.Start != nil {
		data.StartDate = req.Start.String()
	}
	if req.End != nil {
		data.EndDate = req.End.String()
	}

	result, err := h.service.Refresh(r.Context(), req)
	if err != nil {
		appErr := h.mapError(r.Context(), err)
		data.Error = appErr.Message
		if details, ok := appErr.Details.(apperror.SchemaDetails); ok {
			data.ErrorColumns = details.Columns
		}
		h.renderPage(w, r, appErr.Status, data)
		return
	}

	view, err := NewResultView(result, h.options)
	if err != nil {
		data.Error = apperror.ErrInternalServer.Message
		h.logger.Error(r.Context(), "Failed to build result view", err, nil)
		h.renderPage(w, r, http.StatusInternalServerError, data)
		return
	}
	data.Result = view
	h.renderPage(w, r, http.StatusOK, data)
}

// Refresh runs a cycle and returns the result as JSON
func (h *DashboardHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req usecase.RefreshRequest
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeErrorResponse(w, apperror.NewBadRequest("Invalid request body"))
			return
		}
	}

	query, err := parseRange(r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date"))
	if err != nil {
		writeErrorResponse(w, apperror.NewBadRequest(err.Error()))
		return
	}
	if query.Start != nil {
		req.Start = query.Start
	}
	if query.End != nil {
		req.End = query.End
	}

	result, err := h.service.Refresh(r.Context(), req)
	if err != nil {
		writeErrorResponse(w, h.mapError(r.Context(), err))
		return
	}

	writeSuccessResponse(w, http.StatusOK, "Dashboard refreshed successfully", result)
}

// Export runs a cycle and streams one table as CSV
func (h *DashboardHandler) Export(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["table"]
	if !knownTable(name) {
		writeErrorResponse(w, apperror.NewNotFound(fmt.Sprintf("Unknown table %q", name)))
		return
	}

	req, err := parseRange(r.URL.Query().Get("start_date"), r.URL.Query().Get("end_date"))
	if err != nil {
		writeErrorResponse(w, apperror.NewBadRequest(err.Error()))
		return
	}

	result, err := h.service.Refresh(r.Context(), req)
	if err != nil {
		writeErrorResponse(w, h.mapError(r.Context(), err))
		return
	}

	table, err := result.Table(name)
	if err != nil {
		writeErrorResponse(w, h.mapError(r.Context(), err))
		return
	}

	data, err := export.CSVBytes(table)
	if err != nil {
		writeErrorResponse(w, h.mapError(r.Context(), err))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", usecase.ExportFileName(name)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Runs lists recent cycles
func (h *DashboardHandler) Runs(w http.ResponseWriter, r *http.Request) {
	limit := h.runLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeErrorResponse(w, apperror.NewBadRequest("limit must be a positive integer"))
			return
		}
		if n < limit {
			limit = n
		}
	}

	runs, ok, err := h.service.RecentRuns(r.Context(), limit)
	if err != nil {
		writeErrorResponse(w, h.mapError(r.Context(), err))
		return
	}
	if !ok {
		writeErrorResponse(w, &apperror.AppError{
			Code:    apperror.ErrServiceUnavailable.Code,
			Message: "Run history is not configured",
			Status:  http.StatusServiceUnavailable,
		})
		return
	}
	if runs == nil {
		runs = []*domain.CycleRun{}
	}

	writeSuccessResponse(w, http.StatusOK, "Runs retrieved successfully", runs)
}

func (h *DashboardHandler) renderPage(w http.ResponseWriter, r *http.Request, status int, data PageData) {
	var buf bytes.Buffer
	if err := RenderPage(&buf, data); err != nil {
		h.logger.Error(r.Context(), "Failed to render dashboard page", err, nil)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func (h *DashboardHandler) pageData() PageData {
	earliest, today := h.service.SelectableWindow()
	return PageData{
		Earliest:  earliest.String(),
		Today:     today.String(),
		StartDate: today.String(),
		EndDate:   today.String(),
	}
}

func (h *DashboardHandler) mapError(ctx context.Context, err error) *apperror.AppError {
	appErr := apperror.MapError(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error(ctx, "Dashboard request failed", err, map[string]interface{}{
			"code": appErr.Code,
		})
	}
	return appErr
}

func parseRange(start, end string) (usecase.RefreshRequest, error) {
	var req usecase.RefreshRequest
	if start != "" {
		d, err := domain.ParseDate(start)
		if err != nil {
			return req, fmt.Errorf("invalid start_date: %w", err)
		}
		req.Start = &d
	}
	if end != "" {
		d, err := domain.ParseDate(end)
		if err != nil {
			return req, fmt.Errorf("invalid end_date: %w", err)
		}
		req.End = &d
	}
	return req, nil
}

func knownTable(name string) bool {
	for _, t := range usecase.ExportNames {
		if t == name {
			return true
		}
	}
	return false
}
