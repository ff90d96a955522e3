package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/charliek/herolog/internal/constants"
	"github.com/charliek/herolog/internal/domain"
	"github.com/charliek/herolog/internal/logs"
)

// StreamController is the subset of the stream manager the API drives
type StreamController interface {
	Connect(ctx context.Context, target string) error
	Disconnect()
	State() domain.ConnectionState
	Target() string
	SubscribeStates() <-chan domain.ConnectionState
	UnsubscribeStates(ch <-chan domain.ConnectionState)
}

// TargetLister lists the apps available to stream from
type TargetLister interface {
	ListTargets(ctx context.Context) ([]domain.Target, error)
}

// HandlersConfig wires the handlers to the rest of the program
type HandlersConfig struct {
	Stream     StreamController
	Logs       *logs.Manager
	Engine     *logs.Engine
	Targets    TargetLister // optional
	ShutdownFn func()       // optional
	Logger     *slog.Logger
}

// Handlers contains all HTTP handlers
type Handlers struct {
	stream     StreamController
	logManager *logs.Manager
	engine     *logs.Engine
	targets    TargetLister
	shutdownFn func()
	logger     *slog.Logger
	startedAt  time.Time
}

// NewHandlers creates new HTTP handlers
func NewHandlers(cfg HandlersConfig) *Handlers {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		stream:     cfg.Stream,
		logManager: cfg.Logs,
		engine:     cfg.Engine,
		targets:    cfg.Targets,
		shutdownFn: cfg.ShutdownFn,
		logger:     logger,
		startedAt:  time.Now(),
	}
}

// GetStatus handles GET /api/v1/status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	stats := h.logManager.Stats()
	resp := StatusResponse{
		Connection: ToConnectionResponse(h.stream.State()),
		Target:     h.stream.Target(),
		Buffer: BufferResponse{
			Records:     stats.TotalEntries,
			Capacity:    stats.BufferSize,
			Subscribers: stats.Subscribers,
		},
		Filter:        h.engine.Stats(),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		APIVersion:    "v1",
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetLogs handles GET /api/v1/logs
func (h *Handlers) GetLogs(w http.ResponseWriter, r *http.Request) {
	predicates, mode, err := h.queryFilter(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	lines := constants.DefaultLogLimit
	if v := r.URL.Query().Get("lines"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Error: "lines must be a positive integer",
				Code:  domain.ErrCodeInvalidRequest,
			})
			return
		}
		lines = min(n, constants.MaxLogLines)
	}

	var page []domain.LogRecord
	var total, visible int
	if len(predicates) == 0 {
		page = h.logManager.ReadLast(lines)
		total = h.logManager.Len()
		visible = total
	} else {
		all := h.logManager.Snapshot()
		matched := logs.Visible(all, predicates, mode)
		page = logs.LastN(matched, lines)
		total, visible = len(all), len(matched)
	}

	resp := LogsResponse{
		Logs:          make([]LogRecordResponse, len(page)),
		FilteredCount: total - visible,
		VisibleCount:  visible,
		TotalCount:    total,
	}
	for i, record := range page {
		resp.Logs[i] = ToLogRecordResponse(record)
	}
	writeJSON(w, http.StatusOK, resp)
}

// queryFilter reads ?filter=...&mode=... and falls back to the engine's active set
func (h *Handlers) queryFilter(r *http.Request) ([]logs.Predicate, logs.Mode, error) {
	query := r.URL.Query()
	specs := query["filter"]
	modeParam := query.Get("mode")

	if len(specs) == 0 && modeParam == "" {
		return h.engine.Predicates(), h.engine.Mode(), nil
	}

	mode := h.engine.Mode()
	if modeParam != "" {
		m, err := logs.ParseMode(modeParam)
		if err != nil {
			return nil, 0, err
		}
		mode = m
	}

	if len(specs) == 0 {
		return h.engine.Predicates(), mode, nil
	}

	predicates := make([]logs.Predicate, 0, len(specs))
	for _, spec := range specs {
		p, err := logs.ParsePredicate(spec)
		if err != nil {
			return nil, 0, err
		}
		predicates = append(predicates, p)
	}
	return predicates, mode, nil
}

// Connect handles POST /api/v1/connect
func (h *Handlers) Connect(w http.ResponseWriter, r *http.Request) {
	var req ConnectRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.stream.Connect(r.Context(), req.App); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ToConnectionResponse(h.stream.State()))
}

// Disconnect handles POST /api/v1/disconnect
func (h *Handlers) Disconnect(w http.ResponseWriter, r *http.Request) {
	h.stream.Disconnect()
	writeJSON(w, http.StatusOK, ToConnectionResponse(h.stream.State()))
}

// GetFilters handles GET /api/v1/filters
func (h *Handlers) GetFilters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.filtersResponse())
}

// AddFilter handles POST /api/v1/filters
func (h *Handlers) AddFilter(w http.ResponseWriter, r *http.Request) {
	var req AddFilterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := h.engine.AddPredicate(req.Filter); err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.filtersResponse())
}

// RemoveFilter handles DELETE /api/v1/filters/{index}
func (h *Handlers) RemoveFilter(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error: "filter index must be an integer",
			Code:  domain.ErrCodeInvalidRequest,
		})
		return
	}

	if !h.engine.Remove(index) {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error: "filter index out of range",
			Code:  domain.ErrCodeInvalidRequest,
		})
		return
	}
	writeJSON(w, http.StatusOK, h.filtersResponse())
}

// ClearFilters handles DELETE /api/v1/filters
func (h *Handlers) ClearFilters(w http.ResponseWriter, r *http.Request) {
	h.engine.ClearPredicates()
	writeJSON(w, http.StatusOK, h.filtersResponse())
}

// SetMode handles PUT /api/v1/filters/mode
func (h *Handlers) SetMode(w http.ResponseWriter, r *http.Request) {
	var req SetModeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	mode, err := logs.ParseMode(req.Mode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.engine.SetMode(mode)
	writeJSON(w, http.StatusOK, h.filtersResponse())
}

func (h *Handlers) filtersResponse() FiltersResponse {
	predicates := h.engine.Predicates()
	if predicates == nil {
		predicates = []logs.Predicate{}
	}
	return FiltersResponse{
		Mode:       h.engine.Mode(),
		Predicates: predicates,
		Stats:      h.engine.Stats(),
	}
}

// GetApps handles GET /api/v1/apps
func (h *Handlers) GetApps(w http.ResponseWriter, r *http.Request) {
	if h.targets == nil {
		writeJSON(w, http.StatusNotImplemented, ErrorResponse{
			Error: "app listing not available",
			Code:  domain.ErrCodeToolUnavailable,
		})
		return
	}

	apps, err := h.targets.ListTargets(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	if apps == nil {
		apps = []domain.Target{}
	}
	writeJSON(w, http.StatusOK, AppsResponse{Apps: apps})
}

// Shutdown handles POST /api/v1/shutdown
func (h *Handlers) Shutdown(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SuccessResponse{Success: true})

	if h.shutdownFn != nil {
		go h.shutdownFn()
	}
}

// decodeBody decodes a JSON body into v, writing a 400 on failure. An empty body leaves v zeroed.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error: "invalid request body: " + err.Error(),
		Code:  domain.ErrCodeInvalidRequest,
	})
	return false
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Warn("encoding JSON response", "error", err)
	}
}

// writeError maps domain errors to HTTP status codes
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := domain.ErrorCode(err)
	message := err.Error()

	switch {
	case errors.Is(err, domain.ErrInvalidPredicate):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotConnected):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotAuthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrSpawnFailed):
		status = http.StatusBadGateway
	case errors.Is(err, domain.ErrToolUnavailable), errors.Is(err, domain.ErrManagerClosed):
		status = http.StatusServiceUnavailable
	default:
		// unknown errors may carry local paths
		h.logger.Error("internal error", "error", err)
		message = "an internal error occurred"
	}

	writeJSON(w, status, ErrorResponse{Error: message, Code: code})
}
