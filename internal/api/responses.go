package api

import (
	"time"

	"github.com/charliek/herolog/internal/domain"
	"github.com/charliek/herolog/internal/logs"
)

// StatusResponse represents the response for GET /status
type StatusResponse struct {
	Connection    ConnectionResponse `json:"connection"`
	Target        string             `json:"target,omitempty"`
	Buffer        BufferResponse     `json:"buffer"`
	Filter        logs.FilterStats   `json:"filter"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	APIVersion    string             `json:"api_version"`
}

// ConnectionResponse describes the stream manager state
type ConnectionResponse struct {
	Status  string `json:"status"`
	Attempt int    `json:"attempt,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Code    string `json:"code,omitempty"`
}

// BufferResponse describes the record buffer
type BufferResponse struct {
	Records     int `json:"records"`
	Capacity    int `json:"capacity"`
	Subscribers int `json:"subscribers"`
}

// LogsResponse represents the response for GET /logs
type LogsResponse struct {
	Logs          []LogRecordResponse `json:"logs"`
	FilteredCount int                 `json:"filtered_count"`
	VisibleCount  int                 `json:"visible_count"`
	TotalCount    int                 `json:"total_count"`
}

// LogRecordResponse represents a single record
type LogRecordResponse struct {
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
	Dyno      string `json:"dyno"`
	Level     string `json:"level"`
	Message   string `json:"message"`
}

// FiltersResponse represents the response for the /filters endpoints
type FiltersResponse struct {
	Mode       logs.Mode        `json:"mode"`
	Predicates []logs.Predicate `json:"predicates"`
	Stats      logs.FilterStats `json:"stats"`
}

// AppsResponse represents the response for GET /apps
type AppsResponse struct {
	Apps []domain.Target `json:"apps"`
}

// ConnectRequest is the body for POST /connect
type ConnectRequest struct {
	App string `json:"app"`
}

// AddFilterRequest is the body for POST /filters
type AddFilterRequest struct {
	Filter string `json:"filter"`
}

// SetModeRequest is the body for PUT /filters/mode
type SetModeRequest struct {
	Mode string `json:"mode"`
}

// SuccessResponse represents a simple success response
type SuccessResponse struct {
	Success bool `json:"success"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ToConnectionResponse converts a connection state for the API
func ToConnectionResponse(state domain.ConnectionState) ConnectionResponse {
	resp := ConnectionResponse{
		Status:  state.Status.String(),
		Attempt: state.Attempt,
		Reason:  state.Reason,
	}
	if state.Status == domain.StatusError && state.Err != nil {
		resp.Code = domain.ErrorCode(state.Err)
	}
	return resp
}

// ToLogRecordResponse converts a record for the API
func ToLogRecordResponse(record domain.LogRecord) LogRecordResponse {
	return LogRecordResponse{
		Timestamp: record.Timestamp.Format(time.RFC3339Nano),
		Source:    record.Source,
		Dyno:      record.Dyno,
		Level:     levelName(record.Level),
		Message:   record.Message,
	}
}

func levelName(l domain.Level) string {
	b, _ := l.MarshalText()
	return string(b)
}
