// Package respond provides shared JSON response utilities for API handlers.
package respond

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/lawdesk/lawdesk-reminders/internal/reminder"
)

// ErrorResponse is the standard error shape for request-level API errors
// (rate limiting, auth).
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// RunErrorResponse is returned when a reminder run fails as a whole.
type RunErrorResponse struct {
	Error string `json:"error"`
}

// ReportResponse is returned for a run that produced notifications.
type ReportResponse struct {
	Message         string             `json:"message"`
	ProcessedEvents int                `json:"processedEvents"`
	Notifications   []reminder.Outcome `json:"notifications"`
}

// NewReportResponse builds the response body for a finished run.
func NewReportResponse(r *reminder.Report) ReportResponse {
	return ReportResponse{
		Message: fmt.Sprintf("Processed %d events: %d notifications sent, %d failed",
			r.ProcessedEvents, r.Sent(), r.Failed()),
		ProcessedEvents: r.ProcessedEvents,
		Notifications:   r.Outcomes,
	}
}

// WriteReport writes a run report. A run without notifications gets 204 and
// an empty body.
func WriteReport(w http.ResponseWriter, r *reminder.Report) {
	if r == nil || len(r.Outcomes) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	WriteJSONObject(w, http.StatusOK, NewReportResponse(r))
}

// WriteRunError writes a failed run as {"error": "..."} with status 500.
func WriteRunError(w http.ResponseWriter, err error) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	WriteJSONObject(w, http.StatusInternalServerError, RunErrorResponse{Error: err.Error()})
}

// WriteError sends a structured JSON error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	resp := ErrorResponse{}
	resp.Error.Code = code
	resp.Error.Message = message
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	WriteJSONObject(w, status, resp)
}

// WriteJSONObject marshals a Go value to JSON and writes it.
func WriteJSONObject(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
