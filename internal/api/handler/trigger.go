package handler

import (
	"errors"
	"net/http"

	"github.com/lawdesk/lawdesk-reminders/internal/api/respond"
	"github.com/lawdesk/lawdesk-reminders/internal/reminder"
)

// Trigger runs the reminder dispatcher once.
// @Summary Run reminder dispatch
// @Description Sends a push notification for every event entering its 24h or 72h reminder window. Returns 204 when nothing was due.
// @Tags reminders
// @Produce json
// @Security BearerAuth
// @Success 200 {object} respond.ReportResponse
// @Success 204 "No qualifying events"
// @Failure 500 {object} respond.RunErrorResponse
// @Router /update [post]
func (h *Handler) Trigger(w http.ResponseWriter, r *http.Request) {
	report, err := h.run(r.Context())
	if err != nil {
		var fe *reminder.FetchError
		var ce *reminder.CredentialError
		switch {
		case errors.As(err, &fe):
			h.logger.Error("Reminder run aborted: store unavailable", "op", fe.Op, "error", fe.Err)
		case errors.As(err, &ce):
			h.logger.Error("Reminder run aborted: credential exchange failed", "error", ce.Err)
		default:
			h.logger.Error("Reminder run failed", "error", err)
		}
		respond.WriteRunError(w, err)
		return
	}
	respond.WriteReport(w, report)
}
