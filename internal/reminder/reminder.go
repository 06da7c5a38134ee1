// Package reminder finds calendar events entering a 24h or 72h reminder
// window and sends one push notification per qualifying event.
//
// Pipeline: fetch upcoming events → classify → resolve recipient token →
// dispatch via FCM → report. A run keeps no state; an external scheduler
// (or the schedule package) is expected to trigger it periodically.
package reminder

import (
	"context"
	"fmt"
	"time"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	nearTermHours = 24
	midTermHours  = 72

	// Lookahead is how far ahead of "now" the event store is queried.
	Lookahead = midTermHours * time.Hour

	defaultAgenda = "Your event"
	sentMessage   = "sent"
)

// --------------------------------------------------------------------------
// Types
// --------------------------------------------------------------------------

// Window is the reminder category an event falls into.
type Window int

const (
	None Window = iota
	NearTerm
	MidTerm
)

func (w Window) String() string {
	switch w {
	case NearTerm:
		return "near_term"
	case MidTerm:
		return "mid_term"
	default:
		return "none"
	}
}

// Kind is the value sent to clients as data.notificationType.
func (w Window) Kind() string {
	switch w {
	case NearTerm:
		return "24h"
	case MidTerm:
		return "72h"
	default:
		return ""
	}
}

// Event is a read-only snapshot of a calendar event.
type Event struct {
	ID      string
	Date    time.Time
	Agenda  string // empty when the event has no agenda
	Profile string // owning profile ID
}

// Message is a single push notification addressed to one device.
type Message struct {
	Token     string
	Title     string
	Body      string
	EventID   string
	EventDate time.Time
	Window    Window
}

// Outcome records the result of one dispatch attempt.
type Outcome struct {
	Success bool   `json:"success"`
	EventID string `json:"eventId"`
	Message string `json:"message"`
	Window  Window `json:"-"`
}

// Report is the result of a completed run.
type Report struct {
	RunID           string
	ProcessedEvents int
	Outcomes        []Outcome
	Duration        time.Duration
}

// Sent returns the number of successful dispatches.
func (r *Report) Sent() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}

// Failed returns the number of failed dispatches.
func (r *Report) Failed() int {
	return len(r.Outcomes) - r.Sent()
}

// Summary returns a human-readable summary.
func (r *Report) Summary() string {
	return fmt.Sprintf("run=%s events=%d notifications=%d sent=%d failed=%d dur=%s",
		r.RunID, r.ProcessedEvents, len(r.Outcomes), r.Sent(), r.Failed(),
		r.Duration.Round(time.Millisecond))
}

// --------------------------------------------------------------------------
// Collaborators
// --------------------------------------------------------------------------

// EventSource lists events whose date lies in [from, to].
type EventSource interface {
	Upcoming(ctx context.Context, from, to time.Time) ([]Event, error)
}

// RecipientResolver maps a profile ID to its delivery token. ok is false when
// the profile does not exist or has no token registered.
type RecipientResolver interface {
	Resolve(ctx context.Context, profileID string) (token string, ok bool, err error)
}

// TokenSource yields a bearer token for the push gateway.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// Sender delivers a single push message.
type Sender interface {
	Send(ctx context.Context, bearer string, msg Message) error
}
