// Package store reads upcoming events and recipient delivery tokens from the
// Lawdesk database, either through Supabase's PostgREST API or directly over
// Postgres.
//
// Both backends report a missing profile, or one without a token, as
// ok=false rather than an error. Errors mean the store itself failed.
package store

import (
	"context"

	"github.com/lawdesk/lawdesk-reminders/internal/reminder"
)

const (
	eventsTable   = "events"
	profilesTable = "profile"
	tokenColumn   = "fcm_token"
	eventColumns  = "id,date,agenda,profile"
)

// Store is a complete reminder data source.
type Store interface {
	reminder.EventSource
	reminder.RecipientResolver
	Ping(ctx context.Context) error
}

var (
	_ Store = (*REST)(nil)
	_ Store = (*Postgres)(nil)
)
