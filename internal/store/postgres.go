package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/lawdesk/lawdesk-reminders/internal/db"
	"github.com/lawdesk/lawdesk-reminders/internal/reminder"
)

// querier is the subset of *pgxpool.Pool the store reads through.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres reads events and tokens directly from the Lawdesk database using
// the statements prepared by the db package.
type Postgres struct {
	q    querier
	ping func(ctx context.Context) error
}

// NewPostgres returns a store backed by pool.
func NewPostgres(pool *db.Pool) *Postgres {
	return &Postgres{q: pool, ping: pool.HealthCheck}
}

// Upcoming implements reminder.EventSource.
func (s *Postgres) Upcoming(ctx context.Context, from, to time.Time) ([]reminder.Event, error) {
	rows, err := s.q.Query(ctx, db.StmtUpcomingEvents, from, to)
	if err != nil {
		return nil, fmt.Errorf("query upcoming events: %w", err)
	}
	defer rows.Close()

	var events []reminder.Event
	for rows.Next() {
		var (
			ev     reminder.Event
			agenda *string
		)
		if err := rows.Scan(&ev.ID, &ev.Date, &agenda, &ev.Profile); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if agenda != nil {
			ev.Agenda = *agenda
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Resolve implements reminder.RecipientResolver.
func (s *Postgres) Resolve(ctx context.Context, profileID string) (string, bool, error) {
	var token *string
	err := s.q.QueryRow(ctx, db.StmtProfileToken, profileID).Scan(&token)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get fcm token: %w", err)
	}
	if token == nil || *token == "" {
		return "", false, nil
	}
	return *token, true, nil
}

// Ping verifies the database is reachable.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.ping(ctx)
}
