package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/lawdesk/lawdesk-reminders/internal/reminder"
	"github.com/lawdesk/lawdesk-reminders/internal/textutil"
)

// REST reads from Supabase's PostgREST endpoint using the service role key.
type REST struct {
	httpClient *http.Client
	baseURL    string
	serviceKey string
	logger     *slog.Logger
}

// NewREST creates a PostgREST-backed store. baseURL is the Supabase project
// URL, e.g. https://abc.supabase.co.
func NewREST(baseURL, serviceKey string, httpClient *http.Client, logger *slog.Logger) *REST {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &REST{
		httpClient: httpClient,
		baseURL:    baseURL,
		serviceKey: serviceKey,
		logger:     logger,
	}
}

// --------------------------------------------------------------------------
// Row types
// --------------------------------------------------------------------------

// opaqueID accepts both string and numeric primary keys.
type opaqueID string

func (id *opaqueID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = opaqueID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id is neither string nor number: %s", b)
	}
	*id = opaqueID(n.String())
	return nil
}

type eventRow struct {
	ID      opaqueID `json:"id"`
	Date    string   `json:"date"`
	Agenda  *string  `json:"agenda"`
	Profile opaqueID `json:"profile"`
}

type profileRow struct {
	FCMToken *string `json:"fcm_token"`
}

// timestampLayouts covers timestamptz and timestamp columns as PostgREST
// renders them.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999-07",
	"2006-01-02 15:04:05.999999",
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// --------------------------------------------------------------------------
// Queries
// --------------------------------------------------------------------------

// Upcoming implements reminder.EventSource.
func (s *REST) Upcoming(ctx context.Context, from, to time.Time) ([]reminder.Event, error) {
	params := url.Values{}
	params.Set("select", eventColumns)
	params.Add("date", "gte."+from.UTC().Format(time.RFC3339Nano))
	params.Add("date", "lte."+to.UTC().Format(time.RFC3339Nano))

	var rows []eventRow
	if err := s.get(ctx, eventsTable, params, &rows); err != nil {
		return nil, err
	}

	events := make([]reminder.Event, 0, len(rows))
	for _, row := range rows {
		date, err := parseTimestamp(row.Date)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", row.ID, err)
		}
		ev := reminder.Event{ID: string(row.ID), Date: date, Profile: string(row.Profile)}
		if row.Agenda != nil {
			ev.Agenda = *row.Agenda
		}
		events = append(events, ev)
	}
	return events, nil
}

// Resolve implements reminder.RecipientResolver.
func (s *REST) Resolve(ctx context.Context, profileID string) (string, bool, error) {
	params := url.Values{}
	params.Set("select", tokenColumn)
	params.Set("id", "eq."+profileID)
	params.Set("limit", "1")

	var rows []profileRow
	if err := s.get(ctx, profilesTable, params, &rows); err != nil {
		return "", false, err
	}
	if len(rows) == 0 || rows[0].FCMToken == nil || *rows[0].FCMToken == "" {
		return "", false, nil
	}
	return *rows[0].FCMToken, true, nil
}

// Ping checks that PostgREST answers for the events table.
func (s *REST) Ping(ctx context.Context) error {
	params := url.Values{}
	params.Set("select", "id")
	params.Set("limit", "1")
	var rows []json.RawMessage
	return s.get(ctx, eventsTable, params, &rows)
}

// get performs a GET against /rest/v1/{table} and decodes the JSON array.
func (s *REST) get(ctx context.Context, table string, params url.Values, out interface{}) error {
	u := s.baseURL + "/rest/v1/" + table
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", s.serviceKey)
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request %s: %w", table, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("postgrest %s returned %d: %s", table, resp.StatusCode, textutil.Truncate(body, 200))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s response: %w", table, err)
	}
	s.logger.Debug("PostgREST query", "table", table, "bytes", len(body))
	return nil
}
