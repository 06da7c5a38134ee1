package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lawdesk/lawdesk-reminders/internal/metrics"
)

// --------------------------------------------------------------------------
// Fakes
// --------------------------------------------------------------------------

type fakeEvents struct {
	events []Event
	err    error
	from   time.Time
	to     time.Time
}

func (f *fakeEvents) Upcoming(_ context.Context, from, to time.Time) ([]Event, error) {
	f.from, f.to = from, to
	return f.events, f.err
}

type fakeRecipients struct {
	tokens map[string]string
	err    error
}

func (f *fakeRecipients) Resolve(_ context.Context, profileID string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	tok, ok := f.tokens[profileID]
	if !ok || tok == "" {
		return "", false, nil
	}
	return tok, true, nil
}

type fakeCredentials struct {
	mu    sync.Mutex
	calls int
	token string
	err   error
}

func (f *fakeCredentials) AccessToken(context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.token, f.err
}

type fakeSender struct {
	mu       sync.Mutex
	sent     []Message
	bearers  []string
	failFor  map[string]error
	SendCall int
}

func (f *fakeSender) Send(_ context.Context, bearer string, msg Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SendCall++
	if err := f.failFor[msg.EventID]; err != nil {
		return err
	}
	f.sent = append(f.sent, msg)
	f.bearers = append(f.bearers, bearer)
	return nil
}

func (f *fakeSender) messageFor(eventID string) (Message, bool) {
	for _, m := range f.sent {
		if m.EventID == eventID {
			return m, true
		}
	}
	return Message{}, false
}

type fixture struct {
	runner      *Runner
	events      *fakeEvents
	recipients  *fakeRecipients
	credentials *fakeCredentials
	sender      *fakeSender
}

func setup(t *testing.T, events ...Event) *fixture {
	t.Helper()

	f := &fixture{
		events:      &fakeEvents{events: events},
		recipients:  &fakeRecipients{tokens: map[string]string{}},
		credentials: &fakeCredentials{token: "bearer-1"},
		sender:      &fakeSender{failFor: map[string]error{}},
	}
	f.runner = &Runner{
		Events:      f.events,
		Recipients:  f.recipients,
		Credentials: f.credentials,
		Sender:      f.sender,
		Now:         func() time.Time { return baseTime },
	}
	return f
}

func event(id string, hours float64, agenda, profile string) Event {
	return Event{ID: id, Date: hoursAfter(hours), Agenda: agenda, Profile: profile}
}

// --------------------------------------------------------------------------
// Scenarios
// --------------------------------------------------------------------------

func TestRun_NearTermEvent(t *testing.T) {
	t.Parallel()

	f := setup(t, event("ev-a", 10, "Hearing", "p1"))
	f.recipients.tokens["p1"] = "device-1"

	report, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, Outcome{Success: true, EventID: "ev-a", Message: "sent", Window: NearTerm}, report.Outcomes[0])

	msg, ok := f.sender.messageFor("ev-a")
	require.True(t, ok)
	assert.Equal(t, "device-1", msg.Token)
	assert.Equal(t, "Event Tomorrow!", msg.Title)
	assert.Contains(t, msg.Body, `"Hearing"`)
	assert.Contains(t, msg.Body, "less than 24 hours")
	assert.Equal(t, NearTerm, msg.Window)
	assert.Equal(t, hoursAfter(10), msg.EventDate)
	assert.Equal(t, []string{"bearer-1"}, f.sender.bearers)
}

func TestRun_MidTermEventWithoutAgenda(t *testing.T) {
	t.Parallel()

	f := setup(t, event("ev-b", 50, "", "p1"))
	f.recipients.tokens["p1"] = "device-1"

	report, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 1)
	assert.True(t, report.Outcomes[0].Success)

	msg, ok := f.sender.messageFor("ev-b")
	require.True(t, ok)
	assert.Equal(t, "Event in 3 Days", msg.Title)
	assert.Contains(t, msg.Body, "Your event")
	assert.Contains(t, msg.Body, "less than 3 days")
}

func TestRun_EventOutsideWindows(t *testing.T) {
	t.Parallel()

	f := setup(t, event("ev-c", 100, "Trial", "p1"), event("ev-now", 0, "", "p1"))
	f.recipients.tokens["p1"] = "device-1"

	report, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.ProcessedEvents)
	assert.Empty(t, report.Outcomes)
	assert.Zero(t, f.sender.SendCall)
	assert.Zero(t, f.credentials.calls, "no credential exchange without a dispatch")
}

func TestRun_NoEvents(t *testing.T) {
	t.Parallel()

	f := setup(t)

	report, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.ProcessedEvents)
	assert.Empty(t, report.Outcomes)
	assert.Zero(t, f.credentials.calls)
}

func TestRun_QueriesLookaheadWindow(t *testing.T) {
	t.Parallel()

	f := setup(t)
	_, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, baseTime, f.events.from)
	assert.Equal(t, baseTime.Add(72*time.Hour), f.events.to)
}

func TestRun_MissingRecipientContinues(t *testing.T) {
	t.Parallel()

	f := setup(t,
		event("ev-1", 5, "Filing", "p-missing"),
		event("ev-2", 30, "Deposition", "p-empty"),
		event("ev-3", 12, "Hearing", "p-ok"),
	)
	f.recipients.tokens["p-empty"] = ""
	f.recipients.tokens["p-ok"] = "device-ok"

	report, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 3)

	missing := report.Outcomes[0]
	assert.False(t, missing.Success)
	assert.Equal(t, "ev-1", missing.EventID)
	assert.Contains(t, missing.Message, "no")
	assert.Contains(t, missing.Message, "p-missing")

	assert.False(t, report.Outcomes[1].Success)
	assert.Contains(t, report.Outcomes[1].Message, "p-empty")

	assert.True(t, report.Outcomes[2].Success)
	assert.Equal(t, 1, f.sender.SendCall, "missing-token events never reach the sender")
	assert.Equal(t, 1, report.Sent())
	assert.Equal(t, 2, report.Failed())
}

func TestRun_SendFailureIsPerEvent(t *testing.T) {
	t.Parallel()

	f := setup(t,
		event("ev-1", 5, "", "p1"),
		event("ev-2", 6, "", "p1"),
	)
	f.recipients.tokens["p1"] = "device-1"
	f.sender.failFor["ev-1"] = errors.New(`fcm returned 404 (NOT_FOUND): Requested entity was not found.`)

	report, err := f.runner.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Outcomes, 2)

	assert.False(t, report.Outcomes[0].Success)
	assert.Contains(t, report.Outcomes[0].Message, "NOT_FOUND")
	assert.True(t, report.Outcomes[1].Success)
}

func TestRun_EventFetchFailure(t *testing.T) {
	t.Parallel()

	f := setup(t)
	f.events.err = errors.New("connection refused")

	report, err := f.runner.Run(context.Background())
	require.Nil(t, report)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "events", fe.Op)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Zero(t, f.sender.SendCall)
}

func TestRun_RecipientStoreFailureAborts(t *testing.T) {
	t.Parallel()

	f := setup(t, event("ev-1", 5, "", "p1"))
	f.recipients.err = errors.New("postgrest returned 500")

	report, err := f.runner.Run(context.Background())
	require.Nil(t, report)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Zero(t, f.sender.SendCall)
}

func TestRun_CredentialFailureAborts(t *testing.T) {
	t.Parallel()

	f := setup(t, event("ev-1", 5, "", "p1"), event("ev-2", 6, "", "p1"))
	f.recipients.tokens["p1"] = "device-1"
	f.credentials.err = errors.New("invalid_grant")

	report, err := f.runner.Run(context.Background())
	require.Nil(t, report)

	var ce *CredentialError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, err.Error(), "invalid_grant")
	assert.Equal(t, 1, f.credentials.calls)
	assert.Zero(t, f.sender.SendCall)
}

func TestRun_CredentialExchangedOnce(t *testing.T) {
	t.Parallel()

	for _, workers := range []int{1, 4} {
		f := setup(t,
			event("ev-1", 1, "", "p1"),
			event("ev-2", 20, "", "p1"),
			event("ev-3", 40, "", "p1"),
			event("ev-4", 70, "", "p1"),
		)
		f.recipients.tokens["p1"] = "device-1"
		f.runner.Workers = workers

		report, err := f.runner.Run(context.Background())
		require.NoError(t, err)
		require.Len(t, report.Outcomes, 4)
		assert.Equal(t, 1, f.credentials.calls, "workers=%d", workers)
		assert.Equal(t, 4, f.sender.SendCall)
	}
}

// TestRun_OneOutcomePerClassifiedEvent checks outcomes match classification
// one-to-one and keep retrieval order under parallel dispatch.
func TestRun_OneOutcomePerClassifiedEvent(t *testing.T) {
	t.Parallel()

	hours := []float64{-3, 2, 30, 80, 24, 72, 0, 72.5, 15, 60}
	var events []Event
	var want []string
	for i, h := range hours {
		ev := event(string(rune('a'+i)), h, "", "p1")
		events = append(events, ev)
		if Classify(baseTime, ev.Date) != None {
			want = append(want, ev.ID)
		}
	}

	f := setup(t, events...)
	f.recipients.tokens["p1"] = "device-1"
	f.runner.Workers = 3

	report, err := f.runner.Run(context.Background())
	require.NoError(t, err)

	var got []string
	for _, o := range report.Outcomes {
		got = append(got, o.EventID)
	}
	assert.Equal(t, want, got)
	assert.Equal(t, len(hours), report.ProcessedEvents)
}

func TestRun_RecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)

	f := setup(t, event("ev-1", 5, "", "p1"), event("ev-2", 50, "", "p-missing"))
	f.recipients.tokens["p1"] = "device-1"
	f.runner.Metrics = m

	_, err = f.runner.Run(context.Background())
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(reg, "lawdesk_reminders_notifications_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(reg, "lawdesk_reminders_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestOnceToken(t *testing.T) {
	t.Parallel()

	src := &fakeCredentials{token: "tok"}
	once := NewOnceToken(src)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := once.AccessToken(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, "tok", tok)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, src.calls)

	empty := NewOnceToken(&fakeCredentials{})
	_, err := empty.AccessToken(context.Background())
	var ce *CredentialError
	require.ErrorAs(t, err, &ce)
}
