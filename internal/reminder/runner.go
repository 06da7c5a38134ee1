package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lawdesk/lawdesk-reminders/internal/metrics"
)

// Runner drives one reminder run. Build a fresh Runner (or at least a fresh
// credential source) per run; nothing is shared between runs.
type Runner struct {
	Events      EventSource
	Recipients  RecipientResolver
	Credentials TokenSource
	Sender      Sender

	// Workers bounds concurrent dispatches. Values below 2 process events
	// sequentially in retrieval order.
	Workers int

	Now     func() time.Time
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Run fetches upcoming events and sends one notification per event in a
// reminder window. Per-event failures are captured in the Report. A
// *FetchError or *CredentialError aborts the run and is returned instead.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.NewString()}
	logger := r.logger().With("run_id", report.RunID)

	now := r.now()
	events, err := r.Events.Upcoming(ctx, now, now.Add(Lookahead))
	if err != nil {
		r.Metrics.RecordRun(metrics.RunFetchError, time.Since(start))
		return nil, asFetchError("events", err)
	}
	report.ProcessedEvents = len(events)
	if len(events) == 0 {
		report.Duration = time.Since(start)
		r.Metrics.RecordRun(metrics.RunOK, report.Duration)
		logger.Info("No upcoming events")
		return report, nil
	}
	logger.Info("Fetched upcoming events", "count", len(events))

	outcomes, err := r.process(ctx, now, events, logger)
	if err != nil {
		r.Metrics.RecordRun(runResult(err), time.Since(start))
		return nil, err
	}
	for _, o := range outcomes {
		if o != nil {
			report.Outcomes = append(report.Outcomes, *o)
		}
	}

	report.Duration = time.Since(start)
	r.Metrics.RecordRun(metrics.RunOK, report.Duration)
	logger.Info("Reminder run complete", "summary", report.Summary())
	return report, nil
}

// process handles every event and returns one slot per event, nil for events
// outside both windows. Slots are indexed by retrieval order so the report
// keeps that order regardless of worker count.
func (r *Runner) process(ctx context.Context, now time.Time, events []Event, logger *slog.Logger) ([]*Outcome, error) {
	token := NewOnceToken(r.Credentials)
	outcomes := make([]*Outcome, len(events))

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, ev := range events {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out, err := r.handle(gctx, now, ev, token, logger)
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// handle runs one event through classify → resolve → dispatch. Only store
// and credential failures are returned as errors.
func (r *Runner) handle(ctx context.Context, now time.Time, ev Event, token TokenSource, logger *slog.Logger) (*Outcome, error) {
	window := Classify(now, ev.Date)
	if window == None {
		return nil, nil
	}
	out := &Outcome{EventID: ev.ID, Window: window}

	deviceToken, ok, err := r.Recipients.Resolve(ctx, ev.Profile)
	if err != nil {
		return nil, asFetchError(fmt.Sprintf("recipient %s", ev.Profile), err)
	}
	if !ok {
		out.Message = fmt.Sprintf("%s for profile %s", ErrRecipientMissing, ev.Profile)
		logger.Warn("Skipping event without recipient", "event_id", ev.ID, "profile", ev.Profile)
		r.Metrics.RecordNotification(window.Kind(), false)
		return out, nil
	}

	bearer, err := token.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	title, body := Compose(ev, window)
	msg := Message{
		Token:     deviceToken,
		Title:     title,
		Body:      body,
		EventID:   ev.ID,
		EventDate: ev.Date,
		Window:    window,
	}
	if err := r.Sender.Send(ctx, bearer, msg); err != nil {
		out.Message = err.Error()
		logger.Warn("Notification send failed", "event_id", ev.ID, "window", window.Kind(), "error", err)
		r.Metrics.RecordNotification(window.Kind(), false)
		return out, nil
	}

	out.Success = true
	out.Message = sentMessage
	logger.Debug("Notification sent", "event_id", ev.ID, "window", window.Kind())
	r.Metrics.RecordNotification(window.Kind(), true)
	return out, nil
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func runResult(err error) string {
	var fe *FetchError
	var ce *CredentialError
	switch {
	case errors.As(err, &fe):
		return metrics.RunFetchError
	case errors.As(err, &ce):
		return metrics.RunCredentialError
	default:
		return metrics.RunError
	}
}
