// Package schedule triggers reminder runs from an in-process cron loop.
// Used when the service runs as a long-lived process instead of being
// invoked by an external scheduler.
package schedule

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/lawdesk/lawdesk-reminders/internal/reminder"
)

// RunFunc performs one reminder run.
type RunFunc func(ctx context.Context) (*reminder.Report, error)

var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Parse validates a cron spec ("0 * * * *", "@hourly", "@every 15m").
func Parse(spec string) (cron.Schedule, error) {
	s, err := parser.Parse(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs fn on every tick of spec until ctx is cancelled. A tick that
// fires while the previous run is still in flight is skipped. Returns an
// error immediately if spec is invalid; otherwise blocks and returns nil
// once in-flight runs have finished.
func Start(ctx context.Context, spec string, fn RunFunc, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	sched, err := Parse(spec)
	if err != nil {
		return err
	}

	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)
	c.Schedule(sched, cron.FuncJob(func() {
		report, err := fn(ctx)
		if err != nil {
			logger.Error("Scheduled reminder run failed", "error", err)
			return
		}
		logger.Info("Scheduled reminder run finished",
			"run_id", report.RunID,
			"summary", report.Summary())
	}))

	c.Start()
	logger.Info("Reminder schedule started", "schedule", spec)

	<-ctx.Done()
	<-c.Stop().Done()
	logger.Info("Reminder schedule stopped")
	return nil
}

// --------------------------------------------------------------------------
// cron.Logger adapter
// --------------------------------------------------------------------------

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
