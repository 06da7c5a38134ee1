// Command lawdesk-reminders sends 24h and 72h push reminders for upcoming
// Lawdesk events.
//
// Usage:
//
//	lawdesk-reminders serve
//	lawdesk-reminders run
//	lawdesk-reminders schedule --cron "@every 30m"
//	lawdesk-reminders token

// @title Lawdesk Reminders API
// @version 1.0.0
// @description Scheduled dispatcher that pushes 24h and 72h event reminders through Firebase Cloud Messaging.
// @BasePath /
// @schemes http https
// @contact.name Lawdesk
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/lawdesk/lawdesk-reminders/internal/api"
	"github.com/lawdesk/lawdesk-reminders/internal/api/handler"
	"github.com/lawdesk/lawdesk-reminders/internal/api/respond"
	"github.com/lawdesk/lawdesk-reminders/internal/config"
	"github.com/lawdesk/lawdesk-reminders/internal/credential"
	"github.com/lawdesk/lawdesk-reminders/internal/db"
	"github.com/lawdesk/lawdesk-reminders/internal/fcm"
	"github.com/lawdesk/lawdesk-reminders/internal/metrics"
	"github.com/lawdesk/lawdesk-reminders/internal/reminder"
	"github.com/lawdesk/lawdesk-reminders/internal/schedule"
	"github.com/lawdesk/lawdesk-reminders/internal/store"

	_ "github.com/lawdesk/lawdesk-reminders/docs" // swagger docs
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:           "lawdesk-reminders",
		Short:         "Lawdesk event reminder dispatcher",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(runCmd())
	root.AddCommand(scheduleCmd())
	root.AddCommand(tokenCmd())

	if err := root.Execute(); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// serve command
// --------------------------------------------------------------------------

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP trigger endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				router := api.NewRouter(handler.New(a.run, a.store, logger), a.cfg, prometheus.DefaultGatherer)

				addr := fmt.Sprintf("%s:%d", a.cfg.APIHost, a.cfg.APIPort)
				srv := &http.Server{
					Addr:         addr,
					Handler:      router,
					ReadTimeout:  10 * time.Second,
					WriteTimeout: 5 * time.Minute,
					IdleTimeout:  60 * time.Second,
				}

				errCh := make(chan error, 1)
				go func() {
					logger.Info("Starting Lawdesk Reminders API",
						"addr", addr,
						"environment", a.cfg.Environment,
						"store", a.storeKind(),
						"docs", fmt.Sprintf("http://localhost:%d/docs/", a.cfg.APIPort))
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						errCh <- err
					}
					close(errCh)
				}()

				select {
				case err := <-errCh:
					if err != nil {
						return fmt.Errorf("server failed: %w", err)
					}
				case <-ctx.Done():
				}
				logger.Info("Shutting down...")

				// Graceful shutdown with timeout
				shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer shutdownCancel()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					logger.Error("Shutdown error", "error", err)
				}
				logger.Info("Server stopped")
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// run command
// --------------------------------------------------------------------------

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Perform one reminder run and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				report, err := a.run(ctx)
				out := cmd.OutOrStdout()
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err != nil {
					_ = enc.Encode(respond.RunErrorResponse{Error: err.Error()})
					return err
				}
				if len(report.Outcomes) == 0 {
					logger.Info("Nothing to send", "processed_events", report.ProcessedEvents)
					return nil
				}
				return enc.Encode(respond.NewReportResponse(report))
			})
		},
	}
}

// --------------------------------------------------------------------------
// schedule command
// --------------------------------------------------------------------------

func scheduleCmd() *cobra.Command {
	var spec string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run reminders on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				if spec == "" {
					spec = a.cfg.ReminderSchedule
				}
				return schedule.Start(ctx, spec, a.run, logger)
			})
		},
	}
	cmd.Flags().StringVar(&spec, "cron", "", "Cron spec; defaults to REMINDER_SCHEDULE")
	return cmd
}

// --------------------------------------------------------------------------
// token command
// --------------------------------------------------------------------------

func tokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Check the service account by exchanging it for an access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			tok, err := newExchanger(cfg).Exchange(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "access token obtained for %s, expires %s\n",
				cfg.FirebaseClientEmail, tok.Expiry.Format(time.RFC3339))
			return nil
		},
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// app holds the long-lived collaborators shared by every run. Credentials are
// not shared: each run gets its own exchanger.
type app struct {
	cfg     *config.Config
	store   store.Store
	sender  *fcm.Sender
	metrics *metrics.Metrics
	pool    *db.Pool
}

func (a *app) storeKind() string {
	if a.pool != nil {
		return "postgres"
	}
	return "postgrest"
}

// run performs one complete, independent reminder run.
func (a *app) run(ctx context.Context) (*reminder.Report, error) {
	r := &reminder.Runner{
		Events:      a.store,
		Recipients:  a.store,
		Credentials: newExchanger(a.cfg),
		Sender:      a.sender,
		Workers:     a.cfg.DispatchWorkers,
		Metrics:     a.metrics,
		Logger:      logger,
	}
	return r.Run(ctx)
}

// withApp handles config loading, store selection, and context cancellation.
func withApp(fn func(ctx context.Context, a *app) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	a := &app{cfg: cfg}

	if cfg.UsePostgres() {
		logger.Info("Connecting to database...")
		pool, err := db.New(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()
		logger.Info("Database connected",
			"min_conns", cfg.DBPoolMinConns,
			"max_conns", cfg.DBPoolMaxConns)
		a.pool = pool
		a.store = store.NewPostgres(pool)
	} else {
		a.store = store.NewREST(cfg.SupabaseURL, cfg.SupabaseServiceKey, httpClient, logger)
	}

	a.sender = fcm.NewSender(cfg.FirebaseProjectID, cfg.FCMBaseURL, cfg.FCMRequestsPerMin, httpClient, logger)

	a.metrics, err = metrics.New(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	return fn(ctx, a)
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.Debug {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	slog.SetDefault(logger)
	return cfg, nil
}

func newExchanger(cfg *config.Config) *credential.Exchanger {
	return credential.NewExchanger(cfg.FirebaseClientEmail, cfg.FirebasePrivateKey, cfg.GoogleTokenURL,
		&http.Client{Timeout: cfg.HTTPTimeout})
}
