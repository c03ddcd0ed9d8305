package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cyp0633/librecur/internal/config"
	"github.com/cyp0633/librecur/internal/planner"
	"github.com/cyp0633/librecur/internal/reminder"
	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/server"
	authmemory "github.com/cyp0633/librecur/server/auth/memory"
	"github.com/cyp0633/librecur/server/storage"
	"github.com/cyp0633/librecur/server/storage/memory"
	"github.com/cyp0633/librecur/server/storage/sqlite"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

func serveCmd(g *globals) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the task planner API",
		Long: `Serve the recurrence and task API over HTTP and, when reminders are
enabled, log each occurrence shortly before it comes due.

Examples:
  recurd serve
  recurd serve --config recurd.yaml --addr :9090
  LIBRECUR_STORAGE_DRIVER=sqlite recurd serve`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return g.serve(ctx, cfg, cfg.Logger(cmd.ErrOrStderr()))
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}

type closer interface{ Close() error }

func openStore(cfg config.StorageConfig, logger *slog.Logger) (storage.Storage, closer, error) {
	switch cfg.Driver {
	case "sqlite":
		store, err := sqlite.Open(cfg.DSN, sqlite.WithLogger(logger))
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return memory.New(), nil, nil
	}
}

// serve runs until ctx is cancelled, then drains requests and the
// reminder schedule.
func (g *globals) serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	store, closeStore, err := openStore(cfg.Storage, logger.With("component", "storage"))
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	if closeStore != nil {
		defer closeStore.Close()
	}

	engine, err := g.engine(cfg, true, recurrence.WithLogger(logger.With("component", "recurrence")))
	if err != nil {
		return err
	}
	defer engine.Close()

	svc := planner.New(store, engine,
		planner.WithLogger(logger.With("component", "planner")),
		planner.WithClock(g.now),
	)
	opts := []server.Option{
		server.WithLogger(logger.With("component", "http")),
		server.WithClock(g.now),
	}
	if len(cfg.Server.Users) > 0 {
		users, err := authmemory.FromEntries(cfg.Server.Users, authmemory.WithLogger(logger.With("component", "auth")))
		if err != nil {
			return err
		}
		opts = append(opts, server.WithAuthenticator(users, cfg.Server.Realm))
	}
	srv, err := server.New(svc, cfg.Server.Prefix, opts...)
	if err != nil {
		return err
	}

	if cfg.Reminder.Enabled {
		sched, err := newReminders(svc, engine.Zone(), cfg.Reminder, logger, g.now)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr, "prefix", srv.Prefix(), "storage", cfg.Storage.Driver, "zone", engine.Zone().String())
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func newReminders(svc *planner.Service, zone *time.Location, cfg config.ReminderConfig, logger *slog.Logger, now func() time.Time) (*reminder.Scheduler, error) {
	notifier := reminder.LogNotifier{Logger: logger.With("component", "reminder")}
	sweeper, err := reminder.NewSweeper(svc, notifier, cfg.Lead, reminder.WithLogger(logger.With("component", "reminder")))
	if err != nil {
		return nil, err
	}
	return reminder.NewScheduler(sweeper, cfg.Interval, zone,
		reminder.WithSchedulerLogger(logger.With("component", "reminder")),
		reminder.WithClock(now),
	)
}
