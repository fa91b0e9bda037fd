// Command sched-server accepts observing-schedule submissions over HTTP.
//
// POST /schedules takes a schedule file body, runs the full parse and
// constraint pass, archives accepted files, and returns the archive ID.
// GET /schedules lists the archive; GET /schedules/{id} returns the stored
// canonical text. Prometheus metrics are exposed on /metrics and tracing is
// configured from SCHED_TRACING_* environment variables.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/driftline/scheddef/instrument"
	"github.com/driftline/scheddef/internal/archive"
	"github.com/driftline/scheddef/internal/logging"
	"github.com/driftline/scheddef/internal/observability"
	"github.com/driftline/scheddef/timectrl"
)

func main() {
	addr := flag.String("addr", ":8080", "listen address")
	dbPath := flag.String("db", "schedules.db", "path to the archive database")
	profilePath := flag.String("profile", "", "YAML station profile overriding the built-in backend")
	flag.Parse()

	log := logging.NewFromEnv()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *addr, *dbPath, *profilePath, log); err != nil {
		log.Error(ctx, "server failed", logging.Err(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, addr, dbPath, profilePath string, log logging.Logger) error {
	prof := instrument.Default()
	if profilePath != "" {
		loaded, err := instrument.LoadProfile(profilePath)
		if err != nil {
			return fmt.Errorf("load station profile: %w", err)
		}
		prof = loaded
	}

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfigFromEnv(), log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	metrics, err := observability.NewSubmissionCollector(nil)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	store, err := archive.Open(dbPath, log)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer store.Close()

	if n, err := store.Count(ctx); err == nil {
		metrics.SetArchivedCount(n)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           newServer(store, metrics, prof, timectrl.System(), log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "listening",
			logging.String("addr", addr),
			logging.String("profile", prof.Name),
			logging.String("db", dbPath),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info(context.Background(), "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
