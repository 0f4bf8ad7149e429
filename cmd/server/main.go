// Command server runs the lending inventory HTTP service.
//
// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in internal/library.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"biblio/internal/library/handler"
	"biblio/internal/library/metrics"
	"biblio/internal/library/service"
	"biblio/internal/library/store"
	"biblio/internal/platform/config"
	"biblio/internal/platform/httpserver"
	"biblio/internal/platform/logger"
	"biblio/internal/platform/middleware"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()

	st, tx, cleanup, err := buildStore(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	m := metrics.New()
	svc := service.New(st, tx,
		service.WithLogger(log),
		service.WithMetrics(m),
		service.WithLoanPeriod(cfg.LoanPeriod),
	)

	router := chi.NewRouter()
	router.Use(middleware.Recovery(log))
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestTime)
	router.Use(middleware.Logger(log))

	handler.New(svc, log).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting biblio", "addr", cfg.Addr, "storage", cfg.Storage)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// buildStore selects the storage backend and its matching transactional
// boundary from configuration.
func buildStore(cfg config.Server) (store.Store, store.Tx, func(), error) {
	switch cfg.Storage {
	case "memory":
		mem := store.NewInMemory()
		return mem, store.NewMemoryTx(mem), func() {}, nil
	case "sqlite":
		return openSQL("sqlite", cfg.SQLitePath)
	case "postgres":
		if cfg.DatabaseDSN == "" {
			return nil, nil, nil, errors.New("BIBLIO_DB_DSN is required for postgres storage")
		}
		return openSQL("pgx", cfg.DatabaseDSN)
	default:
		return nil, nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

func openSQL(driver, dsn string) (store.Store, store.Tx, func(), error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// modernc's driver serializes writers; a single connection avoids
		// SQLITE_BUSY under concurrent transactions.
		db.SetMaxOpenConns(1)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, nil, err
	}
	return store.NewSQL(db), store.NewSQLTxRunner(db), func() { _ = db.Close() }, nil
}
