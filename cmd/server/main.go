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

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/DoyleJ11/lane-duel-backend/internal/config"
	"github.com/DoyleJ11/lane-duel-backend/internal/httpapi"
	"github.com/DoyleJ11/lane-duel-backend/internal/hub"
	"github.com/DoyleJ11/lane-duel-backend/internal/matchqueue"
	"github.com/DoyleJ11/lane-duel-backend/internal/store"
	"github.com/DoyleJ11/lane-duel-backend/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() (err error) {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := newLogger(cfg.LogDev)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	journal, turns, err := openJournal(cfg, log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, journal.Close()) }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, hub.Config{Rules: cfg.Rules, Logger: log, Journal: journal})
	defer h.Shutdown()

	sessions := ws.NewSessions(h, log)
	queue := matchqueue.New(ctx, h, sessions, matchqueue.Config{
		TTL:           cfg.QueueTTL,
		SweepInterval: cfg.QueueSweepInterval,
		Logger:        log,
	})
	defer queue.Close()

	// Build the router with the hub injected
	handler := httpapi.SetupRoutes(h, turns, ws.Handler(ws.Deps{
		Rooms:          h,
		Queue:          queue,
		Sessions:       sessions,
		Logger:         log,
		OriginPatterns: cfg.AllowedOrigins,
	}))
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.String("turn_policy", string(cfg.Rules.TurnPolicy)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openJournal uses postgres when DATABASE_URL is set and a no-op journal otherwise.
// Writes go through the async writer; reads hit the database directly.
func openJournal(cfg config.Config, log *zap.Logger) (store.Journal, store.TurnLog, error) {
	if cfg.DatabaseURL == "" {
		log.Info("DATABASE_URL not set, turn journal disabled")
		return store.Nop{}, store.Nop{}, nil
	}
	db, err := store.OpenPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("journal: %w", err)
	}
	return store.NewAsync(db, cfg.JournalBuffer, log), db, nil
}
