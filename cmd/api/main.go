package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"procureflow/acceptance"
	"procureflow/api"
	"procureflow/auth"
	"procureflow/config"
	"procureflow/db"
	"procureflow/dispute"
	"procureflow/lifecycle"
	"procureflow/order"
	"procureflow/quote"
	"procureflow/refdata"
	"procureflow/review"
	"procureflow/rfq"
	"procureflow/sweep"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	emitter := lifecycle.NewPGEmitter(pool, logger)

	authSvc := auth.NewService(auth.NewRepository(pool), cfg.JWTSecret)
	lookup := refdata.NewPGLookup(pool)

	rfqRepo := rfq.NewRepository(pool)
	rfqSvc := rfq.NewService(rfqRepo, emitter)

	quoteRepo := quote.NewRepository(pool)
	quoteSvc := quote.NewService(quoteRepo, lookup, emitter)

	orderRepo := order.NewRepository(pool)
	orderSvc := order.NewService(orderRepo, emitter)

	coordinator := acceptance.NewCoordinator(pool, acceptance.NewRepository(), orderRepo, emitter)

	disputeSvc := dispute.NewService(dispute.NewRepository(pool), emitter)
	reviewSvc := review.NewService(review.NewRepository(pool), emitter)

	sweeper := sweep.New(rfqRepo, quoteRepo, emitter, logger, cfg.SweepInterval, cfg.SweepBatch)

	server := api.NewServer(authSvc, rfqSvc, quoteSvc, orderSvc, disputeSvc, reviewSvc, coordinator)
	e := server.Router()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server starting", "addr", cfg.HTTPAddr)
		if err := e.Start(cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		err := sweeper.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
