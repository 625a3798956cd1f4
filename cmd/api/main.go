package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/voicelane/backend/internal/config"
	"github.com/voicelane/backend/internal/db"
	"github.com/voicelane/backend/internal/dispatch"
	"github.com/voicelane/backend/internal/eligibility"
	"github.com/voicelane/backend/internal/ledger"
	"github.com/voicelane/backend/internal/middleware"
	"github.com/voicelane/backend/internal/notify"
	"github.com/voicelane/backend/internal/payments"
	"github.com/voicelane/backend/internal/processing"
	"github.com/voicelane/backend/internal/providers"
	"github.com/voicelane/backend/internal/requests"
	"github.com/voicelane/backend/internal/router"
	"github.com/voicelane/backend/internal/users"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		slog.Error("service failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Parse()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.DatabaseURI)
	if err != nil {
		return err
	}
	defer pool.Close()
	slog.Info("connected to PostgreSQL")

	if err := db.Migrate(pool); err != nil {
		return err
	}
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return err
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return err
	}
	slog.Info("migrations applied")

	userRepo := users.NewRepository(pool)
	ledgerRepo := ledger.NewRepository(pool)
	ledgerSvc := ledger.NewService(ledgerRepo)
	requestRepo := requests.NewRepository(pool)
	paymentRepo := payments.NewRepository(pool)

	// Enqueue func is set after the River client exists (breaks init cycle).
	var insertMu sync.Mutex
	var insertFn requests.EnqueueTxFunc
	enqueue := func(ctx context.Context, tx pgx.Tx, requestID uuid.UUID) error {
		insertMu.Lock()
		fn := insertFn
		insertMu.Unlock()
		if fn == nil {
			panic("river insert not wired")
		}
		return fn(ctx, tx, requestID)
	}

	engine := eligibility.New(cfg.FreeUsageCooldown)
	requestSvc := requests.NewService(requestRepo, ledgerSvc, userRepo, engine, enqueue)

	var notifier dispatch.Notifier = notify.Nop{}
	if cfg.BotToken != "" {
		notifier = notify.NewTelegram(cfg.BotToken)
	}
	processor := processing.NewMockProcessor(500*time.Millisecond, 3*time.Second)

	workers := river.NewWorkers()
	river.AddWorker(workers, dispatch.NewProcessRequestWorker(
		requestRepo, ledgerSvc, userRepo, processor, notifier, cfg.ProcessingTimeout, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.WorkerCount},
		},
		Workers:     workers,
		MaxAttempts: cfg.MaxAttempts,
	})
	if err != nil {
		return err
	}

	insertMu.Lock()
	insertFn = func(ctx context.Context, tx pgx.Tx, requestID uuid.UUID) error {
		_, err := riverClient.InsertTx(ctx, tx, dispatch.ProcessRequestArgs{RequestID: requestID}, nil)
		return err
	}
	insertMu.Unlock()

	paymentProviders := map[payments.Method]payments.Provider{
		payments.MethodTelegramStars: providers.NewTelegramStars(),
	}
	if cfg.YooMoneyToken != "" {
		paymentProviders[payments.MethodYooMoney] = providers.NewYooMoney(cfg.YooMoneyToken, cfg.YooMoneyWallet)
	}
	paymentSvc := payments.NewService(paymentRepo, ledgerSvc, userRepo, paymentProviders)
	reconciler := payments.NewReconciler(paymentRepo, paymentSvc, paymentProviders,
		cfg.ReconcileInterval, cfg.ReconcileMinAge, logger)

	requestHandler := requests.NewHandler(requestSvc, userRepo, logger)
	paymentHandler := payments.NewHandler(paymentSvc, userRepo, logger)
	ledgerHandler := ledger.NewHandler(ledgerSvc, userRepo, logger)
	userHandler := users.NewHandler(userRepo, logger)

	var handler http.Handler = router.New(requestHandler, paymentHandler, ledgerHandler, userHandler)
	throttle := middleware.NewThrottle(rate.Limit(cfg.ThrottlePerSecond), cfg.ThrottleBurst, 10*time.Minute)
	handler = throttle.Middleware(handler)
	if cfg.ServiceTokenSecret != "" {
		handler = middleware.ServiceAuth(cfg.ServiceTokenSecret)(handler)
	} else {
		slog.Warn("SERVICE_TOKEN_SECRET not set, API is unauthenticated")
	}
	handler = cors.New(cors.Options{
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-User-ID"},
	}).Handler(handler)

	server := &http.Server{
		Addr:    cfg.RunAddress,
		Handler: handler,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := riverClient.Start(gctx); err != nil && gctx.Err() == nil {
			return err
		}
		return nil
	})

	g.Go(func() error {
		reconciler.Run(gctx)
		return nil
	})

	// Requeue sweep: requests whose enqueued job was lost (e.g. a job
	// cancelled while the row stayed PENDING) get a fresh job.
	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				n, err := requestSvc.RequeuePending(gctx, 10*time.Minute, 100)
				if err != nil {
					slog.Error("requeue pending requests", "error", err)
				} else if n > 0 {
					slog.Info("requeued pending requests", "count", n)
				}
			}
		}
	})

	g.Go(func() error {
		slog.Info("starting HTTP server", "addr", cfg.RunAddress)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := riverClient.Stop(shutdownCtx); err != nil {
			slog.Error("river client stop", "error", err)
		}
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("shutdown complete")
	return nil
}
