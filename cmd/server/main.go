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

	"quorum/internal/eventbus"
	ebmetrics "quorum/internal/eventbus/metrics"
	"quorum/internal/geography"
	mmetrics "quorum/internal/membership/metrics"
	"quorum/internal/membership/sequence"
	"quorum/internal/membership/service"
	"quorum/internal/membership/store"
	"quorum/internal/membership/validator"
	"quorum/internal/payment"
	"quorum/internal/platform/config"
	"quorum/internal/platform/httpserver"
	"quorum/internal/platform/logger"
	"quorum/internal/platform/metrics"
	"quorum/internal/platform/postgres"
	"quorum/internal/platform/redis"
	httptransport "quorum/internal/transport/http"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives under internal/membership.
func main() {
	cfg := config.FromEnv()
	log := logger.New()
	slog.SetDefault(log)

	if err := run(context.Background(), cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence. Without a DSN the service runs on in-memory stores,
	// which is enough for local development and demos.
	var (
		repo      service.Repository
		allocator service.SequenceAllocator
		txRunner  service.TxRunner
		letters   eventbus.DeadLetterStore
	)
	if cfg.Postgres.DSN != "" {
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()
		repo = store.NewPostgres(db)
		allocator = sequence.NewPostgres(db)
		txRunner = store.NewPostgresTx(db)
		letters = eventbus.NewPostgresDeadLetters(db)
	} else {
		log.Warn("no postgres DSN configured, using in-memory stores")
		repo = store.NewInMemory()
		allocator = sequence.NewInMemory()
		txRunner = store.NopTx{}
		letters = eventbus.NewInMemoryDeadLetters()
	}

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	// Evidence sources. Missing base URLs fall back to local stubs so the
	// server still boots in development.
	var geo service.GeographyLookup
	if cfg.Geography.BaseURL != "" {
		lookup := geography.NewHTTPClient(cfg.Geography.BaseURL, cfg.Evidence.Timeout)
		if redisClient != nil {
			geo = geography.NewCache(lookup, redisClient, cfg.Geography.CacheTTL)
		} else {
			geo = lookup
		}
	} else {
		log.Warn("no geography service configured, using empty directory")
		geo = geography.NewDirectory()
	}

	var payments service.PaymentConfirmer
	if cfg.Payments.BaseURL != "" {
		payments = payment.NewHTTPClient(cfg.Payments.BaseURL, cfg.Evidence.Timeout)
	} else {
		log.Warn("no payment service configured, using local recorder")
		payments = payment.NewRecorder()
	}

	// Outbound events flow through the relay, which retries with backoff
	// and dead-letters what it cannot deliver.
	var publisher eventbus.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		kafka, err := eventbus.NewKafka(ctx, eventbus.KafkaConfig{
			Brokers:    cfg.Kafka.Brokers,
			Topic:      cfg.Kafka.Topic,
			Partitions: cfg.Kafka.Partitions,
		})
		if err != nil {
			return err
		}
		defer kafka.Close()
		publisher = kafka
	} else {
		log.Warn("no kafka brokers configured, using in-memory bus")
		publisher = eventbus.NewInMemory()
	}

	relay := eventbus.NewRelay(publisher, letters,
		eventbus.WithLogger(log),
		eventbus.WithMetrics(ebmetrics.New()),
		eventbus.WithMaxAttempts(cfg.Relay.MaxAttempts),
		eventbus.WithBackoff(cfg.Relay.BaseBackoff, cfg.Relay.MaxBackoff),
		eventbus.WithInboxSize(cfg.Relay.InboxSize),
	)

	orchestrator := service.New(repo, allocator, txRunner, geo, payments, relay,
		service.WithLogger(log),
		service.WithMetrics(mmetrics.New()),
		service.WithConfig(validator.Config{
			MinimumApprovalLevel:          cfg.Policy.MinimumApprovalLevel,
			MinimumDues:                   cfg.Policy.MinimumDues,
			RequireGeographyForActivation: cfg.Policy.RequireGeographyForActivation,
		}),
		service.WithEvidenceTimeout(cfg.Evidence.Timeout),
	)

	router := httptransport.NewRouter(httptransport.RouterConfig{
		Logger:         log,
		Metrics:        metrics.New(),
		Membership:     orchestrator,
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return relay.Run(ctx)
	})

	g.Go(func() error {
		log.Info("starting quorum", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
