package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/joho/godotenv"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/audit"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/config"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/handler"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/infra/postgresql"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/infra/postgresql/migrations"
	infraredis "github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/infra/redis"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/ingest"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/observability"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/queue"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/repository"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/service"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/stilling"
	"github.com/navikt/rekrutteringsbistand-kandidatvarsel-api/internal/transport"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 10 * time.Second
	// connections kept for the HTTP surface on top of the worker loops
	apiConnections = 10
)

func main() {
	// .env is only present in local development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("failed to load config: ", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel, cfg.NaisAppName)
	if err != nil {
		log.Fatal("failed to initialize logger: ", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("kandidatvarsel stopped with error", zap.Error(err))
		stop()
		_ = logger.Sync()
		log.Fatal(err)
	}
	logger.Info("kandidatvarsel stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	metrics := observability.NewMetrics()

	db, err := postgresql.NewPostgres(ctx, cfg.DatabaseDSN, postgresql.PoolConfig{
		MaxOpenConns: cfg.DispatcherConcurrency + 4 + apiConnections,
	})
	if err != nil {
		return fmt.Errorf("postgres initialization failed: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("postgres underlying db init failed: %w", err)
	}
	defer closeWithLog(logger, "postgres", sqlDB.Close)

	if err := migrations.Migrate(db); err != nil {
		return fmt.Errorf("database migrations failed: %w", err)
	}

	rdb, err := infraredis.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("redis initialization failed: %w", err)
	}
	defer closeWithLog(logger, "redis", rdb.Close)

	varsler := repository.NewGormVarselRepo(db)
	varselService := service.NewVarselService(varsler, logger, metrics)

	adapters, err := ingest.All(varselService, logger, metrics)
	if err != nil {
		return err
	}
	rapidQueues := make([]string, 0, len(adapters))
	for _, a := range adapters {
		rapidQueues = append(rapidQueues, queue.RapidQueueName(cfg.RapidQueuePrefix, a.Name()))
	}

	topology := queue.Topology{
		VarselExchange:   cfg.VarselExchange,
		VarselRoutingKey: cfg.VarselRoutingKey,
		StatusExchange:   cfg.VarselHendelseExchange,
		StatusQueue:      cfg.VarselHendelseQueue,
		RapidExchange:    cfg.RapidExchange,
		RapidQueues:      rapidQueues,
	}

	// one connection per loop family
	publisherBus, err := queue.NewRabbitMQ(ctx, cfg.RabbitMQURL, cfg.NaisAppName+"-publisher", topology)
	if err != nil {
		return fmt.Errorf("rabbitmq publisher connection failed: %w", err)
	}
	defer closeWithLog(logger, "rabbitmq publisher", publisherBus.Close)

	statusBus, err := queue.NewRabbitMQ(ctx, cfg.RabbitMQURL, cfg.NaisAppName+"-status", topology)
	if err != nil {
		return fmt.Errorf("rabbitmq status connection failed: %w", err)
	}
	defer closeWithLog(logger, "rabbitmq status", statusBus.Close)

	ingestBus, err := queue.NewRabbitMQ(ctx, cfg.RabbitMQURL, cfg.NaisAppName+"-ingest", topology)
	if err != nil {
		return fmt.Errorf("rabbitmq ingest connection failed: %w", err)
	}
	defer closeWithLog(logger, "rabbitmq ingest", ingestBus.Close)

	stillingClient, err := stilling.NewClient(cfg.StillingAPIURL)
	if err != nil {
		return fmt.Errorf("stilling client init failed: %w", err)
	}
	stillinger, err := infraredis.NewCachedStillingLookup(rdb, stillingClient, cfg.StillingCacheTTL(), logger)
	if err != nil {
		return fmt.Errorf("stilling cache init failed: %w", err)
	}
	rateLimiter, err := infraredis.NewWindowRateLimiter(rdb, cfg.DispatchRatePerSec)
	if err != nil {
		return fmt.Errorf("rate limiter init failed: %w", err)
	}

	dispatcher, err := service.NewDispatcher(
		varsler,
		queue.NewRabbitMQPublisher(publisherBus),
		stillinger,
		rateLimiter,
		service.DispatcherConfig{
			StillingLinkBaseURL: cfg.StillingLinkBaseURL,
			TreffLinkBaseURL:    cfg.TreffLinkBaseURL,
			ActiveFor:           cfg.VarselActiveFor(),
			Produsent: queue.Produsent{
				Cluster:   cfg.NaisClusterName,
				Namespace: cfg.NaisNamespace,
				Appnavn:   cfg.NaisAppName,
			},
			IdleBackoff:  cfg.DispatchIdleBackoff(),
			ErrorBackoff: cfg.DispatchErrorBackoff(),
		},
		logger,
		metrics,
	)
	if err != nil {
		return fmt.Errorf("dispatcher init failed: %w", err)
	}

	reconciler, err := service.NewReconciler(
		varsler,
		queue.NewRabbitMQPoller(statusBus, cfg.StatusPollMaxBatch, logger),
		service.ReconcilerConfig{
			PollWait:     cfg.StatusPollWait(),
			ErrorBackoff: cfg.DispatchErrorBackoff(),
		},
		logger,
		metrics,
	)
	if err != nil {
		return fmt.Errorf("reconciler init failed: %w", err)
	}

	consumer := queue.NewRabbitMQConsumer(ingestBus, 1, logger)

	app := fiber.New(fiber.Config{
		ErrorHandler:          transport.ErrorHandler(logger),
		DisableStartupMessage: true,
	})
	app.Use(metrics.HTTPMiddleware())
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))
	handler.RegisterHealthRoutes(app, sqlDB, rdb, publisherBus, statusBus, ingestBus)
	if err := handler.RegisterVarselRoutes(app, varselService, audit.NewZapLogger(logger)); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.APIPort))
	if err != nil {
		return fmt.Errorf("http listen failed: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	for i := 0; i < cfg.DispatcherConcurrency; i++ {
		g.Go(func() error { return dispatcher.Start(gctx) })
	}
	g.Go(func() error { return reconciler.Start(gctx) })
	for i, a := range adapters {
		a := a
		queueName := rapidQueues[i]
		g.Go(func() error { return consumer.Consume(gctx, queueName, a.Handle) })
	}
	g.Go(func() error { return transport.Serve(gctx, app, ln, shutdownTimeout) })

	logger.Info("kandidatvarsel started",
		zap.Int("port", cfg.APIPort),
		zap.Int("dispatchers", cfg.DispatcherConcurrency),
		zap.Strings("rapidQueues", rapidQueues),
	)

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func closeWithLog(logger *zap.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Warn("failed to close resource", zap.String("resource", name), zap.Error(err))
	}
}
