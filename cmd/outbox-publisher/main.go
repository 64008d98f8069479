package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/config"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/db"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/instance"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/kafka"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/logger"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/metrics"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/migrate"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/outbox"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/outbox/idempotency"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/outbox/registry"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/pubsub"
	"github.com/Thangvh29/WEB-tmdt-sub001/pkg/redis"
)

const (
	serviceName = "outbox-publisher"
	guardTTL    = 24 * time.Hour
)

func main() {
	var admin dlqCommand
	flag.BoolVar(&admin.list, "list-dlq", false, "print dead-lettered events as JSON lines and exit")
	flag.StringVar(&admin.reason, "reason", "", "with -list-dlq, only show this reason (max_attempts|non_retryable|unroutable)")
	flag.StringVar(&admin.requeue, "requeue", "", "event id to move from the dead letter queue back to the outbox, then exit")
	flag.BoolVar(&admin.force, "force", false, "with -requeue, also requeue non transient failures")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: serviceName})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Environment: cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
	})

	sinkName, err := normalizeSink(cfg.Outbox.Sink)
	if err != nil {
		logg.Error(context.Background(), "invalid outbox sink", err)
		os.Exit(1)
	}

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	dlqRepo := outbox.NewDLQRepository(dbClient.DB())
	if admin.requested() {
		if err := runDLQCommand(context.Background(), dlqRepo, admin, os.Stdout); err != nil {
			logg.Error(context.Background(), "dlq command failed", err)
			os.Exit(1)
		}
		return
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()
	guard, err := idempotency.NewGuard(redisClient, guardTTL, instance.GetID())
	if err != nil {
		logg.Error(context.Background(), "failed to build publish guard", err)
		os.Exit(1)
	}

	var sink Sink
	switch sinkName {
	case sinkKafka:
		writer, err := kafka.NewWriter(context.Background(), cfg.Kafka, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap kafka", err)
			os.Exit(1)
		}
		defer func() {
			if err := writer.Close(); err != nil {
				logg.Error(context.Background(), "error closing kafka writer", err)
			}
		}()
		sink = kafkaSink{writer: writer}
	default:
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer func() {
			if err := pubsubClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub client", err)
			}
		}()
		sink = pubsubSink{client: pubsubClient}
	}

	eventRegistry, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		logg.Error(context.Background(), "failed to build event registry", err)
		os.Exit(1)
	}
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Sink:          sink,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      eventRegistry,
		DLQRepository: dlqRepo,
		Guard:         guard,
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create outbox publisher", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"serviceKind": serviceName,
		"sink":        sinkName,
		"instance":    instance.GetID(),
	})

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.WorkerAddr, cfg.Metrics.Path, prometheus.DefaultGatherer, logg); err != nil {
				logg.Error(ctx, "metrics endpoint stopped", err)
			}
		}()
	}

	logg.Info(ctx, "starting outbox publisher")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "outbox publisher shutting down gracefully")
}
