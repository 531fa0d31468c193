package main

import (
	"context"
	"errors"
	"sync"

	"github.com/NordCoder/Gatekeeper/internal/bootstrap"
	config "github.com/NordCoder/Gatekeeper/internal/config/auth-server"
	domainauth "github.com/NordCoder/Gatekeeper/internal/domain/auth"
	"github.com/NordCoder/Gatekeeper/internal/obs/retry"
	"github.com/NordCoder/Gatekeeper/internal/outbox"
	kafkax "github.com/NordCoder/Gatekeeper/internal/repository/kafka"
	"github.com/NordCoder/Gatekeeper/internal/services/auth-server/revocation"
	"github.com/NordCoder/Gatekeeper/internal/services/auth-server/sweeper"
	"go.uber.org/zap"
)

func goWorker(ctx context.Context, wg *sync.WaitGroup, logger *zap.Logger, name string, run func(context.Context) error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("worker stopped", zap.String("worker", name), zap.Error(err))
		}
	}()
}

// initEvents returns the session event sink. Events go through the outbox to
// Kafka when both are available and are dropped otherwise.
func initEvents(ctx context.Context, cfg *config.Config, store *bootstrap.Store, logger *zap.Logger, wg *sync.WaitGroup) (domainauth.SessionEvents, func()) {
	if !cfg.Kafka.Enable {
		return domainauth.NopEvents{}, func() {}
	}
	if store.Outbox == nil {
		logger.Warn("session events disabled: storage driver has no outbox", zap.String("driver", store.Driver))
		return domainauth.NopEvents{}, func() {}
	}

	producer := kafkax.BootstrapProducer(ctx, kafkax.ProducerConfig{
		Brokers: cfg.Kafka.Brokers,
		Topic:   cfg.Kafka.EventsTopic,
	}, cfg.Kafka.Partitions, logger)

	dispatch := outbox.MakeGlobalOutboxHandler(
		kafkax.NewSessionEventsKafka(producer),
		retry.DefaultKafkaPolicy("outbox.session_event", logger),
	)
	runner := outbox.NewOutboxRunner(logger, store.Outbox, dispatch, outbox.RunnerConfig{
		Workers:       cfg.Outbox.Workers,
		BatchSize:     cfg.Outbox.BatchSize,
		WaitTime:      cfg.Outbox.WaitTime,
		InProgressTTL: cfg.Outbox.InProgressTTL,
	})
	goWorker(ctx, wg, logger, "outbox", runner.Run)

	return outbox.NewEmitter(store.Outbox), func() {
		if err := producer.Close(); err != nil {
			logger.Warn("close producer", zap.Error(err))
		}
	}
}

func startSweeper(ctx context.Context, cfg *config.Config, store *bootstrap.Store, logger *zap.Logger, wg *sync.WaitGroup) {
	if !cfg.Sweeper.Enable {
		return
	}
	r := sweeper.New(logger, sweeper.NewUC(store.Tokens, nil), cfg.Sweeper.Interval)
	goWorker(ctx, wg, logger, "sweeper", r.Run)
}

func startRevocations(ctx context.Context, cfg *config.Config, uc revocation.Revoker, logger *zap.Logger, wg *sync.WaitGroup) func() {
	if !cfg.Kafka.Enable {
		return func() {}
	}
	consumer := kafkax.BootstrapConsumer(ctx, kafkax.ConsumerConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Topic:   cfg.Kafka.RevocationsTopic,
	}, cfg.Kafka.Partitions, logger)

	ctrl := revocation.NewController(logger, consumer, uc, retry.DefaultKafkaPolicy("revocation.logout_all", logger))
	goWorker(ctx, wg, logger, "revocations", ctrl.Run)

	return func() {
		if err := consumer.Close(); err != nil {
			logger.Warn("close consumer", zap.Error(err))
		}
	}
}
