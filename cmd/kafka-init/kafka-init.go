package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	config "github.com/NordCoder/Gatekeeper/internal/config/auth-server"
	"github.com/NordCoder/Gatekeeper/internal/obs"
	kafkax "github.com/NordCoder/Gatekeeper/internal/repository/kafka"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config/auth-server.yaml", "path to the YAML config file")
	rf := flag.Int("replication-factor", 1, "replication factor of created topics")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	logger, err := obs.NewLogger(cfg.AsLoggerConfig())
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()
	logger = obs.Component(logger, "kafka-init")

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	for _, t := range []string{cfg.Kafka.EventsTopic, cfg.Kafka.RevocationsTopic} {
		if t == "" {
			continue
		}
		err := kafkax.EnsureTopic(ctx, cfg.Kafka.Brokers, kafkax.TopicSpec{
			Name:              t,
			NumPartitions:     cfg.Kafka.Partitions,
			ReplicationFactor: *rf,
			MaxWait:           10 * time.Second,
		}, logger)
		if err != nil {
			logger.Fatal("ensure topic", zap.String("topic", t), zap.Error(err))
		}
		if err := waitLeaders(ctx, cfg.Kafka.Brokers[0], t); err != nil {
			logger.Fatal("wait topic", zap.String("topic", t), zap.Error(err))
		}
	}
	logger.Info("kafka-init ok")
}

// waitLeaders blocks until every partition of topic has an elected leader.
func waitLeaders(ctx context.Context, broker, topic string) error {
	backoff := 200 * time.Millisecond
	const maxBackoff = 5 * time.Second
	for {
		conn, err := kafka.DialContext(ctx, "tcp", broker)
		if err == nil {
			parts, e2 := conn.ReadPartitions(topic)
			_ = conn.Close()
			if e2 == nil && len(parts) > 0 && allHaveLeader(parts) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("topic %s not ready: %w", topic, ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func allHaveLeader(parts []kafka.Partition) bool {
	for _, p := range parts {
		if p.Leader.ID == -1 {
			return false
		}
	}
	return true
}
