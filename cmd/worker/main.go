// Worker consumes auth events from Kafka and pushes them to Loki.
// Set KAFKA_BROKERS, TELEMETRY_KAFKA_TOPIC, KAFKA_GROUP_ID, and LOKI_URL.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"

	"auth-service/internal/config"
	"auth-service/internal/logger"
	"auth-service/internal/telemetry/loki"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info").Error("worker: load config", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	brokers := cfg.TelemetryKafkaBrokersList()
	if len(brokers) == 0 {
		log.Error("worker: KAFKA_BROKERS is required")
		os.Exit(1)
	}
	if cfg.LokiURL == "" {
		log.Error("worker: LOKI_URL is required")
		os.Exit(1)
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          cfg.TelemetryKafkaTopic,
		GroupID:        cfg.KafkaGroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		CommitInterval: time.Second,
	})
	defer reader.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("worker: consuming", "topic", cfg.TelemetryKafkaTopic, "group", cfg.KafkaGroupID, "loki", cfg.LokiURL)

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Info("worker: stopped")
				return
			}
			log.Warn("worker: kafka read error", "error", err)
			continue
		}

		pushCtx, pushCancel := context.WithTimeout(ctx, 10*time.Second)
		if err := loki.PushEventJSON(pushCtx, cfg.LokiURL, msg.Value); err != nil {
			log.Warn("worker: loki push failed", "partition", msg.Partition, "offset", msg.Offset, "error", err)
		}
		pushCancel()
	}
}
