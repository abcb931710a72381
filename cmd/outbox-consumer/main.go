package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/examguard/platform/internal/domain"
	"github.com/examguard/platform/internal/infra"
)

// Consumes the proctor integration topics and relays them downstream. The
// termination topic is the one that matters operationally: each message is
// a forced submit the exam platform must act on.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("consumer failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if !cfg.KafkaEnabled {
		return fmt.Errorf("KAFKA_ENABLED must be true for the consumer")
	}

	topics := []domain.OutboxEventType{
		domain.OutboxViolationRecorded,
		domain.OutboxSessionTerminated,
	}

	var wg sync.WaitGroup
	for _, topic := range topics {
		consumer := infra.NewKafkaConsumer(cfg.KafkaBrokers, string(topic), cfg.KafkaGroupID, true, logger)
		wg.Add(1)
		go func(topic string, consumer *infra.KafkaConsumer) {
			defer wg.Done()
			defer consumer.Close()
			consume(ctx, topic, consumer, logger)
		}(string(topic), consumer)
	}

	logger.Info("outbox consumer started", "topics", topics, "group", cfg.KafkaGroupID)
	wg.Wait()
	return nil
}

func consume(ctx context.Context, topic string, consumer *infra.KafkaConsumer, logger *slog.Logger) {
	for {
		msg, err := consumer.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				logger.Info("consumer stopped", "topic", topic)
				return
			}
			logger.Error("read message failed", "topic", topic, "error", err)
			continue
		}

		var envelope struct {
			EventID     string          `json:"event_id"`
			EventType   string          `json:"event_type"`
			AggregateID string          `json:"aggregate_id"`
			Payload     json.RawMessage `json:"payload"`
		}
		if err := json.Unmarshal(msg.Value, &envelope); err != nil {
			logger.Error("malformed envelope", "topic", topic, "error", err)
			continue
		}

		switch domain.OutboxEventType(envelope.EventType) {
		case domain.OutboxSessionTerminated:
			logger.Warn("session force-submitted",
				"session_id", envelope.AggregateID,
				"event_id", envelope.EventID,
				"payload", string(envelope.Payload),
			)
		default:
			logger.Info("integration event",
				"topic", topic,
				"event_type", envelope.EventType,
				"aggregate_id", envelope.AggregateID,
			)
		}
	}
}
