package syncer

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/dossier-hq/dossier/internal/canonical"
	"github.com/dossier-hq/dossier/internal/event"
)

// Relay is an optional secondary fan-out for pushed events. Failures have
// the same containment rules as mirror pushes: logged, never propagated.
type Relay interface {
	Publish(ctx context.Context, ev event.Event) error
	Close() error
}

// KafkaRelayConfig configures the Kafka relay.
type KafkaRelayConfig struct {
	// Brokers is the list of broker addresses (host:port).
	Brokers []string

	// Topic to write event envelopes to.
	Topic string

	// MaxAttempts caps publish retries on transient error. Defaults to 3.
	MaxAttempts int

	// WriteTimeout is the per-attempt write deadline. Defaults to 10s.
	WriteTimeout time.Duration
}

// KafkaRelay publishes canonical event envelopes keyed by case id, so one
// case's events land in one partition in order.
type KafkaRelay struct {
	writer      *kafka.Writer
	maxAttempts int
}

// NewKafkaRelay validates the config and constructs a relay.
func NewKafkaRelay(cfg KafkaRelayConfig) (*KafkaRelay, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: at least one broker required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic required")
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	w := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: cfg.WriteTimeout,
		Async:        false,
	})
	return &KafkaRelay{writer: w, maxAttempts: cfg.MaxAttempts}, nil
}

// Publish writes one event envelope, retrying with capped exponential
// backoff.
func (r *KafkaRelay) Publish(ctx context.Context, ev event.Event) error {
	value, err := canonical.Marshal(ev.Envelope())
	if err != nil {
		return fmt.Errorf("canonicalize envelope: %w", err)
	}

	var lastErr error
	backoff := 100 * time.Millisecond
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		msg := kafka.Message{
			Key:   []byte(ev.CaseID),
			Value: value,
			Time:  time.Now().UTC(),
		}
		attemptCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := r.writer.WriteMessages(attemptCtx, msg)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		time.Sleep(backoff)
		if backoff < 2*time.Second {
			backoff *= 2
		}
	}
	return fmt.Errorf("publish failed after %d attempts: %w", r.maxAttempts, lastErr)
}

// Close shuts down the underlying writer.
func (r *KafkaRelay) Close() error {
	if r == nil || r.writer == nil {
		return nil
	}
	return r.writer.Close()
}
