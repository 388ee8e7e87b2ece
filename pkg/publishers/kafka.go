package publishers

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// kafkaPublisher writes events synchronously so delivery failures are counted.
// Messages are keyed by identity key, keeping one coupon on one partition.
type kafkaPublisher struct {
	id      string
	writer  kafkaWriter
	timeout time.Duration
	log     Logger
}

func newKafkaPublisher(_ context.Context, cfg PublisherConfig, log Logger) (Publisher, error) {
	if cfg.Kafka == nil {
		return nil, fmt.Errorf("publisher %q missing kafka configuration", cfg.ID)
	}

	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Kafka.Brokers...),
		Topic:        cfg.Kafka.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}

	return &kafkaPublisher{
		id:      cfg.ID,
		writer:  w,
		timeout: time.Duration(cfg.Kafka.TimeoutSeconds) * time.Second,
		log:     ensureLogger(log),
	}, nil
}

func (k *kafkaPublisher) ID() string   { return k.id }
func (k *kafkaPublisher) Type() string { return TypeKafka }

func (k *kafkaPublisher) Publish(ctx context.Context, evt Event) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if k.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, k.timeout)
		defer cancel()
	}

	msg := kafka.Message{
		Key:   []byte(evt.IdentityKey),
		Value: payload,
		Time:  evt.PublishedAt,
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.log.ErrorObj("kafka publisher write failed", "publisher_kafka_error", map[string]any{
			"publisher_id": k.id,
			"identity_key": evt.IdentityKey,
			"error":        err.Error(),
		})
		return fmt.Errorf("write kafka message: %w", err)
	}
	return nil
}

func (k *kafkaPublisher) Close() error {
	return k.writer.Close()
}
