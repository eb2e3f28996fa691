package bus

import (
	"context"
	"time"

	kafka "github.com/segmentio/kafka-go"

	"github.com/moleculadb/insertdest/logger"
)

// KafkaBus publishes pipeline notifications on a Kafka topic, one partition
// per scheduler client id so that a given Foreman always reads its
// notifications in send order off a single partition.
type KafkaBus struct {
	writer *kafka.Writer
	log    logger.Logger

	// RetryInterval and MaxRetryInterval bound the backoff used for
	// temporary write errors.
	RetryInterval    time.Duration
	MaxRetryInterval time.Duration
}

// NewKafkaBus returns a KafkaBus writing to topic on the given brokers.
func NewKafkaBus(brokers []string, topic string, log logger.Logger) *KafkaBus {
	if log == nil {
		log = logger.NopLogger
	}
	return &KafkaBus{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		log:              log,
		RetryInterval:    50 * time.Millisecond,
		MaxRetryInterval: 2 * time.Second,
	}
}

// Send implements MessageBus.
func (b *KafkaBus) Send(ctx context.Context, senderClientID, receiverClientID string, payload []byte) error {
	msg := kafka.Message{
		Key:   []byte(receiverClientID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "sender-client-id", Value: []byte(senderClientID)},
		},
	}
	return writeWithBackoff(ctx, b.writer, b.log, b.RetryInterval, b.MaxRetryInterval, msg)
}

// Close flushes and closes the underlying writer.
func (b *KafkaBus) Close() error {
	return b.writer.Close()
}

// writeWithBackoff retries temporary kafka-go write errors, doubling the
// wait after each retry up to maxInterval, and bails out immediately on
// anything non-temporary.
func writeWithBackoff(ctx context.Context, w *kafka.Writer, log logger.Logger, interval, maxInterval time.Duration, messages ...kafka.Message) error {
	var lastErr error
	for {
		err := w.WriteMessages(ctx, messages...)
		switch e := err.(type) {
		case nil:
			return nil
		case kafka.Error:
			lastErr = e
			if !e.Temporary() {
				return lastErr
			}
		case kafka.WriteErrors:
			var remaining []kafka.Message
			for i, werr := range e {
				switch werr := werr.(type) {
				case nil:
					continue
				case kafka.Error:
					if werr.Temporary() {
						remaining = append(remaining, messages[i])
						continue
					}
				}
				return werr
			}
			if len(remaining) == 0 {
				return nil
			}
			messages = remaining
			lastErr = e
		default:
			return err
		}

		log.Warnf("retrying pipeline notification publish after error: %v", lastErr)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		if interval *= 2; interval > maxInterval {
			interval = maxInterval
		}
	}
}
