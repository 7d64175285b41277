package progress

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"

	"media-variants/internal/logging"
	"media-variants/internal/metrics"
)

// Kafka publishes events to a single topic, keyed by channel so partitions
// preserve per-media ordering. Writes that fail are logged and dropped.
type Kafka struct {
	writer *kafka.Writer
}

// NewKafka creates a publisher writing to topic on the given brokers.
func NewKafka(brokers []string, topic string) *Kafka {
	return &Kafka{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: kafka.RequireOne,
			Async:        true,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					metrics.ProgressPublishTotal.WithLabelValues("error").Add(float64(len(messages)))
					logging.Warn("Progress publish failed for %d message(s): %v", len(messages), err)
					return
				}
				metrics.ProgressPublishTotal.WithLabelValues("ok").Add(float64(len(messages)))
			},
		},
	}
}

func (k *Kafka) Publish(ctx context.Context, channel string, event any) error {
	data, err := marshal(event)
	if err != nil {
		return err
	}

	err = k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(channel),
		Value: data,
	})
	if err != nil {
		metrics.ProgressPublishTotal.WithLabelValues("error").Inc()
		logging.Warn("Progress publish to %s failed: %v", channel, err)
	}
	return err
}

func (k *Kafka) Close() error {
	return k.writer.Close()
}
