package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"media-variants/internal/logging"
)

// KafkaDispatcher enqueues regeneration tasks on a Kafka topic. Tasks are
// keyed by media ID so one record's regenerations stay ordered within a
// partition.
type KafkaDispatcher struct {
	writer *kafka.Writer
}

// NewKafkaDispatcher creates a dispatcher writing to topic on brokers.
func NewKafkaDispatcher(brokers []string, topic string) *KafkaDispatcher {
	return &KafkaDispatcher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireOne,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, mediaID string) error {
	data, err := encodeTask(mediaID)
	if err != nil {
		return err
	}
	err = d.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(mediaID),
		Value: data,
	})
	if err != nil {
		return fmt.Errorf("queue: dispatch %s: %w", mediaID, err)
	}
	logging.Debug("Dispatched regeneration task for %s", mediaID)
	return nil
}

func (d *KafkaDispatcher) Close() error {
	return d.writer.Close()
}

// Consumer reads regeneration tasks off the topic and runs them on a worker
// pool. Task failures are logged and the offset is committed anyway; a task
// that fails deterministically must not wedge the partition.
type Consumer struct {
	reader  *kafka.Reader
	runner  Runner
	workers int
}

// NewConsumer creates a consumer in the given consumer group.
func NewConsumer(brokers []string, topic, groupID string, runner Runner, workers int) *Consumer {
	if workers < 1 {
		workers = 1
	}
	return &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        brokers,
			Topic:          topic,
			GroupID:        groupID,
			MinBytes:       1,
			MaxBytes:       10e6,
			CommitInterval: time.Second,
		}),
		runner:  runner,
		workers: workers,
	}
}

// Run consumes until the context is cancelled, then drains the workers and
// closes the reader.
func (c *Consumer) Run(ctx context.Context) error {
	logging.Info("Queue consumer started with %d worker(s)", c.workers)

	tasks := make(chan Task)
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for task := range tasks {
				if err := c.runner.Run(ctx, task.MediaID); err != nil {
					logging.Error("Regeneration task for %s failed: %v", task.MediaID, err)
				}
			}
		}()
	}

	var readErr error
	for {
		msg, err := c.reader.ReadMessage(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) && !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}

		task, err := decodeTask(msg.Value)
		if err != nil {
			logging.Warn("Dropping malformed task at offset %d: %v", msg.Offset, err)
			continue
		}

		select {
		case tasks <- task:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}

	close(tasks)
	wg.Wait()

	if err := c.reader.Close(); err != nil && readErr == nil {
		readErr = err
	}
	logging.Info("Queue consumer stopped")
	return readErr
}
