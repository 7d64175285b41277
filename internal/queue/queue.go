// Package queue moves regeneration requests between the upload path and the
// workers that execute them. Two dispatchers exist: Direct runs the
// regeneration inline, Kafka enqueues it for the consumer loop. Deployments
// pick one via configuration; small installs avoid the broker entirely.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
)

// Task is the message exchanged over the queue.
type Task struct {
	MediaID string `json:"mediaId"`
}

// Runner executes one regeneration. The regen orchestrator satisfies this.
type Runner interface {
	Run(ctx context.Context, mediaID string) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, mediaID string) error

func (f RunnerFunc) Run(ctx context.Context, mediaID string) error { return f(ctx, mediaID) }

// Direct executes regenerations synchronously on the caller's goroutine.
type Direct struct {
	runner Runner
}

// NewDirect creates a direct dispatcher.
func NewDirect(runner Runner) *Direct {
	return &Direct{runner: runner}
}

func (d *Direct) Dispatch(ctx context.Context, mediaID string) error {
	return d.runner.Run(ctx, mediaID)
}

func encodeTask(mediaID string) ([]byte, error) {
	data, err := json.Marshal(Task{MediaID: mediaID})
	if err != nil {
		return nil, fmt.Errorf("queue: encode task: %w", err)
	}
	return data, nil
}

func decodeTask(data []byte) (Task, error) {
	var t Task
	if err := json.Unmarshal(data, &t); err != nil {
		return Task{}, fmt.Errorf("queue: decode task: %w", err)
	}
	if t.MediaID == "" {
		return Task{}, fmt.Errorf("queue: task missing mediaId")
	}
	return t, nil
}
