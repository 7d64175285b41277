// Package progress publishes regeneration progress events. Events flow over
// a logical channel per media record so clients can follow one regeneration
// without seeing everyone else's. Publishing is strictly best-effort: a
// broker outage must never fail a regeneration.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
)

// Event types carried in the "type" field of every payload.
const (
	TypePresetComplete = "preset_complete"
	TypeComplete       = "complete"
	TypeFailed         = "failed"
)

// PresetComplete reports that one preset finished generating.
type PresetComplete struct {
	Type         string `json:"type"`
	Preset       string `json:"preset"`
	PresetIndex  int    `json:"presetIndex"`
	TotalPresets int    `json:"totalPresets"`
}

// Complete reports that a whole regeneration finished.
type Complete struct {
	Type          string `json:"type"`
	TotalVariants int    `json:"totalVariants"`
	ThumbnailURL  string `json:"thumbnailUrl,omitempty"`
}

// Failed reports that a regeneration aborted.
type Failed struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Channel returns the logical channel for a media record's regeneration
// events.
func Channel(mediaID string) string {
	return fmt.Sprintf("media/%s/variants", mediaID)
}

// Publisher delivers progress events to subscribers. Implementations must
// treat delivery as best-effort and never block the caller on a slow
// consumer.
type Publisher interface {
	Publish(ctx context.Context, channel string, event any) error
	Close() error
}

// Nop discards all events.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
func (Nop) Close() error                               { return nil }

func marshal(event any) ([]byte, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("progress: marshal event: %w", err)
	}
	return data, nil
}
