// Package regen orchestrates variant regeneration: it cleans a media
// record's existing variants, regenerates the full preset matrix, records
// the results, and streams progress events while doing so.
package regen

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"media-variants/internal/database"
	"media-variants/internal/logging"
	"media-variants/internal/metrics"
	"media-variants/internal/preset"
	"media-variants/internal/progress"
	"media-variants/internal/variant"
)

// ErrInProgress is returned when a regeneration for the same media record is
// already running. Callers should treat it as "try again later", not as a
// failure.
var ErrInProgress = errors.New("regen: regeneration already in progress for this media")

// Report summarizes one finished regeneration.
type Report struct {
	TotalVariants int
	Failed        int
	ThumbnailURL  string
}

// Options narrow a regeneration.
type Options struct {
	// Preset limits the run to a single named preset. Empty means all.
	Preset string
}

// Orchestrator drives regenerations end to end. It holds a per-media lock so
// concurrent requests for the same record cannot interleave their clean and
// generate phases.
type Orchestrator struct {
	db        *database.Database
	registry  *preset.Registry
	generator *variant.Generator
	cleaner   *variant.Cleaner
	resolver  *variant.PathResolver
	publisher progress.Publisher

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewOrchestrator creates an orchestrator. A nil publisher disables progress
// events.
func NewOrchestrator(db *database.Database, registry *preset.Registry, generator *variant.Generator,
	cleaner *variant.Cleaner, resolver *variant.PathResolver, publisher progress.Publisher) *Orchestrator {

	if publisher == nil {
		publisher = progress.Nop{}
	}
	return &Orchestrator{
		db:        db,
		registry:  registry,
		generator: generator,
		cleaner:   cleaner,
		resolver:  resolver,
		publisher: publisher,
		inFlight:  make(map[string]struct{}),
	}
}

// Regenerate loads the media record and regenerates its variants.
func (o *Orchestrator) Regenerate(ctx context.Context, mediaID string, opts Options) (*Report, error) {
	m, err := o.db.MediaByID(ctx, mediaID)
	if err != nil {
		return nil, fmt.Errorf("regen: load media %s: %w", mediaID, err)
	}
	return o.RegenerateMedia(ctx, m, opts)
}

// RegenerateMedia regenerates variants for an already-loaded record. The
// clean phase removes stale files and index rows first; a storage failure
// there aborts the run, since generating on top of an unknown on-disk state
// would leave orphans behind. Generation failures on individual variants are
// tolerated and reported in the count.
func (o *Orchestrator) RegenerateMedia(ctx context.Context, m *database.Media, opts Options) (*Report, error) {
	if !o.acquire(m.ID) {
		return nil, ErrInProgress
	}
	defer o.release(m.ID)

	start := time.Now()
	report, err := o.run(ctx, m, opts)
	metrics.RegenerationDuration.Observe(time.Since(start).Seconds())

	switch {
	case err != nil:
		metrics.RegenerationsTotal.WithLabelValues("failed").Inc()
		o.publish(ctx, m.ID, progress.Failed{Type: progress.TypeFailed, Error: err.Error()})
		return nil, err
	case report.Failed > 0:
		metrics.RegenerationsTotal.WithLabelValues("partial").Inc()
	default:
		metrics.RegenerationsTotal.WithLabelValues("complete").Inc()
	}

	o.publish(ctx, m.ID, progress.Complete{
		Type:          progress.TypeComplete,
		TotalVariants: report.TotalVariants,
		ThumbnailURL:  report.ThumbnailURL,
	})
	return report, nil
}

func (o *Orchestrator) run(ctx context.Context, m *database.Media, opts Options) (*Report, error) {
	presets, err := o.selectPresets(opts)
	if err != nil {
		return nil, err
	}

	if !m.IsImage() {
		logging.Debug("Skipping regeneration for non-image %s (%s)", m.ID, m.Mime)
		return &Report{}, nil
	}

	// Clean phase.
	for _, p := range presets {
		if _, err := o.cleaner.CleanForPreset(ctx, m, p); err != nil {
			return nil, fmt.Errorf("regen: clean %s/%s: %w", m.ID, p.Name, err)
		}
	}
	if opts.Preset == "" {
		if _, err := o.db.DeleteVariantsByMedia(ctx, m.ID); err != nil {
			return nil, fmt.Errorf("regen: clear variant index for %s: %w", m.ID, err)
		}
	}

	// Generate phase.
	report := &Report{}
	for i, p := range presets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		generated, failed, err := o.generator.GenerateForPreset(ctx, m, p)
		if err != nil {
			return nil, fmt.Errorf("regen: generate %s/%s: %w", m.ID, p.Name, err)
		}
		report.Failed += failed

		for _, g := range generated {
			v := &database.Variant{
				MediaID:     m.ID,
				Preset:      g.Preset,
				Format:      g.Format,
				Width:       g.Width,
				Height:      g.Height,
				Path:        g.Path,
				Fingerprint: g.Fingerprint,
				SizeBytes:   g.SizeBytes,
			}
			if err := o.db.SaveVariant(ctx, v); err != nil {
				return nil, fmt.Errorf("regen: index variant %s: %w", g.Path, err)
			}
			report.TotalVariants++
		}

		o.publish(ctx, m.ID, progress.PresetComplete{
			Type:         progress.TypePresetComplete,
			Preset:       p.Name,
			PresetIndex:  i,
			TotalPresets: len(presets),
		})
	}

	report.ThumbnailURL = o.thumbnailURL(ctx, m.ID)
	return report, nil
}

func (o *Orchestrator) selectPresets(opts Options) ([]preset.Preset, error) {
	if opts.Preset == "" {
		return o.registry.All(), nil
	}
	p, ok := o.registry.Get(opts.Preset)
	if !ok {
		return nil, fmt.Errorf("regen: unknown preset %q", opts.Preset)
	}
	return []preset.Preset{p}, nil
}

// thumbnailURL picks the smallest thumb_small jpg variant as the record's
// representative thumbnail. Absent that variant the field stays empty.
func (o *Orchestrator) thumbnailURL(ctx context.Context, mediaID string) string {
	vs, err := o.db.VariantsByMediaPresetFormat(ctx, mediaID, preset.ThumbSmall, "jpg")
	if err != nil || len(vs) == 0 {
		return ""
	}
	return o.resolver.URL(vs[0])
}

func (o *Orchestrator) publish(ctx context.Context, mediaID string, event any) {
	if err := o.publisher.Publish(ctx, progress.Channel(mediaID), event); err != nil {
		logging.Warn("Progress event for %s dropped: %v", mediaID, err)
	}
}

// Remove deletes a media record entirely: variant files, index rows, the
// original file, and the catalog row, in that order. Holding the per-media
// lock keeps a concurrent regeneration from resurrecting variants mid-way.
func (o *Orchestrator) Remove(ctx context.Context, m *database.Media) error {
	if !o.acquire(m.ID) {
		return ErrInProgress
	}
	defer o.release(m.ID)

	if _, err := o.cleaner.CleanForMedia(ctx, m); err != nil {
		return fmt.Errorf("regen: clean variants for %s: %w", m.ID, err)
	}
	if _, err := o.db.DeleteVariantsByMedia(ctx, m.ID); err != nil {
		return fmt.Errorf("regen: clear variant index for %s: %w", m.ID, err)
	}
	if err := o.cleaner.RemoveOriginal(ctx, m); err != nil {
		return fmt.Errorf("regen: remove original for %s: %w", m.ID, err)
	}
	if err := o.db.DeleteMedia(ctx, m.ID); err != nil {
		return fmt.Errorf("regen: delete record %s: %w", m.ID, err)
	}
	logging.Info("Removed media %s and all derived variants", m.ID)
	return nil
}

func (o *Orchestrator) acquire(mediaID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[mediaID]; busy {
		return false
	}
	o.inFlight[mediaID] = struct{}{}
	return true
}

func (o *Orchestrator) release(mediaID string) {
	o.mu.Lock()
	delete(o.inFlight, mediaID)
	o.mu.Unlock()
}
