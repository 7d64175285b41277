package regen

import (
	"context"
	"errors"
	"fmt"

	"media-variants/internal/codec"
	"media-variants/internal/database"
	"media-variants/internal/logging"
	"media-variants/internal/preset"
)

const checkpointInterval = 10

// BatchOptions control a bulk regeneration run.
type BatchOptions struct {
	// Preset limits the run to one preset. Empty means all.
	Preset string
	// Force regenerates even when a record already has full variant
	// coverage.
	Force bool
	// Limit caps how many records are processed; zero or negative means
	// no cap.
	Limit int
	// Offset skips that many records first, for resuming interrupted runs.
	Offset int
}

// BatchReport summarizes a bulk run.
type BatchReport struct {
	Processed int
	Skipped   int
	Failed    int
	Variants  int
}

// Batch walks the image catalog and regenerates variants record by record.
// Records are processed sequentially and the run checkpoints its progress in
// the log so an interrupted pass can resume with an offset.
type Batch struct {
	db           *database.Database
	registry     *preset.Registry
	processor    codec.Processor
	orchestrator *Orchestrator
}

// NewBatch creates a batch runner.
func NewBatch(db *database.Database, registry *preset.Registry, processor codec.Processor, orchestrator *Orchestrator) *Batch {
	return &Batch{
		db:           db,
		registry:     registry,
		processor:    processor,
		orchestrator: orchestrator,
	}
}

// Run executes the batch. Per-record failures are logged and counted; only a
// cancelled context or an invalid preset name aborts the run.
func (b *Batch) Run(ctx context.Context, opts BatchOptions) (*BatchReport, error) {
	if opts.Preset != "" && !b.registry.Has(opts.Preset) {
		return nil, fmt.Errorf("regen: unknown preset %q", opts.Preset)
	}

	items, err := b.db.AllImages(ctx, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("regen: list images: %w", err)
	}
	logging.Info("Batch regeneration: %d record(s), preset=%q force=%v offset=%d",
		len(items), opts.Preset, opts.Force, opts.Offset)

	report := &BatchReport{}
	for i, m := range items {
		if err := ctx.Err(); err != nil {
			logging.Warn("Batch regeneration interrupted after %d record(s); resume with offset %d",
				report.Processed, opts.Offset+i)
			return report, err
		}

		if !opts.Force {
			ok, err := b.hasAllVariants(ctx, m, opts.Preset)
			if err != nil {
				return report, err
			}
			if ok {
				report.Skipped++
				continue
			}
		}

		res, err := b.orchestrator.RegenerateMedia(ctx, m, Options{Preset: opts.Preset})
		if err != nil {
			report.Failed++
			logging.Error("Batch regeneration failed for %s: %v", m.ID, err)
			continue
		}
		report.Processed++
		report.Variants += res.TotalVariants

		if report.Processed%checkpointInterval == 0 {
			logging.Info("Batch regeneration checkpoint: %d/%d done, %d variant(s) written",
				i+1, len(items), report.Variants)
		}
	}

	logging.Info("Batch regeneration finished: processed=%d skipped=%d failed=%d variants=%d",
		report.Processed, report.Skipped, report.Failed, report.Variants)
	return report, nil
}

// hasAllVariants reports whether the record already has an index row for
// every expected (preset, width, format) cell. Formats the codec cannot
// encode are not expected.
func (b *Batch) hasAllVariants(ctx context.Context, m *database.Media, presetName string) (bool, error) {
	presets := b.registry.All()
	if presetName != "" {
		p, ok := b.registry.Get(presetName)
		if !ok {
			return false, fmt.Errorf("regen: unknown preset %q", presetName)
		}
		presets = []preset.Preset{p}
	}

	for _, p := range presets {
		for _, width := range p.EffectiveWidths() {
			for _, format := range p.Formats {
				if !b.processor.SupportsFormat(format) {
					continue
				}
				_, err := b.db.VariantByKey(ctx, m.ID, p.Name, format, width)
				if errors.Is(err, database.ErrNotFound) {
					return false, nil
				}
				if err != nil {
					return false, err
				}
			}
		}
	}
	return true, nil
}
