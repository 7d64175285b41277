package variant

import (
	"context"
	"fmt"

	"media-variants/internal/database"
	"media-variants/internal/logging"
	"media-variants/internal/metrics"
	"media-variants/internal/preset"
	"media-variants/internal/storage"
)

// Cleaner deletes existing variant files for a media item. It only touches
// the storage tree; callers clear the variant index separately.
type Cleaner struct {
	storage  storage.Backend
	resolver *PathResolver
	registry *preset.Registry
}

// NewCleaner creates a cleaner.
func NewCleaner(backend storage.Backend, resolver *PathResolver, registry *preset.Registry) *Cleaner {
	return &Cleaner{storage: backend, resolver: resolver, registry: registry}
}

// CleanForMedia deletes the variant files of every registered preset and
// returns the number deleted.
func (c *Cleaner) CleanForMedia(ctx context.Context, m *database.Media) (int, error) {
	deleted := 0
	for _, p := range c.registry.All() {
		n, err := c.CleanForPreset(ctx, m, p)
		deleted += n
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}

// CleanForPreset deletes the variant files for one preset: every effective
// width crossed with every format. Missing files are skipped, so the
// operation is idempotent. A storage failure aborts the clean; an
// inconsistent half-cleaned tree is surfaced rather than papered over.
func (c *Cleaner) CleanForPreset(ctx context.Context, m *database.Media, p preset.Preset) (int, error) {
	deleted := 0
	for _, width := range p.EffectiveWidths() {
		for _, format := range p.Formats {
			path := c.resolver.BuildPath(m, p, width, format)

			exists, err := c.storage.Exists(ctx, path)
			if err != nil {
				return deleted, fmt.Errorf("clean %s: %w", path, err)
			}
			if !exists {
				continue
			}

			if err := c.storage.Delete(ctx, path); err != nil {
				return deleted, fmt.Errorf("clean %s: %w", path, err)
			}
			deleted++
			metrics.VariantsDeletedTotal.Inc()
			logging.Debug("Deleted variant %s", path)
		}
	}
	return deleted, nil
}

// RemoveOriginal deletes the media record's source file from storage.
func (c *Cleaner) RemoveOriginal(ctx context.Context, m *database.Media) error {
	if err := c.storage.Delete(ctx, m.Path); err != nil {
		return fmt.Errorf("remove original %s: %w", m.Path, err)
	}
	return nil
}
