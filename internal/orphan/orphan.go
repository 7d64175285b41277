// Package orphan reconciles the variant store against the variant index.
// Files under the variants prefix that no index row references are orphans:
// leftovers from preset changes, interrupted regenerations, or deleted
// media. The reconciler finds them and, outside dry-run, deletes them.
package orphan

import (
	"context"
	"fmt"

	"media-variants/internal/database"
	"media-variants/internal/logging"
	"media-variants/internal/metrics"
	"media-variants/internal/storage"
)

// variantPrefix is the storage subtree the reconciler owns. Originals and
// anything else outside it are never touched.
const variantPrefix = "variants"

// Report summarizes one reconciliation pass.
type Report struct {
	Scanned    int
	Orphans    int
	Deleted    int
	BytesFreed int64
	DryRun     bool
}

// Reconciler compares storage contents with the variant index.
type Reconciler struct {
	db      *database.Database
	backend storage.Backend
}

// NewReconciler creates a reconciler.
func NewReconciler(db *database.Database, backend storage.Backend) *Reconciler {
	return &Reconciler{db: db, backend: backend}
}

// Run walks the variants subtree and reports every file the index does not
// reference. With dryRun the pass only counts; otherwise orphans are deleted
// one by one, and a file that fails to delete is logged and left for the
// next pass.
func (r *Reconciler) Run(ctx context.Context, dryRun bool) (*Report, error) {
	indexed, err := r.db.AllVariantPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("orphan: load variant index: %w", err)
	}

	report := &Report{DryRun: dryRun}
	err = r.backend.Walk(ctx, variantPrefix, func(path string, size int64) error {
		report.Scanned++
		if _, ok := indexed[path]; ok {
			return nil
		}
		report.Orphans++

		if dryRun {
			logging.Debug("Orphan (dry-run): %s (%d bytes)", path, size)
			report.BytesFreed += size
			return nil
		}

		if err := r.backend.Delete(ctx, path); err != nil {
			logging.Warn("Failed to delete orphan %s: %v", path, err)
			return nil
		}
		report.Deleted++
		report.BytesFreed += size
		metrics.OrphansDeletedTotal.Inc()
		metrics.OrphanBytesFreedTotal.Add(float64(size))
		return nil
	})
	if err != nil {
		return report, fmt.Errorf("orphan: walk variants: %w", err)
	}

	if dryRun {
		logging.Info("Orphan scan (dry-run): %d file(s) scanned, %d orphan(s), %d bytes reclaimable",
			report.Scanned, report.Orphans, report.BytesFreed)
	} else {
		logging.Info("Orphan cleanup: %d file(s) scanned, %d orphan(s), %d deleted, %d bytes freed",
			report.Scanned, report.Orphans, report.Deleted, report.BytesFreed)
	}
	return report, nil
}
