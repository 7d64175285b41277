package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Variant is one persisted variant index entry. Identity is the tuple
// (MediaID, Preset, Format, Width).
type Variant struct {
	ID          int64
	MediaID     string
	Preset      string
	Format      string
	Width       int
	Height      int
	Path        string
	Fingerprint string
	SizeBytes   int64
	CreatedAt   time.Time
}

// SaveVariant upserts a variant index entry on its identity tuple, so a
// regenerated variant replaces the previous entry for the same key.
func (d *Database) SaveVariant(ctx context.Context, v *Variant) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO media_variants (media_id, preset, format, width, height, path, fingerprint, size_bytes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(media_id, preset, format, width) DO UPDATE SET
			height = excluded.height,
			path = excluded.path,
			fingerprint = excluded.fingerprint,
			size_bytes = excluded.size_bytes`,
		v.MediaID, v.Preset, v.Format, v.Width, v.Height, v.Path, v.Fingerprint, v.SizeBytes)
	record("save_variant", err)
	if err != nil {
		return fmt.Errorf("save variant %s/%s/%s/%d: %w", v.MediaID, v.Preset, v.Format, v.Width, err)
	}
	return nil
}

// VariantByKey loads the entry for an identity tuple, or ErrNotFound.
func (d *Database) VariantByKey(ctx context.Context, mediaID, preset, format string, width int) (*Variant, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `
		SELECT id, media_id, preset, format, width, height, path, fingerprint, size_bytes, created_at
		FROM media_variants
		WHERE media_id = ? AND preset = ? AND format = ? AND width = ?`,
		mediaID, preset, format, width)

	v, err := scanVariant(row)
	record("variant_by_key", err)
	return v, err
}

// VariantsByMediaPreset lists entries for a media and preset, ascending by width.
func (d *Database) VariantsByMediaPreset(ctx context.Context, mediaID, preset string) ([]*Variant, error) {
	return d.listVariants(ctx, "variants_by_media_preset", `
		SELECT id, media_id, preset, format, width, height, path, fingerprint, size_bytes, created_at
		FROM media_variants
		WHERE media_id = ? AND preset = ?
		ORDER BY width, format`, mediaID, preset)
}

// VariantsByMediaPresetFormat lists entries for a media, preset and format,
// ascending by width.
func (d *Database) VariantsByMediaPresetFormat(ctx context.Context, mediaID, preset, format string) ([]*Variant, error) {
	return d.listVariants(ctx, "variants_by_media_preset_format", `
		SELECT id, media_id, preset, format, width, height, path, fingerprint, size_bytes, created_at
		FROM media_variants
		WHERE media_id = ? AND preset = ? AND format = ?
		ORDER BY width`, mediaID, preset, format)
}

// VariantsByMedia lists all entries for a media item.
func (d *Database) VariantsByMedia(ctx context.Context, mediaID string) ([]*Variant, error) {
	return d.listVariants(ctx, "variants_by_media", `
		SELECT id, media_id, preset, format, width, height, path, fingerprint, size_bytes, created_at
		FROM media_variants
		WHERE media_id = ?
		ORDER BY preset, width, format`, mediaID)
}

// AllVariantPaths returns the set of storage paths referenced by the index.
func (d *Database) AllVariantPaths(ctx context.Context) (map[string]struct{}, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, `SELECT DISTINCT path FROM media_variants`)
	record("all_variant_paths", err)
	if err != nil {
		return nil, fmt.Errorf("list variant paths: %w", err)
	}
	defer rows.Close()

	paths := make(map[string]struct{})
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan variant path: %w", err)
		}
		paths[p] = struct{}{}
	}
	return paths, rows.Err()
}

// DeleteVariantsByMedia removes all index entries for a media item and
// returns the number deleted.
func (d *Database) DeleteVariantsByMedia(ctx context.Context, mediaID string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx, `DELETE FROM media_variants WHERE media_id = ?`, mediaID)
	record("delete_variants_by_media", err)
	if err != nil {
		return 0, fmt.Errorf("delete variants for %s: %w", mediaID, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (d *Database) listVariants(ctx context.Context, op, query string, args ...any) ([]*Variant, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := d.db.QueryContext(ctx, query, args...)
	record(op, err)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []*Variant
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanVariant(row rowScanner) (*Variant, error) {
	var (
		v         Variant
		createdAt int64
	)

	err := row.Scan(&v.ID, &v.MediaID, &v.Preset, &v.Format, &v.Width, &v.Height,
		&v.Path, &v.Fingerprint, &v.SizeBytes, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan variant: %w", err)
	}

	v.CreatedAt = time.Unix(createdAt, 0)
	return &v, nil
}
