package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Media is an original uploaded file plus the metadata needed to derive
// variants from it.
type Media struct {
	ID        string
	Path      string // storage-relative path of the original
	Ext       string
	Mime      string
	Hash      string // perceptual hash for images, sha256 otherwise
	SizeBytes int64
	Width     int
	Height    int
	FocalX    *float64 // normalized 0-1, nil means image center
	FocalY    *float64
	BlurHash  string
	Copyright string
	CreatedAt time.Time
}

// IsImage reports whether the media is an image and therefore eligible for
// variant generation.
func (m *Media) IsImage() bool {
	return strings.HasPrefix(m.Mime, "image/")
}

// SaveMedia inserts a media record.
func (d *Database) SaveMedia(ctx context.Context, m *Media) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO media (id, path, ext, mime, hash, size_bytes, width, height, focal_x, focal_y, blur_hash, copyright)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.Path, m.Ext, m.Mime, m.Hash, m.SizeBytes, m.Width, m.Height,
		m.FocalX, m.FocalY, nullable(m.BlurHash), nullable(m.Copyright))
	record("save_media", err)
	if err != nil {
		return fmt.Errorf("save media %s: %w", m.ID, err)
	}
	return nil
}

// MediaByID loads a media record, or ErrNotFound.
func (d *Database) MediaByID(ctx context.Context, id string) (*Media, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `
		SELECT id, path, ext, mime, hash, size_bytes, width, height, focal_x, focal_y, blur_hash, copyright, created_at
		FROM media WHERE id = ?`, id)

	m, err := scanMedia(row)
	record("media_by_id", err)
	return m, err
}

// MediaByHash finds a media record with the given content hash, or
// ErrNotFound. Used for duplicate rejection on upload.
func (d *Database) MediaByHash(ctx context.Context, hash string) (*Media, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	row := d.db.QueryRowContext(ctx, `
		SELECT id, path, ext, mime, hash, size_bytes, width, height, focal_x, focal_y, blur_hash, copyright, created_at
		FROM media WHERE hash = ? LIMIT 1`, hash)

	m, err := scanMedia(row)
	record("media_by_hash", err)
	return m, err
}

// AllImages returns image media records ordered by creation time, windowed
// by limit and offset. A limit <= 0 means no limit.
func (d *Database) AllImages(ctx context.Context, limit, offset int) ([]*Media, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT id, path, ext, mime, hash, size_bytes, width, height, focal_x, focal_y, blur_hash, copyright, created_at
		FROM media WHERE mime LIKE 'image/%'
		ORDER BY created_at, id
		LIMIT ? OFFSET ?`, limit, offset)
	record("all_images", err)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	var out []*Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// CountImages returns the number of image media records.
func (d *Database) CountImages(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var n int
	err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM media WHERE mime LIKE 'image/%'`).Scan(&n)
	record("count_images", err)
	return n, err
}

// UpdateFocalPoint sets the focal point for a media record.
func (d *Database) UpdateFocalPoint(ctx context.Context, id string, focalX, focalY float64) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := d.db.ExecContext(ctx,
		`UPDATE media SET focal_x = ?, focal_y = ? WHERE id = ?`, focalX, focalY, id)
	record("update_focal_point", err)
	if err != nil {
		return fmt.Errorf("update focal point %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateBlurHash sets the blurhash placeholder for a media record.
func (d *Database) UpdateBlurHash(ctx context.Context, id, blurHash string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `UPDATE media SET blur_hash = ? WHERE id = ?`, blurHash, id)
	record("update_blur_hash", err)
	if err != nil {
		return fmt.Errorf("update blur hash %s: %w", id, err)
	}
	return nil
}

// DeleteMedia removes a media record; its variant index entries cascade.
func (d *Database) DeleteMedia(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(ctx, `DELETE FROM media WHERE id = ?`, id)
	record("delete_media", err)
	if err != nil {
		return fmt.Errorf("delete media %s: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMedia(row rowScanner) (*Media, error) {
	var (
		m         Media
		blurHash  sql.NullString
		copyright sql.NullString
		createdAt int64
	)

	err := row.Scan(&m.ID, &m.Path, &m.Ext, &m.Mime, &m.Hash, &m.SizeBytes,
		&m.Width, &m.Height, &m.FocalX, &m.FocalY, &blurHash, &copyright, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan media: %w", err)
	}

	m.BlurHash = blurHash.String
	m.Copyright = copyright.String
	m.CreatedAt = time.Unix(createdAt, 0)
	return &m, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
