// Package uploader ingests new media: it classifies the upload, rejects
// duplicates, stores the original, records the catalog row, and dispatches
// variant generation.
package uploader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	_ "golang.org/x/image/webp"

	"media-variants/internal/database"
	"media-variants/internal/hasher"
	"media-variants/internal/logging"
	"media-variants/internal/mediatypes"
	"media-variants/internal/metrics"
	"media-variants/internal/placeholder"
	"media-variants/internal/storage"
)

// ErrDuplicate is returned when an upload matches an existing record's
// dedup hash. The wrapped message names the existing media ID.
var ErrDuplicate = errors.New("uploader: duplicate media")

// ErrEmptyUpload is returned for zero-byte uploads.
var ErrEmptyUpload = errors.New("uploader: empty upload")

// Dispatcher hands a media ID to the regeneration pipeline. Implementations
// may run the regeneration inline or enqueue it.
type Dispatcher interface {
	Dispatch(ctx context.Context, mediaID string) error
}

// Uploader ingests uploads end to end.
type Uploader struct {
	db          *database.Database
	backend     storage.Backend
	placeholder *placeholder.Encoder
	dispatcher  Dispatcher
}

// New creates an uploader. The placeholder encoder may be nil to skip
// BlurHash computation; the dispatcher may be nil to skip variant
// generation.
func New(db *database.Database, backend storage.Backend, enc *placeholder.Encoder, dispatcher Dispatcher) *Uploader {
	return &Uploader{
		db:          db,
		backend:     backend,
		placeholder: enc,
		dispatcher:  dispatcher,
	}
}

// Upload stores a new media file and returns its catalog record. Duplicates
// of an existing record (by dedup hash) are rejected with ErrDuplicate
// before anything is written.
func (u *Uploader) Upload(ctx context.Context, filename string, data []byte) (*database.Media, error) {
	if len(data) == 0 {
		metrics.UploadsTotal.WithLabelValues("rejected").Inc()
		return nil, ErrEmptyUpload
	}

	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	mime := mediatypes.Classify(filename, head)
	ext := mediatypes.ExtForMime(mime)
	if ext == "" {
		ext = strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	}
	if ext == "" {
		ext = "bin"
	}

	hash := hasher.DedupHash(data, mime)
	if existing, err := u.db.MediaByHash(ctx, hash); err == nil {
		metrics.UploadsTotal.WithLabelValues("duplicate").Inc()
		return existing, fmt.Errorf("%w: matches %s", ErrDuplicate, existing.ID)
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("uploader: duplicate check: %w", err)
	}

	now := time.Now().UTC()
	m := &database.Media{
		ID:        uuid.NewString(),
		Path:      fmt.Sprintf("uploads/%04d/%02d/%s.%s", now.Year(), now.Month(), uuid.NewString(), ext),
		Ext:       ext,
		Mime:      mime,
		Hash:      hash,
		SizeBytes: int64(len(data)),
		CreatedAt: now,
	}

	if mediatypes.IsImageMime(mime) {
		u.probeImage(m, data)
	}

	if err := u.backend.Write(ctx, m.Path, data); err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("uploader: store original: %w", err)
	}

	if err := u.db.SaveMedia(ctx, m); err != nil {
		metrics.UploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("uploader: save record: %w", err)
	}
	metrics.UploadsTotal.WithLabelValues("ok").Inc()
	logging.Info("Uploaded %s as %s (%s, %d bytes)", filename, m.ID, mime, m.SizeBytes)

	if u.dispatcher != nil && m.IsImage() {
		if err := u.dispatcher.Dispatch(ctx, m.ID); err != nil {
			logging.Warn("Variant dispatch for %s failed: %v", m.ID, err)
		}
	}
	return m, nil
}

// probeImage fills in dimensions and the BlurHash placeholder. Both are
// cosmetic metadata; decode failures leave the fields empty.
func (u *Uploader) probeImage(m *database.Media, data []byte) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		logging.Warn("Could not probe dimensions for %s: %v", m.ID, err)
		return
	}
	m.Width = cfg.Width
	m.Height = cfg.Height

	if u.placeholder == nil {
		return
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return
	}
	if hash, err := u.placeholder.Encode(img); err == nil {
		m.BlurHash = hash
	} else {
		logging.Warn("BlurHash for %s failed: %v", m.ID, err)
	}
}
