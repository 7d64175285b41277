// Package variant derives, addresses and cleans the variant files produced
// from an original image: one file per (preset, width, format) combination.
package variant

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"media-variants/internal/database"
	"media-variants/internal/preset"
	"media-variants/internal/storage"
)

// Generated is the transient result of one variant generation. Width and
// Height are the codec's actual output dimensions, which may differ from the
// request under contain fit; Path and Fingerprint come from the resolver.
type Generated struct {
	Preset      string
	Format      string
	Width       int
	Height      int
	Path        string
	Fingerprint string
	SizeBytes   int64
}

// PathResolver computes the two deliberately decoupled addresses of a
// variant: its storage path and its cache-busting fingerprint.
//
// The path depends only on preset name, width, format and a prefix of the
// media content hash. It does NOT depend on fit mode, quality or max height:
// the path is a storage slot, and changing a preset's recipe overwrites the
// slot with new content rather than creating a new file. The fingerprint
// covers the full recipe, so recipe changes bust caches even when the path
// is unchanged. This decoupling is intentional and load-bearing for on-disk
// layout compatibility; do not "fix" it.
type PathResolver struct {
	storage storage.Backend
}

// NewPathResolver creates a resolver over the given storage backend.
func NewPathResolver(backend storage.Backend) *PathResolver {
	return &PathResolver{storage: backend}
}

// hashPrefixLen is how much of the media content hash ends up in paths.
// Shorter paths, still collision-safe within one media library.
const hashPrefixLen = 16

// BuildPath returns the storage-relative path for a variant:
// variants/{preset}/{width}/{format}/{hashPrefix}.{format}
func (r *PathResolver) BuildPath(m *database.Media, p preset.Preset, width int, format string) string {
	hash := m.Hash
	if len(hash) > hashPrefixLen {
		hash = hash[:hashPrefixLen]
	}
	return fmt.Sprintf("variants/%s/%d/%s/%s.%s", p.Name, width, format, hash, format)
}

// AbsolutePath returns the local filesystem path a variant will be written
// to, or storage.ErrNotSupported for object storage backends.
func (r *PathResolver) AbsolutePath(m *database.Media, p preset.Preset, width int, format string) (string, error) {
	return r.storage.AbsolutePath(r.BuildPath(m, p, width, format))
}

// Fingerprint returns the cache-busting token for a variant: the sha256 of
// the media content hash and the canonical recipe
// name:maxWidth:maxHeight:fitMode:format:quality:width.
func (r *PathResolver) Fingerprint(m *database.Media, p preset.Preset, width int, format string) string {
	recipe := fmt.Sprintf("%s:%d:%d:%s:%s:%d:%d",
		p.Name, p.MaxWidth, p.MaxHeight, p.Fit, format, p.QualityFor(format), width)

	sum := sha256.Sum256([]byte(m.Hash + ":" + recipe))
	return hex.EncodeToString(sum[:])
}

// URL returns the public URL for a persisted variant, with the first 8 hex
// characters of its fingerprint as a cache-busting query token. Clients must
// treat path+fingerprint, not the path alone, as the cacheable identity.
func (r *PathResolver) URL(v *database.Variant) string {
	fp := v.Fingerprint
	if len(fp) > 8 {
		fp = fp[:8]
	}
	return r.storage.URL(v.Path) + "?v=" + fp
}

// OriginalURL returns the public URL for a media record's original file.
func (r *PathResolver) OriginalURL(m *database.Media) string {
	return r.storage.URL(m.Path)
}
