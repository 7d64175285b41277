package variant

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"media-variants/internal/codec"
	"media-variants/internal/database"
	"media-variants/internal/logging"
	"media-variants/internal/metrics"
	"media-variants/internal/preset"
	"media-variants/internal/storage"
)

// ErrInvalidFocalPoint is returned when a media record carries a focal point
// outside [0,1]. The whole operation is rejected before any file is touched.
var ErrInvalidFocalPoint = errors.New("variant: focal point outside [0,1]")

// Generator fans one source image out into the matrix of variants described
// by the preset registry: per preset, per effective width, per format.
type Generator struct {
	processor codec.Processor
	resolver  *PathResolver
	storage   storage.Backend
	registry  *preset.Registry
}

// NewGenerator creates a generator.
func NewGenerator(processor codec.Processor, resolver *PathResolver, backend storage.Backend, registry *preset.Registry) *Generator {
	return &Generator{
		processor: processor,
		resolver:  resolver,
		storage:   backend,
		registry:  registry,
	}
}

// GenerateAllPresets generates variants for every registered preset, in
// registry order. Non-images produce no variants. The failed count reports
// (width, format) pairs that errored and were skipped.
func (g *Generator) GenerateAllPresets(ctx context.Context, m *database.Media) (generated []Generated, failed int, err error) {
	if !m.IsImage() {
		return nil, 0, nil
	}

	for _, p := range g.registry.All() {
		vs, f, err := g.GenerateForPreset(ctx, m, p)
		if err != nil {
			return generated, failed, err
		}
		generated = append(generated, vs...)
		failed += f
	}
	return generated, failed, nil
}

// GenerateForPreset generates variants for one preset: every effective width
// (ascending) crossed with every declared format. Formats the codec cannot
// encode are skipped. A codec or storage failure on one pair is logged and
// skipped so the remaining pairs still get generated; partial variant
// coverage beats none.
func (g *Generator) GenerateForPreset(ctx context.Context, m *database.Media, p preset.Preset) (generated []Generated, failed int, err error) {
	if !m.IsImage() {
		return nil, 0, nil
	}

	focal, err := g.focalFor(m, p)
	if err != nil {
		return nil, 0, err
	}

	src, cleanup, err := g.localSource(ctx, m)
	if err != nil {
		return nil, 0, fmt.Errorf("resolve source for %s: %w", m.ID, err)
	}
	defer cleanup()

	for _, width := range p.EffectiveWidths() {
		for _, format := range p.Formats {
			if !g.processor.SupportsFormat(format) {
				continue
			}

			if err := ctx.Err(); err != nil {
				return generated, failed, err
			}

			v, genErr := g.generate(ctx, m, p, width, format, src, focal)
			if genErr != nil {
				failed++
				metrics.VariantsFailedTotal.WithLabelValues(p.Name, format).Inc()
				logging.Error("Variant generation failed (media=%s preset=%s width=%d format=%s): %v",
					m.ID, p.Name, width, format, genErr)
				continue
			}

			metrics.VariantsGeneratedTotal.WithLabelValues(p.Name, format).Inc()
			generated = append(generated, v)
		}
	}
	return generated, failed, nil
}

// GenerateVariant generates a single variant for an explicit (preset, width,
// format) triple. Used by preset previews and targeted repair.
func (g *Generator) GenerateVariant(ctx context.Context, m *database.Media, p preset.Preset, width int, format string) (Generated, error) {
	focal, err := g.focalFor(m, p)
	if err != nil {
		return Generated{}, err
	}

	src, cleanup, err := g.localSource(ctx, m)
	if err != nil {
		return Generated{}, fmt.Errorf("resolve source for %s: %w", m.ID, err)
	}
	defer cleanup()

	return g.generate(ctx, m, p, width, format, src, focal)
}

func (g *Generator) generate(ctx context.Context, m *database.Media, p preset.Preset, width int, format, src string, focal *codec.FocalPoint) (Generated, error) {
	path := g.resolver.BuildPath(m, p, width, format)
	height := p.CalculateHeight(width)
	quality := p.QualityFor(format)

	dest, err := g.resolver.AbsolutePath(m, p, width, format)
	if errors.Is(err, storage.ErrNotSupported) {
		// Object storage: encode to a temp file, then upload.
		return g.generateIndirect(ctx, m, p, width, height, format, quality, src, path, focal)
	}
	if err != nil {
		return Generated{}, err
	}

	result, err := g.processor.Process(ctx, src, dest, width, height, p.Fit, format, quality, focal)
	if err != nil {
		return Generated{}, err
	}

	return Generated{
		Preset:      p.Name,
		Format:      format,
		Width:       result.Width,
		Height:      result.Height,
		Path:        path,
		Fingerprint: g.resolver.Fingerprint(m, p, width, format),
		SizeBytes:   result.SizeBytes,
	}, nil
}

func (g *Generator) generateIndirect(ctx context.Context, m *database.Media, p preset.Preset,
	width, height int, format string, quality int, src, path string, focal *codec.FocalPoint) (Generated, error) {

	tmp, err := os.CreateTemp("", "variant-*."+format)
	if err != nil {
		return Generated{}, fmt.Errorf("create temp variant: %w", err)
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	result, err := g.processor.Process(ctx, src, tmpPath, width, height, p.Fit, format, quality, focal)
	if err != nil {
		return Generated{}, err
	}

	data, err := os.ReadFile(tmpPath)
	if err != nil {
		return Generated{}, fmt.Errorf("read temp variant: %w", err)
	}
	if err := g.storage.Write(ctx, path, data); err != nil {
		return Generated{}, err
	}

	return Generated{
		Preset:      p.Name,
		Format:      format,
		Width:       result.Width,
		Height:      result.Height,
		Path:        path,
		Fingerprint: g.resolver.Fingerprint(m, p, width, format),
		SizeBytes:   result.SizeBytes,
	}, nil
}

// localSource returns a local filesystem path for the media's original,
// downloading it to a temp file when the backend has no local paths.
func (g *Generator) localSource(ctx context.Context, m *database.Media) (string, func(), error) {
	abs, err := g.storage.AbsolutePath(m.Path)
	if err == nil {
		return abs, func() {}, nil
	}
	if !errors.Is(err, storage.ErrNotSupported) {
		return "", nil, err
	}

	data, err := g.storage.Read(ctx, m.Path)
	if err != nil {
		return "", nil, err
	}

	tmp, err := os.CreateTemp("", "original-*"+filepath.Ext(m.Path))
	if err != nil {
		return "", nil, fmt.Errorf("create temp source: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", nil, fmt.Errorf("write temp source: %w", err)
	}
	tmp.Close()

	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}

func (g *Generator) focalFor(m *database.Media, p preset.Preset) (*codec.FocalPoint, error) {
	if !p.UseFocalPoint || m.FocalX == nil || m.FocalY == nil {
		return nil, nil
	}

	focal := &codec.FocalPoint{X: *m.FocalX, Y: *m.FocalY}
	if !focal.Valid() {
		return nil, fmt.Errorf("%w: (%v, %v)", ErrInvalidFocalPoint, focal.X, focal.Y)
	}
	return focal, nil
}
