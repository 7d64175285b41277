package codec

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"

	// Register decoders for formats imaging does not handle natively.
	_ "golang.org/x/image/webp"

	"media-variants/internal/preset"
)

// Fallback is a pure-Go processor used when libvips is unavailable. It can
// decode jpg/png/gif/webp/bmp/tiff but only encodes the formats the standard
// library can write, so avif and webp variants are skipped in fallback mode.
type Fallback struct{}

// NewFallback returns the pure-Go processor.
func NewFallback() *Fallback {
	return &Fallback{}
}

var fallbackFormats = map[string]bool{
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
}

func (f *Fallback) SupportsFormat(format string) bool {
	return fallbackFormats[strings.ToLower(format)]
}

func (f *Fallback) Dimensions(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, fmt.Errorf("decode config %s: %w", path, err)
	}
	return cfg.Width, cfg.Height, nil
}

func (f *Fallback) Process(ctx context.Context, sourcePath, destPath string, width, height int,
	fit preset.FitMode, format string, quality int, focal *FocalPoint) (Result, error) {

	if !f.SupportsFormat(format) {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	img, err := imaging.Open(sourcePath, imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, fmt.Errorf("decode %s: %w", sourcePath, err)
	}

	bounds := img.Bounds()
	origW, origH := bounds.Dx(), bounds.Dy()

	var out image.Image
	switch fit {
	case preset.FitCover:
		x, y, w, h := CoverWindow(origW, origH, width, height, focal)
		cropped := imaging.Crop(img, image.Rect(x, y, x+w, y+h))
		out = imaging.Resize(cropped, width, height, imaging.Lanczos)
	case preset.FitContain:
		w, h := ContainSize(origW, origH, width, height)
		out = imaging.Resize(img, w, h, imaging.Lanczos)
	case preset.FitScale:
		out = imaging.Resize(img, width, height, imaging.Lanczos)
	default:
		return Result{}, fmt.Errorf("unknown fit mode %q", fit)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return Result{}, fmt.Errorf("create variant dir: %w", err)
	}
	if err := imaging.Save(out, destPath, imaging.JPEGQuality(quality)); err != nil {
		return Result{}, fmt.Errorf("encode %s: %w", destPath, err)
	}

	info, err := os.Stat(destPath)
	if err != nil {
		return Result{}, fmt.Errorf("stat %s: %w", destPath, err)
	}

	outBounds := out.Bounds()
	return Result{
		Width:     outBounds.Dx(),
		Height:    outBounds.Dy(),
		SizeBytes: info.Size(),
	}, nil
}
