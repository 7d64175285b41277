package codec

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"media-variants/internal/logging"
	"media-variants/internal/preset"
)

var (
	vipsInitMu    sync.Mutex
	vipsStarted   bool
	vipsAvailable bool
)

// InitVips initializes the libvips library. Call once at startup; govips
// does not support stopping and restarting vips in the same process.
func InitVips() error {
	vipsInitMu.Lock()
	defer vipsInitMu.Unlock()

	if vipsStarted {
		return nil
	}

	// Route vips log output through our logger, filtered by our level.
	threshold := vips.LogLevelWarning
	if logging.IsDebugEnabled() {
		threshold = vips.LogLevelInfo
	}
	vips.LoggingSettings(func(domain string, level vips.LogLevel, msg string) {
		switch {
		case level <= vips.LogLevelError:
			logging.Error("[vips/%s] %s", domain, msg)
		case level == vips.LogLevelWarning:
			logging.Warn("[vips/%s] %s", domain, msg)
		default:
			logging.Debug("[vips/%s] %s", domain, msg)
		}
	}, threshold)

	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsStarted = true
	vipsAvailable = true
	logging.Info("libvips initialized (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources.
func ShutdownVips() {
	vipsInitMu.Lock()
	defer vipsInitMu.Unlock()

	if vipsStarted {
		vips.Shutdown()
		vipsStarted = false
		vipsAvailable = false
	}
}

// VipsAvailable reports whether libvips is initialized.
func VipsAvailable() bool {
	vipsInitMu.Lock()
	defer vipsInitMu.Unlock()
	return vipsAvailable
}

var vipsFormats = map[string]bool{
	"webp": true,
	"avif": true,
	"jpg":  true,
	"jpeg": true,
	"png":  true,
	"gif":  true,
}

// Vips is the libvips-backed processor. It is the preferred implementation:
// decode-time shrinking keeps memory bounded and it encodes webp and avif.
type Vips struct{}

// NewVips returns the vips processor. InitVips must have been called.
func NewVips() *Vips {
	return &Vips{}
}

func (v *Vips) SupportsFormat(format string) bool {
	return vipsFormats[strings.ToLower(format)]
}

func (v *Vips) Dimensions(path string) (int, int, error) {
	ref, err := vips.LoadImageFromFile(path, vips.NewImportParams())
	if err != nil {
		return 0, 0, fmt.Errorf("vips load %s: %w", path, err)
	}
	defer ref.Close()
	return ref.Width(), ref.Height(), nil
}

func (v *Vips) Process(ctx context.Context, sourcePath, destPath string, width, height int,
	fit preset.FitMode, format string, quality int, focal *FocalPoint) (Result, error) {

	if !v.SupportsFormat(format) {
		return Result{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	ref, err := vips.LoadImageFromFile(sourcePath, vips.NewImportParams())
	if err != nil {
		return Result{}, fmt.Errorf("vips load %s: %w", sourcePath, err)
	}
	defer ref.Close()

	origW, origH := ref.Width(), ref.Height()

	switch fit {
	case preset.FitCover:
		x, y, w, h := CoverWindow(origW, origH, width, height, focal)
		if err := ref.ExtractArea(x, y, w, h); err != nil {
			return Result{}, fmt.Errorf("vips crop: %w", err)
		}
		if err := ref.ResizeWithVScale(float64(width)/float64(w), float64(height)/float64(h), vips.KernelLanczos3); err != nil {
			return Result{}, fmt.Errorf("vips resize: %w", err)
		}
	case preset.FitContain:
		w, h := ContainSize(origW, origH, width, height)
		if w != origW || h != origH {
			if err := ref.ResizeWithVScale(float64(w)/float64(origW), float64(h)/float64(origH), vips.KernelLanczos3); err != nil {
				return Result{}, fmt.Errorf("vips resize: %w", err)
			}
		}
	case preset.FitScale:
		if err := ref.ResizeWithVScale(float64(width)/float64(origW), float64(height)/float64(origH), vips.KernelLanczos3); err != nil {
			return Result{}, fmt.Errorf("vips resize: %w", err)
		}
	default:
		return Result{}, fmt.Errorf("vips: unknown fit mode %q", fit)
	}

	data, err := exportVips(ref, format, quality)
	if err != nil {
		return Result{}, err
	}

	finalW, finalH := ref.Width(), ref.Height()

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return Result{}, fmt.Errorf("create variant dir: %w", err)
	}
	if err := os.WriteFile(destPath, data, 0644); err != nil {
		return Result{}, fmt.Errorf("write variant %s: %w", destPath, err)
	}

	return Result{Width: finalW, Height: finalH, SizeBytes: int64(len(data))}, nil
}

func exportVips(ref *vips.ImageRef, format string, quality int) ([]byte, error) {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(format) {
	case "jpg", "jpeg":
		params := vips.NewJpegExportParams()
		params.Quality = quality
		params.StripMetadata = true
		data, _, err = ref.ExportJpeg(params)
	case "webp":
		params := vips.NewWebpExportParams()
		params.Quality = quality
		params.StripMetadata = true
		data, _, err = ref.ExportWebp(params)
	case "avif":
		params := vips.NewAvifExportParams()
		params.Quality = quality
		params.StripMetadata = true
		data, _, err = ref.ExportAvif(params)
	case "png":
		params := vips.NewPngExportParams()
		params.StripMetadata = true
		data, _, err = ref.ExportPng(params)
	case "gif":
		params := vips.NewGifExportParams()
		params.Quality = quality
		params.StripMetadata = true
		data, _, err = ref.ExportGIF(params)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}

	if err != nil {
		return nil, fmt.Errorf("vips export %s: %w", format, err)
	}
	return data, nil
}
