// Package codec performs the actual pixel work: decoding a source image,
// fitting it to target dimensions and encoding it to an output format.
//
// Two implementations exist: Vips (libvips via govips, supports avif/webp)
// and Fallback (pure Go, jpg/png/gif only). Both honor the same
// focal-point-aware cover crop, so they are drop-in replacements for each
// other modulo format support.
package codec

import (
	"context"
	"errors"
	"math"

	"media-variants/internal/preset"
)

// ErrUnsupportedFormat is returned when a processor is asked to encode a
// format it cannot produce.
var ErrUnsupportedFormat = errors.New("codec: unsupported output format")

// FocalPoint is a normalized (0-1, 0-1) coordinate marking the visually
// important region of an image. A nil *FocalPoint means centered.
type FocalPoint struct {
	X float64
	Y float64
}

// Valid reports whether both coordinates are within [0,1].
func (f FocalPoint) Valid() bool {
	return f.X >= 0 && f.X <= 1 && f.Y >= 0 && f.Y <= 1
}

// Result reports the codec's actual output, which may diverge from the
// request (notably under contain fit).
type Result struct {
	Width     int
	Height    int
	SizeBytes int64
}

// Processor is the image codec contract.
type Processor interface {
	// Process reads the image at sourcePath, fits it to width x height
	// according to fit, encodes it as format at the given quality and
	// writes it to destPath. A nil focal point means centered.
	Process(ctx context.Context, sourcePath, destPath string, width, height int,
		fit preset.FitMode, format string, quality int, focal *FocalPoint) (Result, error)

	// Dimensions returns the pixel dimensions of the image at path.
	Dimensions(path string) (width, height int, err error)

	// SupportsFormat reports whether the processor can encode format.
	SupportsFormat(format string) bool
}

// CoverWindow computes the crop window for cover fit: the largest region of
// the original at the target aspect ratio, centered on the focal point and
// clamped to the image bounds. A nil focal point centers the window.
func CoverWindow(origW, origH, targetW, targetH int, focal *FocalPoint) (x, y, w, h int) {
	targetAspect := float64(targetW) / float64(targetH)
	origAspect := float64(origW) / float64(origH)

	if origAspect > targetAspect {
		// Original is relatively wider: full height, cropped width.
		h = origH
		w = int(math.Round(float64(origH) * targetAspect))
	} else {
		w = origW
		h = int(math.Round(float64(origW) / targetAspect))
	}

	cx := float64(origW) / 2
	cy := float64(origH) / 2
	if focal != nil {
		cx = focal.X * float64(origW)
		cy = focal.Y * float64(origH)
	}

	x = clamp(int(math.Round(cx-float64(w)/2)), 0, origW-w)
	y = clamp(int(math.Round(cy-float64(h)/2)), 0, origH-h)
	return x, y, w, h
}

// ContainSize computes the output dimensions for contain fit: scaled to fit
// within the target bounds preserving aspect ratio, never upscaled.
func ContainSize(origW, origH, targetW, targetH int) (w, h int) {
	scale := math.Min(float64(targetW)/float64(origW), float64(targetH)/float64(origH))
	if scale >= 1 {
		return origW, origH
	}

	w = int(math.Round(float64(origW) * scale))
	h = int(math.Round(float64(origH) * scale))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return w, h
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
