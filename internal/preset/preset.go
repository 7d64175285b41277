// Package preset defines the named transformation recipes used to derive
// image variants, and the registry that holds them.
package preset

import (
	"fmt"
	"math"
)

// FitMode describes how an image is fitted into the target dimensions.
type FitMode string

const (
	// FitCover crops the image to fill the exact dimensions, focal point aware.
	FitCover FitMode = "cover"
	// FitContain scales the image to fit within the bounds, preserving aspect ratio.
	FitContain FitMode = "contain"
	// FitScale scales the image to the exact dimensions, possibly distorting it.
	FitScale FitMode = "scale"
)

// ParseFitMode converts a configuration string into a FitMode.
func ParseFitMode(s string) (FitMode, error) {
	switch FitMode(s) {
	case FitCover, FitContain, FitScale:
		return FitMode(s), nil
	}
	return "", fmt.Errorf("unknown fit mode %q", s)
}

// DefaultResponsiveWidths are the candidate srcset widths used when a preset
// does not declare its own.
var DefaultResponsiveWidths = []int{320, 640, 960, 1280, 1920}

// DefaultQuality is the per-format quality used when a preset does not
// declare its own.
var DefaultQuality = map[string]int{"avif": 60, "webp": 75, "jpg": 80}

// DefaultFormats are the output formats, in order of preference, used when a
// preset does not declare its own.
var DefaultFormats = []string{"avif", "webp", "jpg"}

// Preset is an immutable recipe for deriving image variants.
//
// Formats is never empty and Quality is always resolvable via QualityFor's
// fallback chain; use New to get those guarantees.
type Preset struct {
	Name      string `json:"name"`
	MaxWidth  int    `json:"maxWidth"`
	MaxHeight int    `json:"maxHeight"`

	Fit FitMode `json:"fitMode"`

	// Quality per format, e.g. {"avif": 60, "webp": 75, "jpg": 80}.
	Quality map[string]int `json:"quality"`

	UseFocalPoint bool `json:"useFocalPoint"`

	// Formats are output formats in order of preference.
	Formats []string `json:"formats"`

	// ResponsiveWidths are candidate widths, filtered to <= MaxWidth at
	// generation time.
	ResponsiveWidths []int `json:"responsiveWidths"`
}

// New builds a Preset, filling unset recipe fields with the package defaults.
func New(name string, maxWidth, maxHeight int, opts ...Option) Preset {
	p := Preset{
		Name:             name,
		MaxWidth:         maxWidth,
		MaxHeight:        maxHeight,
		Fit:              FitCover,
		Quality:          DefaultQuality,
		UseFocalPoint:    true,
		Formats:          DefaultFormats,
		ResponsiveWidths: DefaultResponsiveWidths,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// Option customizes a Preset built with New.
type Option func(*Preset)

// WithFit sets the fit mode.
func WithFit(mode FitMode) Option {
	return func(p *Preset) { p.Fit = mode }
}

// WithQuality sets the per-format quality map.
func WithQuality(quality map[string]int) Option {
	return func(p *Preset) { p.Quality = quality }
}

// WithFocalPoint sets whether the preset biases crops toward the focal point.
func WithFocalPoint(use bool) Option {
	return func(p *Preset) { p.UseFocalPoint = use }
}

// WithFormats sets the output formats in preference order.
func WithFormats(formats ...string) Option {
	return func(p *Preset) { p.Formats = formats }
}

// WithResponsiveWidths sets the candidate srcset widths.
func WithResponsiveWidths(widths ...int) Option {
	return func(p *Preset) { p.ResponsiveWidths = widths }
}

// QualityFor resolves the quality for a format, falling back to the jpg
// entry and finally to 80.
func (p Preset) QualityFor(format string) int {
	if q, ok := p.Quality[format]; ok {
		return q
	}
	if q, ok := p.Quality["jpg"]; ok {
		return q
	}
	return 80
}

// EffectiveWidths returns the responsive widths filtered to those <= MaxWidth,
// in declaration order.
func (p Preset) EffectiveWidths() []int {
	widths := make([]int, 0, len(p.ResponsiveWidths))
	for _, w := range p.ResponsiveWidths {
		if w <= p.MaxWidth {
			widths = append(widths, w)
		}
	}
	return widths
}

// CalculateHeight returns the proportional target height for a given width,
// maintaining the MaxWidth:MaxHeight aspect ratio. With MaxWidth == 0 the
// height is MaxHeight unconditionally.
func (p Preset) CalculateHeight(width int) int {
	if p.MaxWidth == 0 {
		return p.MaxHeight
	}
	return int(math.Round(float64(p.MaxHeight) * float64(width) / float64(p.MaxWidth)))
}
