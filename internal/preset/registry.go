package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// Registry is a lookup table from preset name to recipe. It preserves
// insertion order for iteration. The registry is populated once at startup
// and treated as immutable afterward; Add exists for bootstrap and test
// wiring only.
type Registry struct {
	presets map[string]Preset
	order   []string
}

// NewRegistry creates a registry containing the given presets, in order.
func NewRegistry(presets ...Preset) *Registry {
	r := &Registry{presets: make(map[string]Preset, len(presets))}
	for _, p := range presets {
		r.Add(p)
	}
	return r
}

// Add upserts a preset; the last write for a name wins. Adding an existing
// name keeps its original position in iteration order.
func (r *Registry) Add(p Preset) {
	if _, exists := r.presets[p.Name]; !exists {
		r.order = append(r.order, p.Name)
	}
	r.presets[p.Name] = p
}

// Get returns the preset for a name, or false if unknown.
func (r *Registry) Get(name string) (Preset, bool) {
	p, ok := r.presets[name]
	return p, ok
}

// Has reports whether a preset with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.presets[name]
	return ok
}

// All returns the registered presets in insertion order.
func (r *Registry) All() []Preset {
	out := make([]Preset, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.presets[name])
	}
	return out
}

// Names returns the registered preset names in insertion order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered presets.
func (r *Registry) Len() int {
	return len(r.order)
}

// ThumbSmall is the well-known small preset used for admin thumbnails and
// best-effort thumbnail URLs in progress events.
const ThumbSmall = "thumb_small"

// Defaults returns the built-in admin presets. Applications define their own
// front-end presets on top of these, either via Add or a presets file.
func Defaults() []Preset {
	return []Preset{
		New(ThumbSmall, 227, 227, WithResponsiveWidths(227)),
		New("thumb_large", 300, 300, WithResponsiveWidths(300)),
	}
}

// presetFile is the on-disk JSON shape of one preset definition.
type presetFile struct {
	MaxWidth         int            `json:"maxWidth"`
	MaxHeight        int            `json:"maxHeight"`
	FitMode          string         `json:"fitMode"`
	Quality          map[string]int `json:"quality"`
	UseFocalPoint    *bool          `json:"useFocalPoint"`
	Formats          []string       `json:"formats"`
	ResponsiveWidths []int          `json:"responsiveWidths"`
}

// LoadFile reads additional preset definitions from a JSON file and merges
// them into the registry. The file maps preset name to definition; omitted
// fields fall back to the package defaults.
func (r *Registry) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read presets file: %w", err)
	}

	var raw map[string]presetFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse presets file %s: %w", path, err)
	}

	// Load in a deterministic order: JSON maps are unordered, so sort by name.
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := raw[name]

		opts := []Option{}
		if def.FitMode != "" {
			mode, err := ParseFitMode(def.FitMode)
			if err != nil {
				return fmt.Errorf("preset %q: %w", name, err)
			}
			opts = append(opts, WithFit(mode))
		}
		if len(def.Quality) > 0 {
			opts = append(opts, WithQuality(def.Quality))
		}
		if def.UseFocalPoint != nil {
			opts = append(opts, WithFocalPoint(*def.UseFocalPoint))
		}
		if len(def.Formats) > 0 {
			opts = append(opts, WithFormats(def.Formats...))
		}
		if len(def.ResponsiveWidths) > 0 {
			opts = append(opts, WithResponsiveWidths(def.ResponsiveWidths...))
		}

		r.Add(New(name, def.MaxWidth, def.MaxHeight, opts...))
	}

	return nil
}
