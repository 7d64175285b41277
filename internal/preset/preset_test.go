package preset

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestEffectiveWidths(t *testing.T) {
	tests := []struct {
		name     string
		maxWidth int
		widths   []int
		want     []int
	}{
		{
			name:     "Filters widths above maxWidth",
			maxWidth: 1000,
			widths:   []int{320, 640, 960, 1280, 1920},
			want:     []int{320, 640, 960},
		},
		{
			name:     "maxWidth itself is included",
			maxWidth: 960,
			widths:   []int{320, 640, 960, 1280},
			want:     []int{320, 640, 960},
		},
		{
			name:     "All widths above maxWidth",
			maxWidth: 100,
			widths:   []int{320, 640},
			want:     []int{},
		},
		{
			name:     "Single width",
			maxWidth: 227,
			widths:   []int{227},
			want:     []int{227},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New("test", tt.maxWidth, tt.maxWidth, WithResponsiveWidths(tt.widths...))
			got := p.EffectiveWidths()
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("EffectiveWidths() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCalculateHeight(t *testing.T) {
	tests := []struct {
		name      string
		maxWidth  int
		maxHeight int
		width     int
		want      int
	}{
		{"Full width returns maxHeight", 1920, 1080, 1920, 1080},
		{"Half width halves height", 1920, 1080, 960, 540},
		{"Rounds to nearest", 1000, 333, 500, 167},
		{"Zero maxWidth returns maxHeight", 0, 400, 320, 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New("test", tt.maxWidth, tt.maxHeight)
			if got := p.CalculateHeight(tt.width); got != tt.want {
				t.Errorf("CalculateHeight(%d) = %d, want %d", tt.width, got, tt.want)
			}
		})
	}
}

func TestQualityFor(t *testing.T) {
	tests := []struct {
		name    string
		quality map[string]int
		format  string
		want    int
	}{
		{"Explicit format entry", map[string]int{"avif": 60, "jpg": 80}, "avif", 60},
		{"Falls back to jpg entry", map[string]int{"jpg": 85}, "webp", 85},
		{"Falls back to 80 when jpg absent", map[string]int{"png": 90}, "webp", 80},
		{"Empty map falls back to 80", map[string]int{}, "jpg", 80},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New("test", 100, 100, WithQuality(tt.quality))
			if got := p.QualityFor(tt.format); got != tt.want {
				t.Errorf("QualityFor(%q) = %d, want %d", tt.format, got, tt.want)
			}
		})
	}
}

func TestParseFitMode(t *testing.T) {
	for _, valid := range []string{"cover", "contain", "scale"} {
		if _, err := ParseFitMode(valid); err != nil {
			t.Errorf("ParseFitMode(%q) unexpected error: %v", valid, err)
		}
	}

	if _, err := ParseFitMode("stretch"); err == nil {
		t.Error("ParseFitMode(\"stretch\") expected error")
	}
}

func TestRegistryOrderAndUpsert(t *testing.T) {
	r := NewRegistry(
		New("hero", 1920, 1080),
		New("card", 640, 480),
		New("thumb", 227, 227),
	)

	if got := r.Names(); !reflect.DeepEqual(got, []string{"hero", "card", "thumb"}) {
		t.Errorf("Names() = %v, want insertion order", got)
	}

	// Upsert keeps position, last write wins.
	r.Add(New("card", 800, 600))

	if got := r.Names(); !reflect.DeepEqual(got, []string{"hero", "card", "thumb"}) {
		t.Errorf("Names() after upsert = %v, want unchanged order", got)
	}

	card, ok := r.Get("card")
	if !ok {
		t.Fatal("Get(\"card\") not found after upsert")
	}
	if card.MaxWidth != 800 {
		t.Errorf("upserted card MaxWidth = %d, want 800", card.MaxWidth)
	}

	if !r.Has("hero") || r.Has("missing") {
		t.Error("Has() gave wrong answers")
	}

	if r.Len() != 3 {
		t.Errorf("Len() = %d, want 3", r.Len())
	}
}

func TestDefaults(t *testing.T) {
	r := NewRegistry(Defaults()...)

	small, ok := r.Get(ThumbSmall)
	if !ok {
		t.Fatalf("default registry missing %s", ThumbSmall)
	}
	if small.MaxWidth != 227 || small.MaxHeight != 227 {
		t.Errorf("thumb_small = %dx%d, want 227x227", small.MaxWidth, small.MaxHeight)
	}
	if got := small.EffectiveWidths(); !reflect.DeepEqual(got, []int{227}) {
		t.Errorf("thumb_small effective widths = %v, want [227]", got)
	}
	if len(small.Formats) == 0 {
		t.Error("thumb_small has no formats")
	}

	if !r.Has("thumb_large") {
		t.Error("default registry missing thumb_large")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "presets.json")

	content := `{
		"header": {
			"maxWidth": 1920,
			"maxHeight": 640,
			"fitMode": "cover",
			"quality": {"avif": 55, "webp": 70, "jpg": 78},
			"formats": ["avif", "webp", "jpg"],
			"responsiveWidths": [640, 1280, 1920]
		},
		"logo": {
			"maxWidth": 400,
			"maxHeight": 200,
			"fitMode": "contain",
			"useFocalPoint": false,
			"formats": ["webp", "png"]
		}
	}`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	r := NewRegistry(Defaults()...)
	if err := r.LoadFile(path); err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}

	header, ok := r.Get("header")
	if !ok {
		t.Fatal("header preset not loaded")
	}
	if header.Fit != FitCover {
		t.Errorf("header fit = %s, want cover", header.Fit)
	}
	if header.QualityFor("avif") != 55 {
		t.Errorf("header avif quality = %d, want 55", header.QualityFor("avif"))
	}
	if !header.UseFocalPoint {
		t.Error("header should default to focal point usage")
	}

	logo, ok := r.Get("logo")
	if !ok {
		t.Fatal("logo preset not loaded")
	}
	if logo.Fit != FitContain {
		t.Errorf("logo fit = %s, want contain", logo.Fit)
	}
	if logo.UseFocalPoint {
		t.Error("logo useFocalPoint should be false")
	}
	// Unset fields fall back to defaults.
	if got := logo.QualityFor("jpg"); got != 80 {
		t.Errorf("logo jpg quality = %d, want default 80", got)
	}
}

func TestLoadFileErrors(t *testing.T) {
	r := NewRegistry()

	if err := r.LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadFile of missing file expected error")
	}

	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte(`{"x": {"fitMode": "diagonal"}}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := r.LoadFile(bad); err == nil {
		t.Error("LoadFile with invalid fit mode expected error")
	}
}
