package codec

import (
	"testing"
)

func TestCoverWindow(t *testing.T) {
	tests := []struct {
		name                   string
		origW, origH           int
		targetW, targetH       int
		focal                  *FocalPoint
		wantX, wantY           int
		wantW, wantH           int
	}{
		{
			name:  "Wider original, centered",
			origW: 2000, origH: 1000, targetW: 500, targetH: 500,
			focal: nil,
			// target aspect 1.0, crop 1000x1000 centered
			wantX: 500, wantY: 0, wantW: 1000, wantH: 1000,
		},
		{
			name:  "Taller original, centered",
			origW: 1000, origH: 2000, targetW: 500, targetH: 500,
			focal: nil,
			wantX: 0, wantY: 500, wantW: 1000, wantH: 1000,
		},
		{
			name:  "Focal point shifts window",
			origW: 2000, origH: 1000, targetW: 500, targetH: 500,
			focal: &FocalPoint{X: 0.25, Y: 0.5},
			// center at x=500 -> window starts at 0
			wantX: 0, wantY: 0, wantW: 1000, wantH: 1000,
		},
		{
			name:  "Focal point clamped at right edge",
			origW: 2000, origH: 1000, targetW: 500, targetH: 500,
			focal: &FocalPoint{X: 1.0, Y: 0.5},
			wantX: 1000, wantY: 0, wantW: 1000, wantH: 1000,
		},
		{
			name:  "Focal point clamped at top edge",
			origW: 1000, origH: 2000, targetW: 500, targetH: 500,
			focal: &FocalPoint{X: 0.5, Y: 0.0},
			wantX: 0, wantY: 0, wantW: 1000, wantH: 1000,
		},
		{
			name:  "Same aspect keeps full image",
			origW: 1000, origH: 500, targetW: 500, targetH: 250,
			focal: nil,
			wantX: 0, wantY: 0, wantW: 1000, wantH: 500,
		},
		{
			name:  "Non-square target aspect",
			origW: 1920, origH: 1080, targetW: 320, targetH: 180,
			focal: nil,
			// identical aspect ratio, full frame
			wantX: 0, wantY: 0, wantW: 1920, wantH: 1080,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, w, h := CoverWindow(tt.origW, tt.origH, tt.targetW, tt.targetH, tt.focal)
			if x != tt.wantX || y != tt.wantY || w != tt.wantW || h != tt.wantH {
				t.Errorf("CoverWindow() = (%d,%d,%d,%d), want (%d,%d,%d,%d)",
					x, y, w, h, tt.wantX, tt.wantY, tt.wantW, tt.wantH)
			}

			// Window must never extend outside the original.
			if x < 0 || y < 0 || x+w > tt.origW || y+h > tt.origH {
				t.Errorf("CoverWindow() = (%d,%d,%d,%d) escapes %dx%d bounds",
					x, y, w, h, tt.origW, tt.origH)
			}
		})
	}
}

func TestContainSize(t *testing.T) {
	tests := []struct {
		name             string
		origW, origH     int
		targetW, targetH int
		wantW, wantH     int
	}{
		{"Width-bound", 2000, 1000, 500, 500, 500, 250},
		{"Height-bound", 1000, 2000, 500, 500, 250, 500},
		{"Exact fit", 1000, 500, 1000, 500, 1000, 500},
		{"No upscaling", 100, 50, 500, 500, 100, 50},
		{"Extreme aspect keeps at least one pixel", 10000, 10, 100, 100, 100, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := ContainSize(tt.origW, tt.origH, tt.targetW, tt.targetH)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("ContainSize() = %dx%d, want %dx%d", w, h, tt.wantW, tt.wantH)
			}
		})
	}
}

func TestFocalPointValid(t *testing.T) {
	tests := []struct {
		name  string
		focal FocalPoint
		want  bool
	}{
		{"Center", FocalPoint{0.5, 0.5}, true},
		{"Corners", FocalPoint{0, 1}, true},
		{"X below range", FocalPoint{-0.1, 0.5}, false},
		{"Y above range", FocalPoint{0.5, 1.1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.focal.Valid(); got != tt.want {
				t.Errorf("Valid() = %v, want %v", got, tt.want)
			}
		})
	}
}
