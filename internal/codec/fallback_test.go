package codec

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"media-variants/internal/preset"
)

// writeTestJPEG writes a solid-color JPEG of the given size and returns its path.
func writeTestJPEG(t *testing.T, dir string, w, h int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 200, G: 100, B: 50, A: 255}}, image.Point{}, draw.Src)

	path := filepath.Join(dir, "source.jpg")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFallbackSupportsFormat(t *testing.T) {
	f := NewFallback()

	for _, format := range []string{"jpg", "jpeg", "png", "gif"} {
		if !f.SupportsFormat(format) {
			t.Errorf("SupportsFormat(%q) = false, want true", format)
		}
	}
	for _, format := range []string{"webp", "avif", "tiff"} {
		if f.SupportsFormat(format) {
			t.Errorf("SupportsFormat(%q) = true, want false", format)
		}
	}
}

func TestFallbackProcessCover(t *testing.T) {
	dir := t.TempDir()
	src := writeTestJPEG(t, dir, 800, 400)
	dest := filepath.Join(dir, "out", "cover.jpg")

	f := NewFallback()
	res, err := f.Process(context.Background(), src, dest, 200, 200, preset.FitCover, "jpg", 80, nil)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	if res.Width != 200 || res.Height != 200 {
		t.Errorf("cover output = %dx%d, want 200x200", res.Width, res.Height)
	}
	if res.SizeBytes <= 0 {
		t.Error("cover output has no bytes")
	}

	// The written file must decode to the reported dimensions.
	w, h, err := f.Dimensions(dest)
	if err != nil {
		t.Fatalf("Dimensions() error: %v", err)
	}
	if w != 200 || h != 200 {
		t.Errorf("written file = %dx%d, want 200x200", w, h)
	}
}

func TestFallbackProcessCoverWithFocalPoint(t *testing.T) {
	dir := t.TempDir()

	// Left half red, right half blue; focal point far left must keep red.
	img := image.NewRGBA(image.Rect(0, 0, 400, 200))
	draw.Draw(img, image.Rect(0, 0, 200, 200), &image.Uniform{C: color.RGBA{R: 255, A: 255}}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(200, 0, 400, 200), &image.Uniform{C: color.RGBA{B: 255, A: 255}}, image.Point{}, draw.Src)

	src := filepath.Join(dir, "split.png")
	sf, err := os.Create(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := png.Encode(sf, img); err != nil {
		t.Fatal(err)
	}
	sf.Close()

	dest := filepath.Join(dir, "focal.png")
	f := NewFallback()
	_, err = f.Process(context.Background(), src, dest, 100, 100, preset.FitCover, "png", 80, &FocalPoint{X: 0.0, Y: 0.5})
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	df, err := os.Open(dest)
	if err != nil {
		t.Fatal(err)
	}
	defer df.Close()

	out, err := png.Decode(df)
	if err != nil {
		t.Fatal(err)
	}

	r, _, b, _ := out.At(50, 50).RGBA()
	if r < b {
		t.Errorf("focal crop at left edge produced blue-dominant output (r=%d b=%d)", r, b)
	}
}

func TestFallbackProcessContain(t *testing.T) {
	dir := t.TempDir()
	src := writeTestJPEG(t, dir, 800, 400)
	dest := filepath.Join(dir, "contain.jpg")

	f := NewFallback()
	res, err := f.Process(context.Background(), src, dest, 200, 200, preset.FitContain, "jpg", 80, nil)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	// Aspect preserved: one axis smaller than requested.
	if res.Width != 200 || res.Height != 100 {
		t.Errorf("contain output = %dx%d, want 200x100", res.Width, res.Height)
	}
}

func TestFallbackProcessScale(t *testing.T) {
	dir := t.TempDir()
	src := writeTestJPEG(t, dir, 800, 400)
	dest := filepath.Join(dir, "scale.jpg")

	f := NewFallback()
	res, err := f.Process(context.Background(), src, dest, 300, 300, preset.FitScale, "jpg", 80, nil)
	if err != nil {
		t.Fatalf("Process() error: %v", err)
	}

	// Stretch distorts to exact dimensions.
	if res.Width != 300 || res.Height != 300 {
		t.Errorf("scale output = %dx%d, want 300x300", res.Width, res.Height)
	}
}

func TestFallbackProcessUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	src := writeTestJPEG(t, dir, 100, 100)

	f := NewFallback()
	_, err := f.Process(context.Background(), src, filepath.Join(dir, "o.avif"), 50, 50, preset.FitCover, "avif", 60, nil)
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("Process(avif) error = %v, want ErrUnsupportedFormat", err)
	}
}

func TestFallbackProcessCorruptSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "corrupt.jpg")
	if err := os.WriteFile(src, []byte("not an image"), 0644); err != nil {
		t.Fatal(err)
	}

	f := NewFallback()
	_, err := f.Process(context.Background(), src, filepath.Join(dir, "o.jpg"), 50, 50, preset.FitCover, "jpg", 80, nil)
	if err == nil {
		t.Error("Process() of corrupt source expected error")
	}
}

func TestFallbackProcessCancelledContext(t *testing.T) {
	dir := t.TempDir()
	src := writeTestJPEG(t, dir, 100, 100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewFallback()
	_, err := f.Process(ctx, src, filepath.Join(dir, "o.jpg"), 50, 50, preset.FitCover, "jpg", 80, nil)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Process() error = %v, want context.Canceled", err)
	}
}
