package regen

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"media-variants/internal/codec"
	"media-variants/internal/database"
	"media-variants/internal/preset"
	"media-variants/internal/progress"
	"media-variants/internal/storage"
	"media-variants/internal/variant"
)

type testEnv struct {
	db           *database.Database
	backend      *storage.Local
	registry     *preset.Registry
	resolver     *variant.PathResolver
	hub          *progress.Hub
	orchestrator *Orchestrator
	batch        *Batch
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.New(ctx, filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	backend, err := storage.NewLocal(t.TempDir(), "/media")
	if err != nil {
		t.Fatal(err)
	}

	registry := preset.NewRegistry()
	resolver := variant.NewPathResolver(backend)
	processor := codec.NewFallback()
	generator := variant.NewGenerator(processor, resolver, backend, registry)
	cleaner := variant.NewCleaner(backend, resolver, registry)
	hub := progress.NewHub()
	orchestrator := NewOrchestrator(db, registry, generator, cleaner, resolver, hub)

	return &testEnv{
		db:           db,
		backend:      backend,
		registry:     registry,
		resolver:     resolver,
		hub:          hub,
		orchestrator: orchestrator,
		batch:        NewBatch(db, registry, processor, orchestrator),
	}
}

func (e *testEnv) addImage(t *testing.T, id, hash string) *database.Media {
	t.Helper()
	ctx := context.Background()

	img := image.NewRGBA(image.Rect(0, 0, 800, 600))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{90, 140, 60, 255}), image.Point{}, draw.Src)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatal(err)
	}

	m := &database.Media{
		ID:        id,
		Path:      "uploads/2026/08/" + id + ".jpg",
		Ext:       "jpg",
		Mime:      "image/jpeg",
		Hash:      hash,
		SizeBytes: int64(buf.Len()),
		Width:     800,
		Height:    600,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.backend.Write(ctx, m.Path, buf.Bytes()); err != nil {
		t.Fatal(err)
	}
	if err := e.db.SaveMedia(ctx, m); err != nil {
		t.Fatal(err)
	}
	return m
}

func (e *testEnv) addDefaultPresets() {
	e.registry.Add(preset.New(preset.ThumbSmall, 400, 400,
		preset.WithFormats("jpg"),
		preset.WithResponsiveWidths(200, 400)))
	e.registry.Add(preset.New("thumb_large", 600, 600,
		preset.WithFormats("jpg"),
		preset.WithResponsiveWidths(300, 600)))
}

func drainEvents(ch <-chan []byte) []map[string]any {
	var events []map[string]any
	for {
		select {
		case data := <-ch:
			var m map[string]any
			if json.Unmarshal(data, &m) == nil {
				events = append(events, m)
			}
		default:
			return events
		}
	}
}

func TestRegenerateFullMatrix(t *testing.T) {
	env := newTestEnv(t)
	env.addDefaultPresets()
	m := env.addImage(t, "m1", "cafe0123456789ab")
	ctx := context.Background()

	ch, cancel := env.hub.Subscribe(progress.Channel(m.ID))
	defer cancel()

	report, err := env.orchestrator.Regenerate(ctx, m.ID, Options{})
	if err != nil {
		t.Fatalf("Regenerate() error = %v", err)
	}
	if report.TotalVariants != 4 {
		t.Errorf("TotalVariants = %d, want 4", report.TotalVariants)
	}
	if report.Failed != 0 {
		t.Errorf("Failed = %d, want 0", report.Failed)
	}
	if report.ThumbnailURL == "" {
		t.Error("ThumbnailURL is empty")
	}

	// Index holds one row per (preset, width, format) cell.
	vs, err := env.db.VariantsByMedia(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(vs) != 4 {
		t.Fatalf("indexed %d variants, want 4", len(vs))
	}
	for _, v := range vs {
		ok, err := env.backend.Exists(ctx, v.Path)
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			t.Errorf("indexed variant has no file: %s", v.Path)
		}
		if v.Fingerprint == "" {
			t.Errorf("variant %s has empty fingerprint", v.Path)
		}
	}

	events := drainEvents(ch)
	var presetDone, complete int
	for _, ev := range events {
		switch ev["type"] {
		case progress.TypePresetComplete:
			presetDone++
			if ev["totalPresets"] != float64(2) {
				t.Errorf("totalPresets = %v, want 2", ev["totalPresets"])
			}
		case progress.TypeComplete:
			complete++
			if ev["totalVariants"] != float64(4) {
				t.Errorf("totalVariants = %v, want 4", ev["totalVariants"])
			}
			if ev["thumbnailUrl"] == "" {
				t.Error("complete event missing thumbnailUrl")
			}
		}
	}
	if presetDone != 2 || complete != 1 {
		t.Errorf("events = %d preset_complete + %d complete, want 2 + 1", presetDone, complete)
	}
}

func TestRegenerateReplacesStaleVariants(t *testing.T) {
	env := newTestEnv(t)
	env.addDefaultPresets()
	m := env.addImage(t, "m1", "cafe0123456789ab")
	ctx := context.Background()

	if _, err := env.orchestrator.Regenerate(ctx, m.ID, Options{}); err != nil {
		t.Fatal(err)
	}
	if _, err := env.orchestrator.Regenerate(ctx, m.ID, Options{}); err != nil {
		t.Fatal(err)
	}

	vs, err := env.db.VariantsByMedia(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(vs) != 4 {
		t.Errorf("indexed %d variants after second run, want 4", len(vs))
	}
}

func TestRegenerateSinglePreset(t *testing.T) {
	env := newTestEnv(t)
	env.addDefaultPresets()
	m := env.addImage(t, "m1", "cafe0123456789ab")
	ctx := context.Background()

	report, err := env.orchestrator.Regenerate(ctx, m.ID, Options{Preset: "thumb_large"})
	if err != nil {
		t.Fatalf("Regenerate() error = %v", err)
	}
	if report.TotalVariants != 2 {
		t.Errorf("TotalVariants = %d, want 2", report.TotalVariants)
	}

	vs, err := env.db.VariantsByMedia(ctx, m.ID)
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range vs {
		if v.Preset != "thumb_large" {
			t.Errorf("unexpected preset %s in index", v.Preset)
		}
	}
}

func TestRegenerateUnknownPreset(t *testing.T) {
	env := newTestEnv(t)
	env.addDefaultPresets()
	m := env.addImage(t, "m1", "cafe0123456789ab")

	if _, err := env.orchestrator.Regenerate(context.Background(), m.ID, Options{Preset: "nope"}); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}

func TestRegenerateUnknownMedia(t *testing.T) {
	env := newTestEnv(t)
	env.addDefaultPresets()

	if _, err := env.orchestrator.Regenerate(context.Background(), "ghost", Options{}); err == nil {
		t.Fatal("expected error for unknown media")
	}
}

func TestRegenerateNonImage(t *testing.T) {
	env := newTestEnv(t)
	env.addDefaultPresets()
	ctx := context.Background()

	m := &database.Media{
		ID:        "doc1",
		Path:      "uploads/2026/08/doc1.pdf",
		Ext:       "pdf",
		Mime:      "application/pdf",
		Hash:      "feedface",
		CreatedAt: time.Now().UTC(),
	}
	if err := env.db.SaveMedia(ctx, m); err != nil {
		t.Fatal(err)
	}

	report, err := env.orchestrator.Regenerate(ctx, m.ID, Options{})
	if err != nil {
		t.Fatalf("Regenerate() error = %v", err)
	}
	if report.TotalVariants != 0 {
		t.Errorf("TotalVariants = %d for non-image, want 0", report.TotalVariants)
	}
}

func TestRegenerateSingleFlight(t *testing.T) {
	env := newTestEnv(t)
	env.addDefaultPresets()
	m := env.addImage(t, "m1", "cafe0123456789ab")

	if !env.orchestrator.acquire(m.ID) {
		t.Fatal("acquire failed on idle media")
	}

	var wg sync.WaitGroup
	wg.Add(1)
	var err error
	go func() {
		defer wg.Done()
		_, err = env.orchestrator.RegenerateMedia(context.Background(), m, Options{})
	}()
	wg.Wait()

	if err != ErrInProgress {
		t.Errorf("concurrent regeneration error = %v, want ErrInProgress", err)
	}
	env.orchestrator.release(m.ID)

	if _, err := env.orchestrator.RegenerateMedia(context.Background(), m, Options{}); err != nil {
		t.Errorf("regeneration after release error = %v", err)
	}
}

func TestBatchRun(t *testing.T) {
	env := newTestEnv(t)
	env.addDefaultPresets()
	env.addImage(t, "m1", "hash-m1")
	env.addImage(t, "m2", "hash-m2")
	env.addImage(t, "m3", "hash-m3")
	ctx := context.Background()

	report, err := env.batch.Run(ctx, BatchOptions{})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Processed != 3 || report.Skipped != 0 || report.Failed != 0 {
		t.Errorf("report = %+v, want 3 processed", report)
	}
	if report.Variants != 12 {
		t.Errorf("Variants = %d, want 12", report.Variants)
	}

	// Second run skips everything, full coverage already exists.
	report, err = env.batch.Run(ctx, BatchOptions{})
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if report.Processed != 0 || report.Skipped != 3 {
		t.Errorf("second run report = %+v, want 3 skipped", report)
	}

	// Force processes them again.
	report, err = env.batch.Run(ctx, BatchOptions{Force: true})
	if err != nil {
		t.Fatalf("forced Run() error = %v", err)
	}
	if report.Processed != 3 {
		t.Errorf("forced run processed = %d, want 3", report.Processed)
	}
}

func TestBatchRunLimitOffset(t *testing.T) {
	env := newTestEnv(t)
	env.addDefaultPresets()
	env.addImage(t, "m1", "hash-m1")
	env.addImage(t, "m2", "hash-m2")
	env.addImage(t, "m3", "hash-m3")

	report, err := env.batch.Run(context.Background(), BatchOptions{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Processed != 2 {
		t.Errorf("Processed = %d, want 2", report.Processed)
	}
}

func TestBatchRunUnknownPreset(t *testing.T) {
	env := newTestEnv(t)
	env.addDefaultPresets()

	if _, err := env.batch.Run(context.Background(), BatchOptions{Preset: "nope"}); err == nil {
		t.Fatal("expected error for unknown preset")
	}
}
