package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"media-variants/internal/codec"
	"media-variants/internal/database"
	"media-variants/internal/orphan"
	"media-variants/internal/preset"
	"media-variants/internal/regen"
	"media-variants/internal/storage"
	"media-variants/internal/variant"
)

const (
	defaultDatabaseDir = "/database"
	defaultMediaDir    = "/media"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]

	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	switch command {
	case "regenerate":
		if !runRegenerate(ctx, os.Args[2:]) {
			os.Exit(1)
		}
	case "clean-orphans":
		if !runCleanOrphans(ctx, os.Args[2:]) {
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage()
		os.Exit(1)
	}
}

func runRegenerate(ctx context.Context, args []string) bool {
	fs := flag.NewFlagSet("regenerate", flag.ExitOnError)
	presetName := fs.String("preset", "", "restrict regeneration to a single preset")
	force := fs.Bool("force", false, "rebuild even when all variants already exist")
	limit := fs.Int("limit", 0, "maximum number of media items to process (0 = all)")
	offset := fs.Int("offset", 0, "number of media items to skip before processing")
	if err := fs.Parse(args); err != nil {
		return false
	}

	env, err := setup(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}
	defer env.close()

	batch := regen.NewBatch(env.db, env.registry, env.processor, env.orchestrator)
	report, err := batch.Run(ctx, regen.BatchOptions{
		Preset: *presetName,
		Force:  *force,
		Limit:  *limit,
		Offset: *offset,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Regeneration failed: %v\n", err)
		return false
	}

	fmt.Printf("Processed: %d\n", report.Processed)
	fmt.Printf("Skipped:   %d\n", report.Skipped)
	fmt.Printf("Failed:    %d\n", report.Failed)
	fmt.Printf("Variants:  %d\n", report.Variants)
	return report.Failed == 0
}

func runCleanOrphans(ctx context.Context, args []string) bool {
	fs := flag.NewFlagSet("clean-orphans", flag.ExitOnError)
	dryRun := fs.Bool("dry-run", false, "report orphaned files without deleting them")
	if err := fs.Parse(args); err != nil {
		return false
	}

	env, err := setup(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return false
	}
	defer env.close()

	reconciler := orphan.NewReconciler(env.db, env.backend)
	report, err := reconciler.Run(ctx, *dryRun)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Orphan scan failed: %v\n", err)
		return false
	}

	fmt.Printf("Scanned:     %d\n", report.Scanned)
	fmt.Printf("Orphans:     %d\n", report.Orphans)
	if *dryRun {
		fmt.Printf("Would free:  %d bytes\n", report.BytesFreed)
	} else {
		fmt.Printf("Deleted:     %d\n", report.Deleted)
		fmt.Printf("Bytes freed: %d\n", report.BytesFreed)
	}
	return true
}

// env bundles the wired services a subcommand needs.
type env struct {
	db           *database.Database
	backend      storage.Backend
	registry     *preset.Registry
	processor    codec.Processor
	orchestrator *regen.Orchestrator
	vips         bool
}

func setup(ctx context.Context) (*env, error) {
	databaseDir := getEnv("DATABASE_DIR", defaultDatabaseDir)
	dbPath := filepath.Join(databaseDir, "variants.db")

	db, err := database.New(ctx, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database at %s: %w", dbPath, err)
	}

	backend, err := newBackend(ctx)
	if err != nil {
		db.Close()
		return nil, err
	}

	registry, err := newRegistry()
	if err != nil {
		db.Close()
		return nil, err
	}

	e := &env{db: db, backend: backend, registry: registry}
	if err := codec.InitVips(); err != nil {
		e.processor = codec.NewFallback()
	} else {
		e.processor = codec.NewVips()
		e.vips = true
	}

	resolver := variant.NewPathResolver(backend)
	generator := variant.NewGenerator(e.processor, resolver, backend, registry)
	cleaner := variant.NewCleaner(backend, resolver, registry)
	e.orchestrator = regen.NewOrchestrator(db, registry, generator, cleaner, resolver, nil)
	return e, nil
}

func (e *env) close() {
	if e.vips {
		codec.ShutdownVips()
	}
	if err := e.db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
	}
}

func newBackend(ctx context.Context) (storage.Backend, error) {
	urlPrefix := strings.TrimRight(getEnv("PUBLIC_URL", "/media"), "/")
	if getEnv("STORAGE_BACKEND", "local") == "s3" {
		useSSL := true
		if v := os.Getenv("S3_USE_SSL"); v != "" {
			if parsed, err := strconv.ParseBool(v); err == nil {
				useSSL = parsed
			}
		}
		return storage.NewS3(ctx, storage.S3Config{
			Endpoint:  os.Getenv("S3_ENDPOINT"),
			AccessKey: os.Getenv("S3_ACCESS_KEY"),
			SecretKey: os.Getenv("S3_SECRET_KEY"),
			Bucket:    getEnv("S3_BUCKET", "media"),
			UseSSL:    useSSL,
			URLPrefix: urlPrefix,
		})
	}
	return storage.NewLocal(getEnv("MEDIA_DIR", defaultMediaDir), urlPrefix)
}

func newRegistry() (*preset.Registry, error) {
	presetsFile := os.Getenv("PRESETS_FILE")
	if presetsFile == "" {
		return preset.NewRegistry(preset.Defaults()...), nil
	}
	registry := preset.NewRegistry()
	if err := registry.LoadFile(presetsFile); err != nil {
		return nil, fmt.Errorf("failed to load presets from %s: %w", presetsFile, err)
	}
	return registry, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// sanitizeCommand returns a safe representation of a command string for
// display. It uses an allowlist approach, replacing any character that is
// not alphanumeric, a hyphen, or an underscore with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage() {
	fmt.Println("Media Variants Maintenance")
	fmt.Println("")
	fmt.Println("Usage: variantctl <command> [flags]")
	fmt.Println("")
	fmt.Println("Commands:")
	fmt.Println("  regenerate     - Rebuild variants for stored images")
	fmt.Println("  clean-orphans  - Delete untracked variant files")
	fmt.Println("")
	fmt.Println("Environment:")
	fmt.Printf("  DATABASE_DIR - Path to database directory (default: %s)\n", defaultDatabaseDir)
	fmt.Printf("  MEDIA_DIR    - Path to media root (default: %s)\n", defaultMediaDir)
}
