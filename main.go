package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-variants/internal/codec"
	"media-variants/internal/database"
	"media-variants/internal/handlers"
	"media-variants/internal/logging"
	"media-variants/internal/metrics"
	"media-variants/internal/middleware"
	"media-variants/internal/placeholder"
	"media-variants/internal/preset"
	"media-variants/internal/progress"
	"media-variants/internal/queue"
	"media-variants/internal/regen"
	"media-variants/internal/startup"
	"media-variants/internal/storage"
	"media-variants/internal/uploader"
	"media-variants/internal/variant"
	"media-variants/internal/workers"

	"github.com/gorilla/mux"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	ctx := context.Background()

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(ctx, config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Initialize storage backend
	backend, err := newBackend(ctx, config)
	if err != nil {
		startup.LogFatal("Failed to initialize storage: %v", err)
	}

	// Initialize codec
	processor := newProcessor()

	// Load presets
	registry, err := newRegistry(config)
	if err != nil {
		startup.LogFatal("Failed to load presets: %v", err)
	}

	// Wire the variant pipeline
	resolver := variant.NewPathResolver(backend)
	generator := variant.NewGenerator(processor, resolver, backend, registry)
	cleaner := variant.NewCleaner(backend, resolver, registry)

	// Progress: local SSE hub, plus Kafka when queue mode is on
	hub := progress.NewHub()
	publisher := progress.Publisher(hub)
	var kafkaProgress *progress.Kafka
	if config.ProgressEnabled() {
		kafkaProgress = progress.NewKafka(config.KafkaBrokers, config.ProgressTopic)
		publisher = progress.Fanout{hub, kafkaProgress}
	}

	orchestrator := regen.NewOrchestrator(db, registry, generator, cleaner, resolver, publisher)

	// Task dispatch: in-process or through Kafka
	runner := queue.RunnerFunc(func(ctx context.Context, mediaID string) error {
		_, err := orchestrator.Regenerate(ctx, mediaID, regen.Options{})
		return err
	})

	var dispatcher uploader.Dispatcher
	var consumer *queue.Consumer
	consumerCtx, stopConsumer := context.WithCancel(ctx)
	defer stopConsumer()
	if config.DispatchMode == startup.DispatchQueue {
		kafkaDispatcher := queue.NewKafkaDispatcher(config.KafkaBrokers, config.TaskTopic)
		defer kafkaDispatcher.Close()
		dispatcher = kafkaDispatcher

		consumer = queue.NewConsumer(config.KafkaBrokers, config.TaskTopic,
			config.ConsumerGroup, runner, workers.ForMixed(8))
		go func() {
			if err := consumer.Run(consumerCtx); err != nil {
				logging.Error("Task consumer stopped: %v", err)
			}
		}()
	} else {
		dispatcher = queue.NewDirect(runner)
	}

	up := uploader.New(db, backend, placeholder.NewEncoder(), dispatcher)

	// Initialize handlers
	h := handlers.New(db, registry, resolver, up, orchestrator, dispatcher, hub)

	// Setup router
	router := mux.NewRouter()
	h.RegisterRoutes(router)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Apply metrics middleware
	handler := http.Handler(router)
	if config.MetricsEnabled {
		handler = middleware.Metrics(middleware.DefaultMetricsConfig())(handler)
	}

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler = middleware.Logger(loggingConfig)(handler)

	// Create server
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Metrics on a separate port so it never rides the public listener
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", metrics.Handler())
		metricsSrv = &http.Server{
			Addr:         ":" + config.MetricsPort,
			Handler:      metricsMux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, metricsSrv, stopConsumer, kafkaProgress)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func newBackend(ctx context.Context, config *startup.Config) (storage.Backend, error) {
	if config.StorageBackend == startup.StorageS3 {
		return storage.NewS3(ctx, storage.S3Config{
			Endpoint:  config.S3Endpoint,
			AccessKey: config.S3AccessKey,
			SecretKey: config.S3SecretKey,
			Bucket:    config.S3Bucket,
			UseSSL:    config.S3UseSSL,
			URLPrefix: config.PublicURL,
		})
	}
	return storage.NewLocal(config.MediaDir, config.PublicURL)
}

func newProcessor() codec.Processor {
	if err := codec.InitVips(); err != nil {
		logging.Warn("libvips unavailable, using pure-Go codec: %v", err)
		startup.LogCodecInit("fallback", []string{"jpg", "png", "gif"})
		return codec.NewFallback()
	}
	startup.LogCodecInit("vips", []string{"jpg", "png", "gif", "webp", "avif"})
	return codec.NewVips()
}

func newRegistry(config *startup.Config) (*preset.Registry, error) {
	if config.PresetsFile == "" {
		registry := preset.NewRegistry(preset.Defaults()...)
		startup.LogPresetsLoaded(registry.Names(), "built-in")
		return registry, nil
	}
	registry := preset.NewRegistry()
	if err := registry.LoadFile(config.PresetsFile); err != nil {
		return nil, err
	}
	startup.LogPresetsLoaded(registry.Names(), config.PresetsFile)
	return registry, nil
}

func handleShutdown(srv, metricsSrv *http.Server, stopConsumer context.CancelFunc, kafkaProgress *progress.Kafka) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping task consumer")
	stopConsumer()
	startup.LogShutdownStepComplete("Task consumer stopped")

	if kafkaProgress != nil {
		startup.LogShutdownStep("Closing progress publisher")
		if err := kafkaProgress.Close(); err != nil {
			logging.Warn("Progress publisher close error: %v", err)
		}
		startup.LogShutdownStepComplete("Progress publisher closed")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	if codec.VipsAvailable() {
		codec.ShutdownVips()
	}

	startup.LogShutdownComplete()
}
