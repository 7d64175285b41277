package startup

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"media-variants/internal/logging"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// Storage backend selection values for STORAGE_BACKEND.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Dispatch mode selection values for DISPATCH_MODE.
const (
	DispatchDirect = "direct"
	DispatchQueue  = "queue"
)

// Config holds all application configuration
type Config struct {
	MediaDir    string
	DatabaseDir string
	PublicURL   string
	Port        string
	MetricsPort string
	PresetsFile string

	StorageBackend string
	S3Endpoint     string
	S3Bucket       string
	S3AccessKey    string
	S3SecretKey    string
	S3UseSSL       bool

	DispatchMode  string
	KafkaBrokers  []string
	TaskTopic     string
	ProgressTopic string
	ConsumerGroup string

	LogHealthChecks bool
	MetricsEnabled  bool

	// Derived paths
	DatabasePath string
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	config := &Config{
		MediaDir:        getEnv("MEDIA_DIR", "/media"),
		DatabaseDir:     getEnv("DATABASE_DIR", "/database"),
		PublicURL:       strings.TrimRight(getEnv("PUBLIC_URL", "/media"), "/"),
		Port:            getEnv("PORT", "8080"),
		MetricsPort:     getEnv("METRICS_PORT", "9090"),
		PresetsFile:     getEnv("PRESETS_FILE", ""),
		StorageBackend:  getEnv("STORAGE_BACKEND", StorageLocal),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3Bucket:        getEnv("S3_BUCKET", "media"),
		S3AccessKey:     getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:     getEnv("S3_SECRET_KEY", ""),
		S3UseSSL:        getEnvBool("S3_USE_SSL", true),
		DispatchMode:    getEnv("DISPATCH_MODE", DispatchDirect),
		KafkaBrokers:    splitList(getEnv("KAFKA_BROKERS", "")),
		TaskTopic:       getEnv("KAFKA_TASK_TOPIC", "media-variant-tasks"),
		ProgressTopic:   getEnv("KAFKA_PROGRESS_TOPIC", "media-variant-progress"),
		ConsumerGroup:   getEnv("KAFKA_CONSUMER_GROUP", "media-variants"),
		LogHealthChecks: getEnvBool("LOG_HEALTH_CHECKS", true),
		MetricsEnabled:  getEnvBool("METRICS_ENABLED", true),
	}

	logging.Info("  MEDIA_DIR:         %s", config.MediaDir)
	logging.Info("  DATABASE_DIR:      %s", config.DatabaseDir)
	logging.Info("  PUBLIC_URL:        %s", config.PublicURL)
	logging.Info("  PORT:              %s", config.Port)
	logging.Info("  METRICS_PORT:      %s", config.MetricsPort)
	logging.Info("  METRICS_ENABLED:   %v", config.MetricsEnabled)
	logging.Info("  PRESETS_FILE:      %s", orDefault(config.PresetsFile, "(built-in presets)"))
	logging.Info("  STORAGE_BACKEND:   %s", config.StorageBackend)
	logging.Info("  DISPATCH_MODE:     %s", config.DispatchMode)
	logging.Info("  KAFKA_BROKERS:     %s", orDefault(strings.Join(config.KafkaBrokers, ","), "(none)"))
	logging.Info("  LOG_LEVEL:         %s", logging.GetLevel())

	if err := config.validate(); err != nil {
		return nil, err
	}

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	var err error
	config.DatabaseDir, err = filepath.Abs(config.DatabaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	logging.Info("  Database directory (absolute): %s", config.DatabaseDir)

	if err := ensureDirectory(config.DatabaseDir, "database"); err != nil {
		return nil, fmt.Errorf("database directory error: %w", err)
	}

	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(config.DatabaseDir); err != nil {
		return nil, fmt.Errorf("database directory is not writable (required for database): %w", err)
	}
	logging.Info("  [OK] Database directory is writable")
	config.DatabasePath = filepath.Join(config.DatabaseDir, "variants.db")

	if config.StorageBackend == StorageLocal {
		config.MediaDir, err = filepath.Abs(config.MediaDir)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve media directory path: %w", err)
		}
		logging.Info("  Media directory (absolute): %s", config.MediaDir)

		if err := ensureDirectory(config.MediaDir, "media"); err != nil {
			return nil, fmt.Errorf("media directory error: %w", err)
		}
	}

	return config, nil
}

func (c *Config) validate() error {
	switch c.StorageBackend {
	case StorageLocal:
	case StorageS3:
		if c.S3Endpoint == "" {
			return fmt.Errorf("S3_ENDPOINT is required with STORAGE_BACKEND=s3")
		}
		if c.S3AccessKey == "" || c.S3SecretKey == "" {
			return fmt.Errorf("S3_ACCESS_KEY and S3_SECRET_KEY are required with STORAGE_BACKEND=s3")
		}
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND %q (want %q or %q)", c.StorageBackend, StorageLocal, StorageS3)
	}

	switch c.DispatchMode {
	case DispatchDirect:
	case DispatchQueue:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required with DISPATCH_MODE=queue")
		}
	default:
		return fmt.Errorf("invalid DISPATCH_MODE %q (want %q or %q)", c.DispatchMode, DispatchDirect, DispatchQueue)
	}

	return nil
}

// ProgressEnabled reports whether broker-backed progress publishing is
// configured.
func (c *Config) ProgressEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified (e.g., static file server)
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs all registered HTTP routes dynamically
func LogHTTPRoutes(router *mux.Router, logHealthChecks bool) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("HTTP SERVER SETUP")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))
		logging.Debug("")

		groups := make(map[string][]RouteInfo)
		for _, route := range routes {
			prefix := getRouteGroup(route.Path)
			groups[prefix] = append(groups[prefix], route)
		}

		groupKeys := make([]string, 0, len(groups))
		for k := range groups {
			groupKeys = append(groupKeys, k)
		}
		sort.Strings(groupKeys)

		for _, group := range groupKeys {
			groupRoutes := groups[group]
			if group != "" {
				logging.Debug("  [%s]", group)
			} else {
				logging.Debug("  [root]")
			}

			for _, route := range groupRoutes {
				methodPadded := fmt.Sprintf("%-6s", route.Method)
				logging.Debug("    %s %s", methodPadded, route.Path)
			}
			logging.Debug("")
		}
	}

	logging.Info("  HTTP logging enabled")
	if logHealthChecks {
		logging.Info("    Health check logging: ON")
	} else {
		logging.Info("    Health check logging: OFF (set LOG_HEALTH_CHECKS=true to enable)")
	}
}

// getRouteGroup extracts a group name from a route path
func getRouteGroup(path string) string {
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	if len(parts) == 0 {
		return ""
	}

	first := parts[0]

	if first == "api" && len(parts) > 1 {
		subParts := strings.SplitN(parts[1], "/", 2)
		return "api/" + subParts[0]
	}

	return first
}

// ServerConfig holds configuration for the server startup log
type ServerConfig struct {
	Port            string
	MetricsPort     string
	MetricsEnabled  bool
	StartupDuration time.Duration
}

// LogDatabaseInit logs database initialization
func LogDatabaseInit(duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DATABASE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Database initialized in %v", duration)
}

// LogCodecInit logs which image codec is active.
func LogCodecInit(name string, formats []string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CODEC INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Processor: %s", name)
	logging.Info("  Formats:   %s", strings.Join(formats, ", "))
}

// LogPresetsLoaded logs the active preset set.
func LogPresetsLoaded(names []string, source string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("PRESETS")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Source:  %s", source)
	logging.Info("  Presets: %s", strings.Join(names, ", "))
}

// LogServerStarted logs successful server start with all endpoint information
func LogServerStarted(config ServerConfig) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SERVER STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time:    %v", config.StartupDuration)
	logging.Info("")
	logging.Info("  Endpoints:")
	logging.Info("    Application:   http://0.0.0.0:%s", config.Port)
	if config.MetricsEnabled {
		logging.Info("    Metrics:       http://0.0.0.0:%s/metrics", config.MetricsPort)
	} else {
		logging.Info("    Metrics:       DISABLED")
	}
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop the server")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
 __     __         _             _
 \ \   / /_ _ _ __(_) __ _ _ __ | |_ ___
  \ \ / / _' | '__| |/ _' | '_ \| __/ __|
   \ V / (_| | |  | | (_| | | | | |_\__ \
    \_/ \__,_|_|  |_|\__,_|_| |_|\__|___/

------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Don't return error since write access was confirmed
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
