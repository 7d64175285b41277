package startup

import (
	"path/filepath"
	"testing"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("MEDIA_DIR", filepath.Join(dir, "media"))
	t.Setenv("DATABASE_DIR", filepath.Join(dir, "database"))
}

func TestLoadConfigDefaults(t *testing.T) {
	setBaseEnv(t)

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if config.Port != "8080" {
		t.Errorf("Port = %s, want 8080", config.Port)
	}
	if config.StorageBackend != StorageLocal {
		t.Errorf("StorageBackend = %s, want local", config.StorageBackend)
	}
	if config.DispatchMode != DispatchDirect {
		t.Errorf("DispatchMode = %s, want direct", config.DispatchMode)
	}
	if config.PublicURL != "/media" {
		t.Errorf("PublicURL = %s, want /media", config.PublicURL)
	}
	if filepath.Base(config.DatabasePath) != "variants.db" {
		t.Errorf("DatabasePath = %s", config.DatabasePath)
	}
	if config.ProgressEnabled() {
		t.Error("progress enabled without brokers")
	}
}

func TestLoadConfigTrimsPublicURL(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PUBLIC_URL", "https://cdn.example.com/media/")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if config.PublicURL != "https://cdn.example.com/media" {
		t.Errorf("PublicURL = %s", config.PublicURL)
	}
}

func TestLoadConfigKafkaBrokers(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("DISPATCH_MODE", "queue")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if len(config.KafkaBrokers) != 2 || config.KafkaBrokers[1] != "broker2:9092" {
		t.Errorf("KafkaBrokers = %v", config.KafkaBrokers)
	}
	if !config.ProgressEnabled() {
		t.Error("progress not enabled with brokers set")
	}
}

func TestLoadConfigRejectsQueueWithoutBrokers(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("DISPATCH_MODE", "queue")
	t.Setenv("KAFKA_BROKERS", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for queue mode without brokers")
	}
}

func TestLoadConfigRejectsS3WithoutCredentials(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORAGE_BACKEND", "s3")
	t.Setenv("S3_ENDPOINT", "minio:9000")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for s3 backend without credentials")
	}
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("STORAGE_BACKEND", "ftp")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unknown storage backend")
	}
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("TEST_BOOL", "")
	if !getEnvBool("TEST_BOOL", true) {
		t.Error("empty value should return default")
	}

	t.Setenv("TEST_BOOL", "false")
	if getEnvBool("TEST_BOOL", true) {
		t.Error("explicit false ignored")
	}

	t.Setenv("TEST_BOOL", "junk")
	if !getEnvBool("TEST_BOOL", true) {
		t.Error("invalid value should return default")
	}
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"a,b,c", 3},
		{"a, b , ,c", 3},
	}
	for _, tt := range tests {
		if got := splitList(tt.in); len(got) != tt.want {
			t.Errorf("splitList(%q) = %v, want %d entries", tt.in, got, tt.want)
		}
	}
}
