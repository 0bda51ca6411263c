package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  name: facematch
  user: fm
  password: secret
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d; want 8080", cfg.Server.Port)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Database.Port = %d; want 5432", cfg.Database.Port)
	}
	if cfg.Vision.DetectionThreshold != 0.5 {
		t.Errorf("Vision.DetectionThreshold = %v; want 0.5", cfg.Vision.DetectionThreshold)
	}
	if cfg.Vision.ExtractTimeout != 30*time.Second {
		t.Errorf("Vision.ExtractTimeout = %v; want 30s", cfg.Vision.ExtractTimeout)
	}
	if cfg.Matching.SimilarityThreshold != 0.6 {
		t.Errorf("Matching.SimilarityThreshold = %v; want 0.6", cfg.Matching.SimilarityThreshold)
	}
	if cfg.Matching.IndexDriver != "pgvector" {
		t.Errorf("Matching.IndexDriver = %q; want pgvector", cfg.Matching.IndexDriver)
	}
	if cfg.Sweeper.StaleThreshold != 5*time.Minute {
		t.Errorf("Sweeper.StaleThreshold = %v; want 5m", cfg.Sweeper.StaleThreshold)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q; want json", cfg.Logging.Format)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 8080
matching:
  similarity_threshold: 0.6
  index_driver: pgvector
`)

	t.Setenv("FM_SERVER_PORT", "9090")
	t.Setenv("FM_DB_HOST", "db.internal")
	t.Setenv("FM_SIMILARITY_THRESHOLD", "0.75")
	t.Setenv("FM_INDEX_DRIVER", "memory")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d; want 9090", cfg.Server.Port)
	}
	if cfg.Database.Host != "db.internal" {
		t.Errorf("Database.Host = %q; want db.internal", cfg.Database.Host)
	}
	if cfg.Matching.SimilarityThreshold != 0.75 {
		t.Errorf("Matching.SimilarityThreshold = %v; want 0.75", cfg.Matching.SimilarityThreshold)
	}
	if cfg.Matching.IndexDriver != "memory" {
		t.Errorf("Matching.IndexDriver = %q; want memory", cfg.Matching.IndexDriver)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("Load() with missing file should error")
	}
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, Name: "fm", User: "u", Password: "p"}
	want := "postgres://u:p@db:5433/fm?sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN() = %q; want %q", got, want)
	}
}
