package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppName != "bankflow" {
		t.Errorf("AppName = %q, want bankflow", cfg.AppName)
	}
	if cfg.Pipeline.ConfidenceThreshold != 0.75 {
		t.Errorf("ConfidenceThreshold = %v, want 0.75", cfg.Pipeline.ConfidenceThreshold)
	}
	if cfg.Pipeline.SampleSize != 100 {
		t.Errorf("SampleSize = %d, want 100", cfg.Pipeline.SampleSize)
	}
	if cfg.Pipeline.SampleSeed != 42 {
		t.Errorf("SampleSeed = %d, want 42", cfg.Pipeline.SampleSeed)
	}
	if cfg.SourceTimeout != 30*time.Second {
		t.Errorf("SourceTimeout = %v, want 30s", cfg.SourceTimeout)
	}

	wantCols := []string{"transaction_id", "customer_id", "amount", "transaction_date", "status"}
	if len(cfg.Pipeline.RequiredColumns) != len(wantCols) {
		t.Fatalf("RequiredColumns = %v, want %v", cfg.Pipeline.RequiredColumns, wantCols)
	}
	for i, c := range wantCols {
		if cfg.Pipeline.RequiredColumns[i] != c {
			t.Errorf("RequiredColumns[%d] = %q, want %q", i, cfg.Pipeline.RequiredColumns[i], c)
		}
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("log_level: debug\npipeline:\n  confidence_threshold: 0.9\n  sample_size: 25\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load(%s) failed: %v", path, err)
	}

	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if cfg.Pipeline.ConfidenceThreshold != 0.9 {
		t.Errorf("ConfidenceThreshold = %v, want 0.9", cfg.Pipeline.ConfidenceThreshold)
	}
	if cfg.Pipeline.SampleSize != 25 {
		t.Errorf("SampleSize = %d, want 25", cfg.Pipeline.SampleSize)
	}
	// Untouched keys keep defaults.
	if cfg.Model.Name != "gemini-2.5-flash" {
		t.Errorf("Model.Name = %q, want default", cfg.Model.Name)
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("pipeline:\n  confidence_threshold: 1.5\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Load() with out-of-range threshold should fail")
	}
}
