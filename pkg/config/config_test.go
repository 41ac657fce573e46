package config

import (
	"os"
	"path/filepath"
	"testing"
)

// TestDefaultConfig verifies the documented defaults
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Streaming.ChunkDim != 64 {
		t.Errorf("Expected chunkDim=64, got %d", cfg.Streaming.ChunkDim)
	}
	if cfg.Streaming.CacheSlots != 32 {
		t.Errorf("Expected cacheSlots=32, got %d", cfg.Streaming.CacheSlots)
	}
	if cfg.Streaming.UploadBudget != 4 {
		t.Errorf("Expected uploadBudget=4, got %d", cfg.Streaming.UploadBudget)
	}
	if cfg.Rendering.ThresholdMin != 30 || cfg.Rendering.ThresholdMax != 200 {
		t.Errorf("Expected default window [30,200], got [%d,%d]",
			cfg.Rendering.ThresholdMin, cfg.Rendering.ThresholdMax)
	}
	if cfg.Rendering.Quality != 2 {
		t.Errorf("Expected quality=2, got %d", cfg.Rendering.Quality)
	}
	if !cfg.Rendering.ShowGrayscale || !cfg.Rendering.ShowLabels {
		t.Errorf("Expected both render layers enabled by default")
	}
	if cfg.Rendering.Opacity != 1.0 {
		t.Errorf("Expected default opacity 1, got %g", cfg.Rendering.Opacity)
	}
	if cfg.Camera.Radius != 2.0 {
		t.Errorf("Expected default camera radius 2, got %g", cfg.Camera.Radius)
	}
	if cfg.Rendering.Background != 0xFF000000 {
		t.Errorf("Expected opaque black background, got %08x", cfg.Rendering.Background)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default configuration should validate: %v", err)
	}
}

// TestLoadConfigMissingFile verifies the fallback to defaults when no
// config file exists
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig should not fail on a missing file: %v", err)
	}
	if cfg.Streaming.CacheSlots != 32 {
		t.Errorf("Expected defaults for a missing file, got cacheSlots=%d", cfg.Streaming.CacheSlots)
	}
}

// TestSaveLoadRoundTrip verifies that a saved configuration loads back
// unchanged
func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "ctvolume.yaml")

	cfg := DefaultConfig()
	cfg.Streaming.CacheSlots = 16
	cfg.Rendering.Quality = 1
	cfg.Rendering.ThresholdMin = 40
	cfg.Output.FramesDir = "out"
	cfg.Materials = []MaterialConfig{
		{ID: 1, ARGB: 0xC0FF0000, Visible: true, Min: 10, Max: 240},
		{ID: 2, ARGB: 0x8000FF00, Visible: false},
	}

	if err := SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if loaded.Streaming.CacheSlots != 16 {
		t.Errorf("Expected cacheSlots=16, got %d", loaded.Streaming.CacheSlots)
	}
	if loaded.Rendering.Quality != 1 {
		t.Errorf("Expected quality=1, got %d", loaded.Rendering.Quality)
	}
	if loaded.Rendering.ThresholdMin != 40 {
		t.Errorf("Expected thresholdMin=40, got %d", loaded.Rendering.ThresholdMin)
	}
	if loaded.Output.FramesDir != "out" {
		t.Errorf("Expected framesDir=out, got %s", loaded.Output.FramesDir)
	}
	if len(loaded.Materials) != 2 {
		t.Fatalf("Expected 2 materials, got %d", len(loaded.Materials))
	}
	if m := loaded.Materials[0]; m.ID != 1 || m.ARGB != 0xC0FF0000 || !m.Visible || m.Min != 10 || m.Max != 240 {
		t.Errorf("Material 0 did not round trip: %+v", m)
	}
}

// TestCreateDefaultConfigFile verifies writing the default config to disk
func TestCreateDefaultConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ctvolume.yaml")
	if err := CreateDefaultConfigFile(path); err != nil {
		t.Fatalf("CreateDefaultConfigFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Config file not created: %v", err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Streaming.ChunkDim != 64 {
		t.Errorf("Expected default chunkDim in written file, got %d", cfg.Streaming.ChunkDim)
	}
}

// TestValidate verifies the cross-field checks
func TestValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero chunkDim", func(c *Config) { c.Streaming.ChunkDim = 0 }},
		{"negative cacheSlots", func(c *Config) { c.Streaming.CacheSlots = -1 }},
		{"zero uploadBudget", func(c *Config) { c.Streaming.UploadBudget = 0 }},
		{"quality too high", func(c *Config) { c.Rendering.Quality = 3 }},
		{"negative quality", func(c *Config) { c.Rendering.Quality = -1 }},
		{"zero viewport", func(c *Config) { c.Rendering.Width = 0 }},
		{"zero camera radius", func(c *Config) { c.Camera.Radius = 0 }},
		{"material id too large", func(c *Config) {
			c.Materials = []MaterialConfig{{ID: 300}}
		}},
	}
	for _, tc := range cases {
		cfg := DefaultConfig()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tc.name)
		}
	}
}

// TestLoadConfigRejectsInvalid verifies that an invalid file fails to load
func TestLoadConfigRejectsInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("streaming:\n  chunkDim: -4\n"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := LoadConfig(bad); err == nil {
		t.Errorf("Expected error for invalid configuration values")
	}

	garbage := filepath.Join(dir, "garbage.yaml")
	if err := os.WriteFile(garbage, []byte("{{not yaml"), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if _, err := LoadConfig(garbage); err == nil {
		t.Errorf("Expected error for malformed YAML")
	}
}
