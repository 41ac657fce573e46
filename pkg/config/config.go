// Package config provides configuration loading and management for
// ctvolume. It handles loading configuration from YAML files and provides
// default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// MaterialConfig describes one entry of the material table.
type MaterialConfig struct {
	// ID is the label value the material applies to; 0 is the exterior
	// and is never rendered
	ID int `yaml:"id"`

	// ARGB is the packed 32-bit color, alpha in the high byte
	ARGB uint32 `yaml:"argb"`

	// Visible toggles the material without discarding it
	Visible bool `yaml:"visible"`

	// Min and Max bound the grayscale window the material applies to
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

// Config represents the application configuration loaded from YAML
type Config struct {
	// Streaming parameters for the GPU chunk cache
	Streaming struct {
		// ChunkDim is the cubic chunk side length in voxels
		ChunkDim int `yaml:"chunkDim"`

		// CacheSlots is the number of chunk slots in the cache
		CacheSlots int `yaml:"cacheSlots"`

		// UploadBudget caps chunk uploads per frame
		UploadBudget int `yaml:"uploadBudget"`
	} `yaml:"streaming"`

	// Rendering parameters
	Rendering struct {
		// Quality is the step-count tier: 0 coarse, 1 medium, 2 fine
		Quality int `yaml:"quality"`

		// ThresholdMin and ThresholdMax bound the grayscale window in
		// the raw byte domain
		ThresholdMin int `yaml:"thresholdMin"`
		ThresholdMax int `yaml:"thresholdMax"`

		// ShowGrayscale enables translucent rendering of unlabelled
		// voxels inside the threshold window
		ShowGrayscale bool `yaml:"showGrayscale"`

		// ShowLabels enables material classification of labelled voxels
		ShowLabels bool `yaml:"showLabels"`

		// Opacity scales every sample's opacity, labelled and grayscale
		// alike; 1 leaves samples unchanged
		Opacity float64 `yaml:"opacity"`

		// GrayOpacity is the per-sample alpha of in-window grayscale
		GrayOpacity float64 `yaml:"grayOpacity"`

		// Brightness and Contrast adjust grayscale display
		Brightness float64 `yaml:"brightness"`
		Contrast   float64 `yaml:"contrast"`

		// DensityScale scales opacity correction for step length
		DensityScale float64 `yaml:"densityScale"`

		// Width and Height are the viewport dimensions in pixels
		Width  int `yaml:"width"`
		Height int `yaml:"height"`

		// Background is the packed ARGB clear color frames are composited
		// over; zero alpha keeps frames transparent
		Background uint32 `yaml:"background"`
	} `yaml:"rendering"`

	// Camera is the initial orbit pose
	Camera struct {
		// Radius is the orbit distance from the focus point
		Radius float64 `yaml:"radius"`

		// Focus is the world-space point the camera orbits
		Focus [3]float64 `yaml:"focus"`
	} `yaml:"camera"`

	// Materials is the material table; unlisted IDs stay invisible
	Materials []MaterialConfig `yaml:"materials"`

	// Output parameters
	Output struct {
		// FramesDir is the directory rendered frames are written to
		FramesDir string `yaml:"framesDir"`

		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`
	} `yaml:"output"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	// Set default streaming parameters
	cfg.Streaming.ChunkDim = 64
	cfg.Streaming.CacheSlots = 32
	cfg.Streaming.UploadBudget = 4

	// Set default rendering parameters
	cfg.Rendering.Quality = 2
	cfg.Rendering.ThresholdMin = 30
	cfg.Rendering.ThresholdMax = 200
	cfg.Rendering.ShowGrayscale = true
	cfg.Rendering.ShowLabels = true
	cfg.Rendering.Opacity = 1.0
	cfg.Rendering.GrayOpacity = 0.05
	cfg.Rendering.Brightness = 0.0
	cfg.Rendering.Contrast = 1.0
	cfg.Rendering.DensityScale = 64.0
	cfg.Rendering.Width = 512
	cfg.Rendering.Height = 512
	cfg.Rendering.Background = 0xFF000000

	// Set default camera pose
	cfg.Camera.Radius = 2.0

	// Set default output parameters
	cfg.Output.FramesDir = "frames"
	cfg.Output.Verbose = false

	return cfg
}

// Validate checks cross-field constraints that YAML decoding cannot.
func (cfg *Config) Validate() error {
	if cfg.Streaming.ChunkDim <= 0 {
		return fmt.Errorf("streaming.chunkDim must be positive, got %d", cfg.Streaming.ChunkDim)
	}
	if cfg.Streaming.CacheSlots <= 0 {
		return fmt.Errorf("streaming.cacheSlots must be positive, got %d", cfg.Streaming.CacheSlots)
	}
	if cfg.Streaming.UploadBudget <= 0 {
		return fmt.Errorf("streaming.uploadBudget must be positive, got %d", cfg.Streaming.UploadBudget)
	}
	if cfg.Rendering.Quality < 0 || cfg.Rendering.Quality > 2 {
		return fmt.Errorf("rendering.quality must be 0, 1 or 2, got %d", cfg.Rendering.Quality)
	}
	if cfg.Rendering.Width <= 0 || cfg.Rendering.Height <= 0 {
		return fmt.Errorf("rendering viewport must be positive, got %dx%d",
			cfg.Rendering.Width, cfg.Rendering.Height)
	}
	if cfg.Camera.Radius <= 0 {
		return fmt.Errorf("camera.radius must be positive, got %g", cfg.Camera.Radius)
	}
	for _, m := range cfg.Materials {
		if m.ID < 0 || m.ID > 255 {
			return fmt.Errorf("material id %d outside [0,255]", m.ID)
		}
	}
	return nil
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to a YAML file
func SaveConfig(cfg *Config, configPath string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal config to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write to file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile creates a default configuration file at the specified path
func CreateDefaultConfigFile(configPath string) error {
	cfg := DefaultConfig()
	return SaveConfig(cfg, configPath)
}
