package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"log"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"ctvolume/pkg/config"
	"ctvolume/pkg/render"
	"ctvolume/pkg/streaming"
	"ctvolume/pkg/visualization"
	"ctvolume/pkg/volume"
)

func main() {
	// Parse command line arguments
	configPath := flag.String("config", "ctvolume.yaml", "Path to YAML configuration file")
	createConfig := flag.Bool("create-config", false, "Write a default configuration file and exit")
	inputFile := flag.String("input", "", "Raw 8-bit volume file (slice-major); omit to render a built-in phantom")
	labelFile := flag.String("labels", "", "Optional raw 8-bit label file with the same dimensions")
	width := flag.Int("width", 0, "Volume width in voxels (required with -input)")
	height := flag.Int("height", 0, "Volume height in voxels (required with -input)")
	depth := flag.Int("depth", 0, "Volume depth in voxels (required with -input)")
	phantomSize := flag.Int("phantom-size", 128, "Edge length of the built-in phantom volume")
	frames := flag.Int("frames", 60, "Number of orbit frames to render")
	autoWindow := flag.Bool("auto-window", false, "Derive the grayscale window from the volume histogram")
	extractSlices := flag.Bool("extract-slices", false, "Also save 2D slices along all axes")
	slicesDir := flag.String("slices-dir", "slices", "Directory to save extracted slices")
	flag.Parse()

	if *createConfig {
		if err := config.CreateDefaultConfigFile(*configPath); err != nil {
			log.Fatalf("Failed to create config file: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Load or synthesize the volume
	vol, err := loadVolume(cfg, *inputFile, *labelFile, *width, *height, *depth, *phantomSize)
	if err != nil {
		log.Fatalf("Failed to load volume: %v", err)
	}
	fmt.Printf("Volume: %dx%dx%d voxels, %dx%dx%d chunks of %d^3\n",
		vol.Width(), vol.Height(), vol.Depth(),
		vol.ChunkCountX(), vol.ChunkCountY(), vol.ChunkCountZ(), vol.ChunkDim())

	// Set up the streaming cache
	streamCfg := streaming.Config{
		CacheSlots:   cfg.Streaming.CacheSlots,
		UploadBudget: cfg.Streaming.UploadBudget,
		Verbose:      cfg.Output.Verbose,
	}
	mgr, err := streaming.NewManager(vol, streamCfg)
	if err != nil {
		log.Fatalf("Failed to create streaming manager: %v", err)
	}

	// Set up the renderer
	renderer, err := render.NewRenderer(mgr, cfg.Rendering.Width, cfg.Rendering.Height)
	if err != nil {
		log.Fatalf("Failed to create renderer: %v", err)
	}
	params := paramsFromConfig(cfg)
	if *autoWindow {
		lo, hi, err := render.AutoWindow(vol, 0.05, 0.95)
		if err != nil {
			log.Fatalf("Auto-window failed: %v", err)
		}
		fmt.Printf("Auto grayscale window: [%d, %d]\n", lo, hi)
		params.ThresholdMin, params.ThresholdMax = lo, hi
	}
	renderer.SetParams(params)
	applyMaterials(renderer, cfg)

	camera := render.NewCamera(float32(cfg.Rendering.Width) / float32(cfg.Rendering.Height))
	camera.SetRadius(float32(cfg.Camera.Radius))
	camera.SetFocus(mgl32.Vec3{
		float32(cfg.Camera.Focus[0]),
		float32(cfg.Camera.Focus[1]),
		float32(cfg.Camera.Focus[2]),
	})

	sink, err := visualization.NewFrameSink(cfg.Output.FramesDir, "frame")
	if err != nil {
		log.Fatalf("Failed to create frame sink: %v", err)
	}
	if bg := cfg.Rendering.Background; bg>>24 != 0 {
		sink.SetBackground(color.RGBA{
			R: uint8(bg >> 16), G: uint8(bg >> 8), B: uint8(bg), A: uint8(bg >> 24),
		})
	}

	// Render an orbit around the volume, one frame per tick
	total := *frames
	loop := &render.Loop{
		Renderer: renderer,
		Camera:   camera,
		Sink:     sink,
		Interval: time.Millisecond,
		OnTick: func(frame int) bool {
			if frame >= total {
				return false
			}
			camera.Rotate(2*math.Pi/float32(total), 0)
			renderer.SetNeedsRender()
			return true
		},
	}

	fmt.Printf("Rendering %d orbit frames at %dx%d...\n", total, cfg.Rendering.Width, cfg.Rendering.Height)
	startTime := time.Now()
	if err := loop.Run(context.Background()); err != nil {
		log.Fatalf("Render loop failed: %v", err)
	}
	elapsed := time.Since(startTime)

	stats := mgr.Stats()
	fmt.Printf("\nRendered %d frames in %.2f seconds\n", sink.FrameCount(), elapsed.Seconds())
	fmt.Printf("Frames saved to: %s\n\n", cfg.Output.FramesDir)
	fmt.Printf("Streaming cache statistics:\n")
	fmt.Printf("===========================\n")
	fmt.Printf("Chunk uploads: %d\n", stats.Uploads)
	fmt.Printf("Chunk evictions: %d\n", stats.Evictions)
	fmt.Printf("Upload errors: %d\n", stats.UploadErrors)
	fmt.Printf("Update calls: %d\n", stats.UpdateCalls)
	fmt.Printf("Resident chunks: %d of %d slots\n", mgr.ResidentCount(), cfg.Streaming.CacheSlots)

	// Extract and save slices if requested
	if *extractSlices {
		fmt.Println("\nExtracting slices along all axes...")
		for _, axis := range []string{"x", "y", "z"} {
			axisDir := filepath.Join(*slicesDir, axis)
			fmt.Printf("Saving %s-axis slices to: %s\n", axis, axisDir)
			if err := visualization.SaveSliceSequence(vol, axis, axisDir); err != nil {
				log.Printf("Warning: Failed to save %s-axis slices: %v", axis, err)
			}
		}
		fmt.Println("Slice extraction completed!")
	}
}

// loadVolume reads the raw input file when one is given and falls back to
// the synthetic phantom otherwise.
func loadVolume(cfg *config.Config, inputFile, labelFile string, width, height, depth, phantomSize int) (volume.Accessor, error) {
	if inputFile == "" {
		fmt.Printf("No input file given, using %d^3 phantom volume\n", phantomSize)
		return volume.Phantom(phantomSize, cfg.Streaming.ChunkDim)
	}

	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("-width, -height and -depth are required with -input")
	}

	gray, err := os.ReadFile(inputFile)
	if err != nil {
		return nil, fmt.Errorf("reading volume file: %w", err)
	}
	if len(gray) != width*height*depth {
		return nil, fmt.Errorf("volume file holds %d bytes, expected %d for %dx%dx%d",
			len(gray), width*height*depth, width, height, depth)
	}

	vol, err := volume.NewFlatVolume(gray, width, height, depth, cfg.Streaming.ChunkDim)
	if err != nil {
		return nil, err
	}

	if labelFile != "" {
		label, err := os.ReadFile(labelFile)
		if err != nil {
			return nil, fmt.Errorf("reading label file: %w", err)
		}
		if err := vol.AttachLabels(label); err != nil {
			return nil, err
		}
	}
	return vol, nil
}

// paramsFromConfig maps the rendering section of the configuration onto a
// parameter snapshot.
func paramsFromConfig(cfg *config.Config) render.Params {
	p := render.DefaultParams()
	p.Quality = cfg.Rendering.Quality
	p.ThresholdMin = byte(cfg.Rendering.ThresholdMin)
	p.ThresholdMax = byte(cfg.Rendering.ThresholdMax)
	p.ShowGrayscale = cfg.Rendering.ShowGrayscale
	p.ShowLabels = cfg.Rendering.ShowLabels
	p.Opacity = float32(cfg.Rendering.Opacity)
	p.GrayOpacity = float32(cfg.Rendering.GrayOpacity)
	p.Brightness = float32(cfg.Rendering.Brightness)
	p.Contrast = float32(cfg.Rendering.Contrast)
	p.DensityScale = float32(cfg.Rendering.DensityScale)
	return p
}

// applyMaterials loads the configured material table into the renderer.
// Without configured materials a small default palette keeps labelled
// phantom volumes visible out of the box.
func applyMaterials(renderer *render.Renderer, cfg *config.Config) {
	if len(cfg.Materials) == 0 {
		renderer.Materials().SetFromARGB(1, 0xC0CC4444, true)
		renderer.Materials().SetFromARGB(2, 0xC044CC44, true)
		renderer.Materials().SetFromARGB(3, 0xC04444CC, true)
		renderer.Materials().SetFromARGB(4, 0xFFCCCC44, true)
		renderer.UpdateMaterials()
		return
	}
	for _, m := range cfg.Materials {
		if err := renderer.Materials().SetFromARGB(m.ID, m.ARGB, m.Visible); err != nil {
			log.Printf("Warning: Skipping material %d: %v", m.ID, err)
			continue
		}
		mat := renderer.Materials().At(byte(m.ID))
		mat.Min = byte(m.Min)
		if m.Max > 0 {
			mat.Max = byte(m.Max)
		}
		if err := renderer.Materials().Set(m.ID, mat); err != nil {
			log.Printf("Warning: Skipping material %d: %v", m.ID, err)
		}
	}
	renderer.UpdateMaterials()
}
