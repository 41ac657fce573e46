package render

import (
	"sync/atomic"

	"ctvolume/internal/models"
)

// Quality tiers trade ray-step count for speed. Coarse is used while the
// camera moves, fine when it is still.
const (
	QualityCoarse = 0
	QualityMedium = 1
	QualityFine   = 2
)

// stepCaps maps a quality tier to the maximum number of ray steps.
var stepCaps = [3]int{32, 64, 128}

// Params is the immutable per-frame rendering configuration. Collaborators
// build a new Params value and publish it through the renderer; the render
// goroutine reads exactly one snapshot per frame, so a Params value is
// never mutated while a draw reads it.
type Params struct {
	// ThresholdMin and ThresholdMax bound the grayscale window, inclusive,
	// in the raw byte domain [0,255]
	ThresholdMin, ThresholdMax byte

	// Quality selects the step-count tier: QualityCoarse, QualityMedium or
	// QualityFine
	Quality int

	// ShowGrayscale enables the translucent rendering of unlabelled voxels
	// inside the threshold window
	ShowGrayscale bool

	// ShowLabels enables material classification of labelled voxels
	ShowLabels bool

	// Opacity scales every classified sample's opacity, labelled and
	// grayscale alike; 1 leaves samples unchanged, 0 hides the volume
	Opacity float32

	// GrayOpacity is the fixed translucency applied to in-window grayscale
	// samples
	GrayOpacity float32

	// Brightness in [-1,1] and Contrast in [0.1,5] adjust grayscale display
	Brightness, Contrast float32

	// DensityScale scales the opacity correction for step length
	DensityScale float32

	// ClipPlane discards samples on its negative side when enabled
	ClipPlane models.ClipPlane

	// Slice restricts rendering to one slab of voxels when enabled
	Slice models.SliceInfo

	// Cut restricts rendering to a voxel sub-box when enabled
	Cut models.CutInfo
}

// DefaultParams returns the parameter snapshot the renderer starts with.
func DefaultParams() Params {
	return Params{
		ThresholdMin:  30,
		ThresholdMax:  200,
		Quality:       QualityFine,
		ShowGrayscale: true,
		ShowLabels:    true,
		Opacity:       1,
		GrayOpacity:   0.05,
		Brightness:    0,
		Contrast:      1,
		DensityScale:  64,
	}
}

// clamped returns a copy with out-of-range fields brought back into their
// documented domains, so a hostile or buggy snapshot cannot break the
// marcher.
func (p Params) clamped() Params {
	if p.Quality < QualityCoarse {
		p.Quality = QualityCoarse
	}
	if p.Quality > QualityFine {
		p.Quality = QualityFine
	}
	if p.ThresholdMax < p.ThresholdMin {
		p.ThresholdMin, p.ThresholdMax = p.ThresholdMax, p.ThresholdMin
	}
	p.Opacity = clamp32(p.Opacity, 0, 1)
	p.GrayOpacity = clamp32(p.GrayOpacity, 0, 1)
	p.Brightness = clamp32(p.Brightness, -1, 1)
	p.Contrast = clamp32(p.Contrast, 0.1, 5)
	if p.DensityScale <= 0 {
		p.DensityScale = 1
	}
	return p
}

func clamp32(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// paramsHolder publishes Params snapshots from UI threads to the render
// goroutine without locking: writers store a fresh pointer, the render
// goroutine loads whatever is current at frame start.
type paramsHolder struct {
	p atomic.Pointer[Params]
}

func newParamsHolder(p Params) *paramsHolder {
	h := &paramsHolder{}
	h.Store(p)
	return h
}

func (h *paramsHolder) Store(p Params) {
	p = p.clamped()
	h.p.Store(&p)
}

func (h *paramsHolder) Load() Params {
	return *h.p.Load()
}
