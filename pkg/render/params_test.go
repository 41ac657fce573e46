package render

import (
	"testing"
)

// TestParamsClamped verifies that out-of-range parameter values are pulled
// back into their documented domains before publication
func TestParamsClamped(t *testing.T) {
	p := Params{
		ThresholdMin: 200,
		ThresholdMax: 30,
		Quality:      7,
		Opacity:      3,
		GrayOpacity:  2,
		Brightness:   -9,
		Contrast:     100,
		DensityScale: 0,
	}.clamped()

	if p.ThresholdMin != 30 || p.ThresholdMax != 200 {
		t.Errorf("Expected reordered window [30,200], got [%d,%d]", p.ThresholdMin, p.ThresholdMax)
	}
	if p.Quality != QualityFine {
		t.Errorf("Expected quality clamped to fine, got %d", p.Quality)
	}
	if p.Opacity != 1 {
		t.Errorf("Expected opacity clamped to 1, got %f", p.Opacity)
	}
	if p.GrayOpacity != 1 {
		t.Errorf("Expected gray opacity clamped to 1, got %f", p.GrayOpacity)
	}
	if p.Brightness != -1 {
		t.Errorf("Expected brightness clamped to -1, got %f", p.Brightness)
	}
	if p.Contrast != 5 {
		t.Errorf("Expected contrast clamped to 5, got %f", p.Contrast)
	}
	if p.DensityScale != 1 {
		t.Errorf("Expected density scale floor of 1, got %f", p.DensityScale)
	}

	if q := (Params{Quality: -3, Contrast: 1, DensityScale: 1}).clamped().Quality; q != QualityCoarse {
		t.Errorf("Expected quality clamped to coarse, got %d", q)
	}
}

// TestParamsHolder verifies snapshot semantics: a stored value is read back
// unchanged and later stores do not affect earlier loads
func TestParamsHolder(t *testing.T) {
	h := newParamsHolder(DefaultParams())

	p := DefaultParams()
	p.ThresholdMin = 50
	h.Store(p)

	got := h.Load()
	if got.ThresholdMin != 50 {
		t.Errorf("Expected stored threshold 50, got %d", got.ThresholdMin)
	}

	p2 := DefaultParams()
	p2.ThresholdMin = 80
	h.Store(p2)
	if got.ThresholdMin != 50 {
		t.Errorf("Earlier snapshot mutated by a later store: %d", got.ThresholdMin)
	}
	if h.Load().ThresholdMin != 80 {
		t.Errorf("Expected latest snapshot, got %d", h.Load().ThresholdMin)
	}
}

// TestDefaultParams verifies the documented defaults the renderer starts
// with
func TestDefaultParams(t *testing.T) {
	p := DefaultParams()
	if p.ThresholdMin != 30 || p.ThresholdMax != 200 {
		t.Errorf("Expected default window [30,200], got [%d,%d]", p.ThresholdMin, p.ThresholdMax)
	}
	if p.Quality != QualityFine {
		t.Errorf("Expected default quality fine, got %d", p.Quality)
	}
	if !p.ShowGrayscale || !p.ShowLabels {
		t.Errorf("Expected both render layers enabled by default")
	}
	if p.Opacity != 1 {
		t.Errorf("Expected default opacity 1, got %f", p.Opacity)
	}
	if stepCaps[p.Quality] != 128 {
		t.Errorf("Expected 128 steps at fine quality, got %d", stepCaps[p.Quality])
	}
}
