package render

import (
	"fmt"
)

// MaterialCount is the fixed size of the material table; label values are
// bytes, so 256 entries cover every possible ID.
const MaterialCount = 256

// Material describes how one label ID is rendered.
type Material struct {
	// R, G, B are the display color components in [0,1]
	R, G, B float32

	// Opacity is the per-sample alpha contribution in [0,1]
	Opacity float32

	// Visible toggles the material without discarding its settings.
	// Material 0 is the exterior and is never visible regardless of this
	// flag.
	Visible bool

	// Min and Max bound the grayscale window the material applies to;
	// samples outside the window fall through to grayscale classification
	Min, Max byte
}

// MaterialList is the ordered table of materials indexed by label ID.
type MaterialList struct {
	entries [MaterialCount]Material
}

// NewMaterialList returns a table with every material invisible.
func NewMaterialList() *MaterialList {
	m := &MaterialList{}
	for i := range m.entries {
		m.entries[i].Max = 255
	}
	return m
}

// Set replaces the material for a label ID.
func (m *MaterialList) Set(id int, mat Material) error {
	if id < 0 || id >= MaterialCount {
		return fmt.Errorf("material id %d outside [0,%d)", id, MaterialCount)
	}
	m.entries[id] = mat
	return nil
}

// SetFromARGB sets a material's color and opacity from a packed 32-bit
// ARGB value, the form UI color pickers hand over.
func (m *MaterialList) SetFromARGB(id int, argb uint32, visible bool) error {
	if id < 0 || id >= MaterialCount {
		return fmt.Errorf("material id %d outside [0,%d)", id, MaterialCount)
	}
	m.entries[id] = Material{
		R:       float32((argb>>16)&0xFF) / 255,
		G:       float32((argb>>8)&0xFF) / 255,
		B:       float32(argb&0xFF) / 255,
		Opacity: float32((argb>>24)&0xFF) / 255,
		Visible: visible,
		Max:     255,
	}
	return nil
}

// At returns the material for a label ID.
func (m *MaterialList) At(id byte) Material {
	return m.entries[id]
}

// IsVisible reports whether a label ID contributes color. ID 0 is the
// exterior and never contributes.
func (m *MaterialList) IsVisible(id byte) bool {
	if id == 0 {
		return false
	}
	e := m.entries[id]
	return e.Visible && e.Opacity > 0
}

// PackFloats flattens the table into 4 floats per entry (r,g,b,a), the
// layout a structured color buffer expects. Entry 0 is forced to zero.
func (m *MaterialList) PackFloats() []float32 {
	out := make([]float32, MaterialCount*4)
	for i := 1; i < MaterialCount; i++ {
		e := m.entries[i]
		if !e.Visible {
			continue
		}
		out[i*4+0] = e.R
		out[i*4+1] = e.G
		out[i*4+2] = e.B
		out[i*4+3] = e.Opacity
	}
	return out
}
