package streaming

import (
	"testing"

	"ctvolume/pkg/volume"
)

// TestNewSlotArenaLayerLimit verifies that the arena rejects configurations
// exceeding the texture-array layer limit
func TestNewSlotArenaLayerLimit(t *testing.T) {
	if _, err := NewSlotArena(32, 64); err != nil {
		t.Errorf("32 slots of 64 layers should fit exactly: %v", err)
	}
	if _, err := NewSlotArena(33, 64); err == nil {
		t.Errorf("Expected error for 33 slots of 64 layers (2112 > %d)", MaxArrayLayers)
	}
	if _, err := NewSlotArena(0, 64); err == nil {
		t.Errorf("Expected error for zero slots")
	}
	if _, err := NewSlotArena(8, 0); err == nil {
		t.Errorf("Expected error for zero chunk dimension")
	}
}

// TestSlotArenaAcquireRelease verifies the explicit slot lifetime: slots
// come from the free list in a reproducible order, exhaust, and return
func TestSlotArenaAcquireRelease(t *testing.T) {
	a, err := NewSlotArena(4, 8)
	if err != nil {
		t.Fatalf("NewSlotArena failed: %v", err)
	}

	// Slots hand out in ascending order
	for want := int32(0); want < 4; want++ {
		slot, ok := a.acquire()
		if !ok {
			t.Fatalf("acquire failed with %d slots outstanding", want)
		}
		if slot != want {
			t.Errorf("Expected slot %d, got %d", want, slot)
		}
	}
	if a.FreeCount() != 0 {
		t.Errorf("Expected empty free list, got %d", a.FreeCount())
	}
	if _, ok := a.acquire(); ok {
		t.Errorf("acquire should fail on a full arena")
	}

	a.release(2)
	if a.FreeCount() != 1 {
		t.Errorf("Expected 1 free slot after release, got %d", a.FreeCount())
	}
	// Releasing twice is a no-op
	a.release(2)
	if a.FreeCount() != 1 {
		t.Errorf("Double release changed the free list: %d", a.FreeCount())
	}
	// Releasing an invalid slot is a no-op
	a.release(-1)
	a.release(99)
	if a.FreeCount() != 1 {
		t.Errorf("Invalid release changed the free list: %d", a.FreeCount())
	}

	slot, ok := a.acquire()
	if !ok || slot != 2 {
		t.Errorf("Expected released slot 2 back, got %d (ok=%v)", slot, ok)
	}
}

// TestSlotArenaSample verifies sampling semantics: local coordinates clamp
// to the chunk extent and invalid slots sample as empty
func TestSlotArenaSample(t *testing.T) {
	dim := 4
	a, err := NewSlotArena(2, dim)
	if err != nil {
		t.Fatalf("NewSlotArena failed: %v", err)
	}

	slot, _ := a.acquire()
	gray := a.grayPlane(slot)
	label := a.labelPlane(slot)
	for i := range gray {
		gray[i] = byte(i)
		label[i] = byte(i % 7)
	}

	g, l := a.Sample(slot, 1, 2, 3)
	wantIdx := volume.LocalIndex(1, 2, 3, dim)
	if g != byte(wantIdx) || l != byte(wantIdx%7) {
		t.Errorf("Sample(1,2,3): expected (%d,%d), got (%d,%d)",
			byte(wantIdx), byte(wantIdx%7), g, l)
	}

	// Out-of-range local coordinates clamp to the nearest edge voxel
	g, _ = a.Sample(slot, -5, 0, 0)
	if want, _ := a.Sample(slot, 0, 0, 0); g != want {
		t.Errorf("Negative coordinate should clamp to 0: expected %d, got %d", want, g)
	}
	g, _ = a.Sample(slot, dim+3, dim-1, dim-1)
	if want, _ := a.Sample(slot, dim-1, dim-1, dim-1); g != want {
		t.Errorf("Overflowing coordinate should clamp to %d: expected %d, got %d", dim-1, want, g)
	}

	// Invalid slots sample as empty
	if g, l := a.Sample(NotResident, 0, 0, 0); g != 0 || l != 0 {
		t.Errorf("Expected empty sample for NotResident slot, got (%d,%d)", g, l)
	}
	if g, l := a.Sample(99, 0, 0, 0); g != 0 || l != 0 {
		t.Errorf("Expected empty sample for out-of-range slot, got (%d,%d)", g, l)
	}
}
