package streaming

import (
	"fmt"

	"ctvolume/pkg/volume"
)

// MaxArrayLayers is the texture-array element limit the arena models. Each
// cached chunk occupies chunkDim consecutive layers, so the slot count is
// bounded by MaxArrayLayers/chunkDim.
const MaxArrayLayers = 2048

// SlotArena is a fixed pool of cache slots, each holding one chunk's
// grayscale and label voxels in depth-slice-major layout: the in-memory
// model of a pair of 2D texture arrays with chunkDim layers per slot.
//
// Slots have an explicit acquire → populate → release lifetime managed by
// the Manager through a free list; nothing is reclaimed implicitly.
type SlotArena struct {
	slots    int
	chunkDim int
	slotSize int
	gray     []byte
	label    []byte
	free     []int32
	inUse    []bool
}

// NewSlotArena creates an arena of the given slot count for chunks of side
// chunkDim. The configuration must respect the texture-array layer limit:
// slots*chunkDim <= MaxArrayLayers.
func NewSlotArena(slots, chunkDim int) (*SlotArena, error) {
	if slots <= 0 {
		return nil, fmt.Errorf("invalid slot count: %d", slots)
	}
	if chunkDim <= 0 {
		return nil, fmt.Errorf("invalid chunk dimension: %d", chunkDim)
	}
	if slots*chunkDim > MaxArrayLayers {
		return nil, fmt.Errorf("%d slots of %d layers exceed the texture array limit of %d",
			slots, chunkDim, MaxArrayLayers)
	}
	slotSize := chunkDim * chunkDim * chunkDim
	a := &SlotArena{
		slots:    slots,
		chunkDim: chunkDim,
		slotSize: slotSize,
		gray:     make([]byte, slots*slotSize),
		label:    make([]byte, slots*slotSize),
		free:     make([]int32, 0, slots),
		inUse:    make([]bool, slots),
	}
	// Free list is drained from the tail; seeding it in descending order
	// hands out slot 0 first, which keeps allocation order reproducible.
	for s := slots - 1; s >= 0; s-- {
		a.free = append(a.free, int32(s))
	}
	return a, nil
}

// Slots returns the arena capacity.
func (a *SlotArena) Slots() int { return a.slots }

// ChunkDim returns the chunk side length the arena was sized for.
func (a *SlotArena) ChunkDim() int { return a.chunkDim }

// FreeCount returns the number of unoccupied slots.
func (a *SlotArena) FreeCount() int { return len(a.free) }

// acquire takes a slot from the free list.
func (a *SlotArena) acquire() (int32, bool) {
	if len(a.free) == 0 {
		return NotResident, false
	}
	s := a.free[len(a.free)-1]
	a.free = a.free[:len(a.free)-1]
	a.inUse[s] = true
	return s, true
}

// release returns a slot to the free list. Releasing a slot that is not in
// use is a no-op, so error paths may release unconditionally.
func (a *SlotArena) release(slot int32) {
	if slot < 0 || int(slot) >= a.slots || !a.inUse[slot] {
		return
	}
	a.inUse[slot] = false
	a.free = append(a.free, slot)
}

// grayPlane returns the writable grayscale storage for a slot.
func (a *SlotArena) grayPlane(slot int32) []byte {
	off := int(slot) * a.slotSize
	return a.gray[off : off+a.slotSize]
}

// labelPlane returns the writable label storage for a slot.
func (a *SlotArena) labelPlane(slot int32) []byte {
	off := int(slot) * a.slotSize
	return a.label[off : off+a.slotSize]
}

// Sample reads the grayscale and label values at local voxel coordinate
// (lx,ly,lz) within a slot. Coordinates outside the chunk extent clamp to
// the nearest edge voxel; an out-of-range slot samples as empty.
func (a *SlotArena) Sample(slot int32, lx, ly, lz int) (gray, label byte) {
	if slot < 0 || int(slot) >= a.slots {
		return 0, 0
	}
	dim := a.chunkDim
	lx = clampInt(lx, 0, dim-1)
	ly = clampInt(ly, 0, dim-1)
	lz = clampInt(lz, 0, dim-1)
	idx := int(slot)*a.slotSize + volume.LocalIndex(lx, ly, lz, dim)
	return a.gray[idx], a.label[idx]
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
