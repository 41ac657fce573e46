// Package streaming maintains a bounded cache of volume chunks in a
// texture-array-style slot arena and keeps it synchronized with camera
// visibility. The Manager decides each frame which chunks should be
// resident, performs a bounded number of uploads and evictions, and
// publishes the chunk-to-slot residency table the renderer samples through.
package streaming

import (
	"ctvolume/pkg/volume"
)

// NotResident is the slot index published for chunks that are not cached.
const NotResident = int32(-1)

// ResidencyTable maps linear chunk index to arena slot index. It is owned
// and mutated exclusively by the Manager; the renderer consumes read-only
// snapshots.
type ResidencyTable struct {
	countX, countY, countZ int
	entries                []int32
}

// NewResidencyTable creates a table for a countX×countY×countZ chunk grid
// with every entry NotResident.
func NewResidencyTable(countX, countY, countZ int) *ResidencyTable {
	t := &ResidencyTable{
		countX:  countX,
		countY:  countY,
		countZ:  countZ,
		entries: make([]int32, countX*countY*countZ),
	}
	for i := range t.entries {
		t.entries[i] = NotResident
	}
	return t
}

// Len returns the number of entries (the total chunk count).
func (t *ResidencyTable) Len() int { return len(t.entries) }

// Lookup returns the slot index for chunk coordinate (cx,cy,cz), or
// NotResident when the coordinate lies outside the chunk grid.
func (t *ResidencyTable) Lookup(cx, cy, cz int) int32 {
	if cx < 0 || cx >= t.countX || cy < 0 || cy >= t.countY || cz < 0 || cz >= t.countZ {
		return NotResident
	}
	return t.entries[volume.ChunkIndex(cx, cy, cz, t.countX, t.countY)]
}

// At returns the slot index for a linear chunk index, or NotResident when
// the index is out of range.
func (t *ResidencyTable) At(index int) int32 {
	if index < 0 || index >= len(t.entries) {
		return NotResident
	}
	return t.entries[index]
}

func (t *ResidencyTable) set(index int, slot int32) {
	t.entries[index] = slot
}

// Snapshot returns a copy of the table as a flat array indexed by linear
// chunk index, ready for upload into a structured buffer. The copy is
// consistent: no entry refers to a slot mid-eviction because the Manager
// only calls it between complete transfer operations.
func (t *ResidencyTable) Snapshot() []int32 {
	out := make([]int32, len(t.entries))
	copy(out, t.entries)
	return out
}

// ResidentCount returns the number of entries currently mapped to a slot.
func (t *ResidencyTable) ResidentCount() int {
	n := 0
	for _, e := range t.entries {
		if e != NotResident {
			n++
		}
	}
	return n
}
