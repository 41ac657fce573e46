package streaming

import (
	"testing"
)

// TestResidencyTableLookup verifies that every out-of-range chunk
// coordinate reports NotResident instead of panicking
func TestResidencyTableLookup(t *testing.T) {
	tbl := NewResidencyTable(2, 3, 4)
	if tbl.Len() != 24 {
		t.Fatalf("Expected 24 entries, got %d", tbl.Len())
	}

	outOfRange := [][3]int{
		{-1, 0, 0}, {2, 0, 0},
		{0, -1, 0}, {0, 3, 0},
		{0, 0, -1}, {0, 0, 4},
	}
	for _, c := range outOfRange {
		if got := tbl.Lookup(c[0], c[1], c[2]); got != NotResident {
			t.Errorf("Lookup(%d,%d,%d): expected NotResident, got %d", c[0], c[1], c[2], got)
		}
	}

	if got := tbl.Lookup(1, 2, 3); got != NotResident {
		t.Errorf("Fresh table should be empty, got %d", got)
	}
	tbl.set(23, 5)
	if got := tbl.Lookup(1, 2, 3); got != 5 {
		t.Errorf("Expected slot 5 after set, got %d", got)
	}
	if got := tbl.ResidentCount(); got != 1 {
		t.Errorf("Expected 1 resident entry, got %d", got)
	}
}

// TestResidencySnapshotIsCopy verifies that a snapshot does not alias the
// live table
func TestResidencySnapshotIsCopy(t *testing.T) {
	tbl := NewResidencyTable(2, 2, 2)
	tbl.set(3, 1)

	snap := tbl.Snapshot()
	if len(snap) != 8 {
		t.Fatalf("Expected snapshot of 8 entries, got %d", len(snap))
	}
	if snap[3] != 1 {
		t.Errorf("Expected slot 1 at entry 3, got %d", snap[3])
	}

	tbl.set(3, NotResident)
	if snap[3] != 1 {
		t.Errorf("Snapshot changed after table mutation: %d", snap[3])
	}
}
