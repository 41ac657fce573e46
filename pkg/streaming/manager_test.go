package streaming

import (
	"fmt"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"ctvolume/pkg/volume"
)

// testManager builds a manager over a synthetic phantom with a 2x2x2 chunk
// grid, small enough that the whole volume fits in the cache
func testManager(t *testing.T, cfg Config) (*Manager, volume.Accessor) {
	t.Helper()
	vol, err := volume.Phantom(32, 16)
	if err != nil {
		t.Fatalf("Phantom failed: %v", err)
	}
	m, err := NewManager(vol, cfg)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	return m, vol
}

// frontView looks at the volume center from outside the bounding box, with
// the whole volume inside the frustum
func frontView() View {
	return testView(mgl32.Vec3{0, 0, 3}, mgl32.Vec3{})
}

// awayView looks directly away from the volume, leaving nothing wanted
func awayView() View {
	return testView(mgl32.Vec3{0, 0, 3}, mgl32.Vec3{0, 0, 10})
}

// TestNewManagerValidation verifies the configuration checks
func TestNewManagerValidation(t *testing.T) {
	vol, err := volume.Phantom(32, 16)
	if err != nil {
		t.Fatalf("Phantom failed: %v", err)
	}
	if _, err := NewManager(vol, Config{CacheSlots: 0, UploadBudget: 4}); err == nil {
		t.Errorf("Expected error for zero cache slots")
	}
	if _, err := NewManager(vol, Config{CacheSlots: 8, UploadBudget: 0}); err == nil {
		t.Errorf("Expected error for zero upload budget")
	}
}

// TestManagerFillsWantedSet verifies that repeated budget-bounded updates
// converge on the full wanted set and then go quiescent
func TestManagerFillsWantedSet(t *testing.T) {
	m, _ := testManager(t, Config{CacheSlots: 8, UploadBudget: 4})
	view := frontView()

	// 8 chunks at 4 uploads per call need two calls
	m.Update(view)
	if got := m.ResidentCount(); got != 4 {
		t.Errorf("Expected 4 resident chunks after one update, got %d", got)
	}
	if !m.IsDirty() {
		t.Errorf("Uploads should mark the resident set dirty")
	}
	m.Update(view)
	if got := m.ResidentCount(); got != 8 {
		t.Errorf("Expected 8 resident chunks after two updates, got %d", got)
	}

	snap := m.ResidencySnapshot()
	slotsSeen := make(map[int32]bool)
	for i, slot := range snap {
		if slot == NotResident {
			t.Errorf("Chunk %d not resident with the whole volume in view", i)
			continue
		}
		if slotsSeen[slot] {
			t.Errorf("Slot %d mapped twice", slot)
		}
		slotsSeen[slot] = true
	}

	// An unchanged, fully-resident view performs no transfers and leaves
	// the dirty flag untouched
	m.MarkClean()
	before := m.Stats()
	m.Update(view)
	after := m.Stats()
	if after.Uploads != before.Uploads || after.Evictions != before.Evictions {
		t.Errorf("Quiescent update transferred: %+v -> %+v", before, after)
	}
	if m.IsDirty() {
		t.Errorf("Quiescent update should not mark the resident set dirty")
	}
}

// TestManagerResidencyBounded verifies that the resident set never exceeds
// the slot count when the volume has more chunks than slots, and that the
// cache keeps the chunks nearest the eye
func TestManagerResidencyBounded(t *testing.T) {
	vol, err := volume.Phantom(64, 16)
	if err != nil {
		t.Fatalf("Phantom failed: %v", err)
	}
	m, err := NewManager(vol, Config{CacheSlots: 8, UploadBudget: 4})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	view := frontView()
	for i := 0; i < 10; i++ {
		m.Update(view)
		if got := m.ResidentCount(); got > 8 {
			t.Fatalf("Resident count %d exceeds %d slots after update %d", got, 8, i)
		}
	}
	if got := m.ResidentCount(); got != 8 {
		t.Errorf("Expected a full cache of 8 chunks, got %d", got)
	}

	// The eye sits on the +Z side, so every cached chunk must come from the
	// nearest chunk layer
	countX, countY := vol.ChunkCountX(), vol.ChunkCountY()
	for i, slot := range m.ResidencySnapshot() {
		if slot == NotResident {
			continue
		}
		_, _, cz := volume.ChunkCoord(i, countX, countY)
		if cz != vol.ChunkCountZ()-1 {
			t.Errorf("Chunk %d (cz=%d) resident; expected only the near layer", i, cz)
		}
	}
}

// TestManagerEvictsOutOfView verifies that chunks leaving the frustum are
// evicted and their slots returned to the free list
func TestManagerEvictsOutOfView(t *testing.T) {
	m, _ := testManager(t, Config{CacheSlots: 8, UploadBudget: 4})

	m.Update(frontView())
	m.Update(frontView())
	if got := m.ResidentCount(); got != 8 {
		t.Fatalf("Expected a full cache before turning away, got %d", got)
	}

	// Nothing is wanted; the eviction budget (4*evictFactor) covers all 8
	m.MarkClean()
	m.Update(awayView())
	if got := m.ResidentCount(); got != 0 {
		t.Errorf("Expected empty cache after turning away, got %d", got)
	}
	for i, slot := range m.ResidencySnapshot() {
		if slot != NotResident {
			t.Errorf("Chunk %d still mapped to slot %d", i, slot)
		}
	}
	if got := m.Arena().FreeCount(); got != 8 {
		t.Errorf("Expected 8 free slots after eviction, got %d", got)
	}
	if !m.IsDirty() {
		t.Errorf("Evictions should mark the resident set dirty")
	}
	if got := m.Stats().Evictions; got != 8 {
		t.Errorf("Expected 8 evictions, got %d", got)
	}
}

// TestManagerSlotDataMatchesVolume verifies the upload path end to end:
// sampling a resident slot returns the same voxels as the source volume
func TestManagerSlotDataMatchesVolume(t *testing.T) {
	m, vol := testManager(t, Config{CacheSlots: 8, UploadBudget: 8})
	m.Update(frontView())

	dim := vol.ChunkDim()
	countX, countY := vol.ChunkCountX(), vol.ChunkCountY()
	probes := [][3]int{{0, 0, 0}, {dim - 1, dim - 1, dim - 1}, {7, 8, 9}, {3, 12, 5}}

	checked := 0
	for i, slot := range m.ResidencySnapshot() {
		if slot == NotResident {
			continue
		}
		cx, cy, cz := volume.ChunkCoord(i, countX, countY)
		for _, p := range probes {
			x, y, z := cx*dim+p[0], cy*dim+p[1], cz*dim+p[2]
			gray, label := m.Arena().Sample(slot, p[0], p[1], p[2])
			if want := vol.VoxelAt(x, y, z); gray != want {
				t.Errorf("Chunk %d local %v: expected gray %d, got %d", i, p, want, gray)
			}
			if want := vol.LabelAt(x, y, z); label != want {
				t.Errorf("Chunk %d local %v: expected label %d, got %d", i, p, want, label)
			}
		}
		checked++
	}
	if checked == 0 {
		t.Fatalf("No chunks resident to verify")
	}
}

// TestManagerEvictReuploadRoundTrip verifies that a chunk evicted and later
// re-uploaded into a reused slot carries fresh data
func TestManagerEvictReuploadRoundTrip(t *testing.T) {
	m, vol := testManager(t, Config{CacheSlots: 8, UploadBudget: 8})

	m.Update(frontView())
	m.Update(awayView())
	m.Update(frontView())

	if got := m.ResidentCount(); got != 8 {
		t.Fatalf("Expected 8 resident chunks after re-upload, got %d", got)
	}
	dim := vol.ChunkDim()
	for i, slot := range m.ResidencySnapshot() {
		cx, cy, cz := volume.ChunkCoord(i, vol.ChunkCountX(), vol.ChunkCountY())
		gray, _ := m.Arena().Sample(slot, dim/2, dim/2, dim/2)
		want := vol.VoxelAt(cx*dim+dim/2, cy*dim+dim/2, cz*dim+dim/2)
		if gray != want {
			t.Errorf("Chunk %d after round trip: expected %d, got %d", i, want, gray)
		}
	}
}

// failingVolume wraps an accessor and fails every chunk read, simulating a
// transfer error
type failingVolume struct {
	volume.Accessor
	attempts int
}

func (f *failingVolume) ReadChunk(cx, cy, cz int, gray, label []byte) error {
	f.attempts++
	return fmt.Errorf("simulated transfer failure")
}

// TestManagerUploadFailure verifies that failed uploads leave no stale
// residency entries and return their slots to the free list
func TestManagerUploadFailure(t *testing.T) {
	base, err := volume.Phantom(32, 16)
	if err != nil {
		t.Fatalf("Phantom failed: %v", err)
	}
	failing := &failingVolume{Accessor: base}
	m, err := NewManager(failing, Config{CacheSlots: 8, UploadBudget: 4})
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	m.Update(frontView())

	if failing.attempts == 0 {
		t.Fatalf("Expected upload attempts against the failing volume")
	}
	if got := m.ResidentCount(); got != 0 {
		t.Errorf("Expected no resident chunks after failed uploads, got %d", got)
	}
	for i, slot := range m.ResidencySnapshot() {
		if slot != NotResident {
			t.Errorf("Chunk %d mapped to slot %d despite failed upload", i, slot)
		}
	}
	if got := m.Arena().FreeCount(); got != 8 {
		t.Errorf("Expected all slots free after failed uploads, got %d", got)
	}
	if got := m.Stats().UploadErrors; got != 4 {
		t.Errorf("Expected 4 upload errors (one per budget unit), got %d", got)
	}

	// The next update retries the same chunks
	m.Update(frontView())
	if got := m.Stats().UploadErrors; got != 8 {
		t.Errorf("Expected retries on the next update, got %d errors", got)
	}
}
