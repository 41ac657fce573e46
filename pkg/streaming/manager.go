package streaming

import (
	"fmt"
	"log"
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"ctvolume/internal/models"
	"ctvolume/pkg/volume"
)

// Config controls the streaming cache.
type Config struct {
	// CacheSlots is the number of chunk slots in the arena (N). Together
	// with the volume's chunk dimension it must respect the texture-array
	// layer limit: CacheSlots*ChunkDim <= MaxArrayLayers.
	CacheSlots int

	// UploadBudget caps chunk uploads per Update call so a single frame
	// never stalls on transfers. Evictions are bounded by the same budget
	// scaled by evictFactor.
	UploadBudget int

	// Verbose enables per-transfer logging.
	Verbose bool
}

// evictFactor bounds proactive evictions per Update relative to the upload
// budget. Evictions are cheap (no voxel transfer) but still bounded so
// Update stays constant-cost.
const evictFactor = 4

// DefaultConfig returns the streaming defaults used by the CLI.
func DefaultConfig() Config {
	return Config{CacheSlots: 32, UploadBudget: 4}
}

// Stats accumulates transfer counters for reporting.
type Stats struct {
	Uploads      int
	Evictions    int
	UploadErrors int
	UpdateCalls  int
}

// Manager owns the slot arena and the residency table. Each frame,
// Update(view) computes the set of chunks the current camera wants
// resident, uploads the most relevant missing chunks within the transfer
// budget, and evicts chunks that are no longer wanted, farthest first.
//
// Selection policy (deterministic, documented here because the heuristic is
// a design decision): a chunk is wanted when its bounding sphere intersects
// the view frustum; wanted chunks are ranked by squared Euclidean distance
// from the eye, ties broken by ascending linear chunk index, and the list
// is truncated to the slot count. Chunks behind the camera fail the frustum
// test. Eviction considers only resident chunks outside the current wanted
// set, so a chunk needed by the immediately following draw is never
// evicted.
type Manager struct {
	vol   volume.Accessor
	geom  models.Geometry
	table *ResidencyTable
	arena *SlotArena
	cfg   Config

	// slotChunk maps slot index back to the linear chunk index it holds,
	// NotResident when free.
	slotChunk []int32

	dirty bool
	stats Stats

	// scratch, reused across Updates
	wanted    []chunkScore
	wantedSet []bool
}

type chunkScore struct {
	index int
	dist2 float32
}

// NewManager creates a streaming manager over the given accessor. The
// residency table is sized from the volume's chunk grid; the arena is sized
// from cfg.CacheSlots.
func NewManager(vol volume.Accessor, cfg Config) (*Manager, error) {
	if cfg.CacheSlots <= 0 {
		return nil, fmt.Errorf("invalid cache slot count: %d", cfg.CacheSlots)
	}
	if cfg.UploadBudget <= 0 {
		return nil, fmt.Errorf("invalid upload budget: %d", cfg.UploadBudget)
	}
	arena, err := NewSlotArena(cfg.CacheSlots, vol.ChunkDim())
	if err != nil {
		return nil, fmt.Errorf("creating slot arena: %w", err)
	}
	geom := models.Geometry{
		Width:    vol.Width(),
		Height:   vol.Height(),
		Depth:    vol.Depth(),
		ChunkDim: vol.ChunkDim(),
	}
	m := &Manager{
		vol:       vol,
		geom:      geom,
		table:     NewResidencyTable(vol.ChunkCountX(), vol.ChunkCountY(), vol.ChunkCountZ()),
		arena:     arena,
		cfg:       cfg,
		slotChunk: make([]int32, cfg.CacheSlots),
		wantedSet: make([]bool, geom.ChunkCount()),
	}
	for i := range m.slotChunk {
		m.slotChunk[i] = NotResident
	}
	return m, nil
}

// Table returns the residency table for per-sample lookups within a draw.
// The renderer must treat it as read-only.
func (m *Manager) Table() *ResidencyTable { return m.table }

// Arena returns the slot arena for per-sample reads within a draw. The
// renderer must treat it as read-only.
func (m *Manager) Arena() *SlotArena { return m.arena }

// Geometry returns the volume geometry the manager ranks chunks in.
func (m *Manager) Geometry() models.Geometry { return m.geom }

// Stats returns the accumulated transfer counters.
func (m *Manager) Stats() Stats { return m.stats }

// IsDirty reports whether the resident set changed since the last
// MarkClean. The renderer combines this with its own needs-render flag to
// skip draws of an unchanged, fully-resident view.
func (m *Manager) IsDirty() bool { return m.dirty }

// MarkClean resets the dirty flag; the renderer calls it after presenting a
// frame built from the current resident set.
func (m *Manager) MarkClean() { m.dirty = false }

// ResidencySnapshot returns the residency table as a flat array indexed by
// linear chunk index, each entry a slot index or NotResident. The snapshot
// is taken between transfer operations and is therefore consistent.
func (m *Manager) ResidencySnapshot() []int32 { return m.table.Snapshot() }

// ResidentCount returns the number of chunks currently cached.
func (m *Manager) ResidentCount() int { return m.table.ResidentCount() }

// chunkCenter returns the world-space center of a chunk, accounting for
// boundary chunks that extend past the volume (their center stays at the
// grid cell center; the bounding-sphere radius covers the full cell).
func (m *Manager) chunkCenter(cx, cy, cz int) mgl32.Vec3 {
	dim := float32(m.geom.ChunkDim)
	v := mgl32.Vec3{
		(float32(cx) + 0.5) * dim,
		(float32(cy) + 0.5) * dim,
		(float32(cz) + 0.5) * dim,
	}
	return m.geom.VoxelToWorld(v)
}

// Update recomputes the wanted set for the given view and performs a
// bounded number of uploads and evictions to move the resident set toward
// it. Safe to call every frame: per-call work is capped by the configured
// budget. Calling Update twice with an unchanged view and a fully-resident
// wanted set performs no transfers and leaves the dirty flag untouched.
func (m *Manager) Update(view View) {
	m.stats.UpdateCalls++

	fr := frustumFromViewProj(view.ViewProj)
	// Bounding sphere radius of one chunk: half the cell diagonal.
	radius := m.geom.ChunkEdgeWorld() * float32(math.Sqrt(3)) / 2

	countX, countY := m.geom.ChunkCountX(), m.geom.ChunkCountY()
	countZ := m.geom.ChunkCountZ()

	m.wanted = m.wanted[:0]
	for i := range m.wantedSet {
		m.wantedSet[i] = false
	}
	for cz := 0; cz < countZ; cz++ {
		for cy := 0; cy < countY; cy++ {
			for cx := 0; cx < countX; cx++ {
				center := m.chunkCenter(cx, cy, cz)
				if !fr.containsSphere(center, radius) {
					continue
				}
				d := center.Sub(view.Eye)
				m.wanted = append(m.wanted, chunkScore{
					index: volume.ChunkIndex(cx, cy, cz, countX, countY),
					dist2: d.Dot(d),
				})
			}
		}
	}

	// Nearest chunks first; ties by ascending index for reproducibility.
	sort.Slice(m.wanted, func(i, j int) bool {
		if m.wanted[i].dist2 != m.wanted[j].dist2 {
			return m.wanted[i].dist2 < m.wanted[j].dist2
		}
		return m.wanted[i].index < m.wanted[j].index
	})
	if len(m.wanted) > m.arena.Slots() {
		m.wanted = m.wanted[:m.arena.Slots()]
	}
	for _, w := range m.wanted {
		m.wantedSet[w.index] = true
	}

	m.evictUnwanted(view)
	m.uploadWanted(view)
}

// evictUnwanted frees slots holding chunks outside the current wanted set,
// farthest from the eye first, bounded per call.
func (m *Manager) evictUnwanted(view View) {
	var victims []chunkScore
	for _, chunk := range m.slotChunk {
		if chunk == NotResident || m.wantedSet[chunk] {
			continue
		}
		cx, cy, cz := volume.ChunkCoord(int(chunk), m.geom.ChunkCountX(), m.geom.ChunkCountY())
		d := m.chunkCenter(cx, cy, cz).Sub(view.Eye)
		victims = append(victims, chunkScore{index: int(chunk), dist2: d.Dot(d)})
	}
	sort.Slice(victims, func(i, j int) bool {
		if victims[i].dist2 != victims[j].dist2 {
			return victims[i].dist2 > victims[j].dist2
		}
		return victims[i].index < victims[j].index
	})

	budget := m.cfg.UploadBudget * evictFactor
	for _, v := range victims {
		if budget == 0 {
			break
		}
		m.evict(v.index)
		budget--
	}
}

// evict releases the slot holding the given chunk and clears its residency
// entry. The table is updated before the slot returns to the free list so
// no snapshot can observe a mapping into a reclaimed slot.
func (m *Manager) evict(chunkIndex int) {
	slot := m.table.At(chunkIndex)
	if slot == NotResident {
		return
	}
	m.table.set(chunkIndex, NotResident)
	m.slotChunk[slot] = NotResident
	m.arena.release(slot)
	m.dirty = true
	m.stats.Evictions++
	if m.cfg.Verbose {
		log.Printf("streaming: evicted chunk %d from slot %d", chunkIndex, slot)
	}
}

// uploadWanted uploads missing wanted chunks in priority order, reclaiming
// slots from the farthest unwanted residents when the free list is empty.
func (m *Manager) uploadWanted(view View) {
	budget := m.cfg.UploadBudget
	for _, w := range m.wanted {
		if budget == 0 {
			break
		}
		if m.table.At(w.index) != NotResident {
			continue
		}
		slot, ok := m.arena.acquire()
		if !ok {
			// All unwanted residents were already evicted above; every
			// remaining slot holds a wanted chunk, so there is no room.
			break
		}
		budget--
		if err := m.upload(w.index, slot); err != nil {
			// Mark the chunk non-resident rather than leaving a stale
			// mapping; the next Update retries it.
			m.arena.release(slot)
			m.table.set(w.index, NotResident)
			m.stats.UploadErrors++
			log.Printf("streaming: upload of chunk %d failed: %v", w.index, err)
			continue
		}
		m.table.set(w.index, slot)
		m.slotChunk[slot] = int32(w.index)
		m.dirty = true
		m.stats.Uploads++
		if m.cfg.Verbose {
			log.Printf("streaming: uploaded chunk %d to slot %d", w.index, slot)
		}
	}
}

// upload reads one chunk from the accessor directly into the slot's
// storage planes. Slot reuse requires the label plane to be cleared when
// the source has no labels, otherwise a previous tenant's labels would
// leak through.
func (m *Manager) upload(chunkIndex int, slot int32) error {
	cx, cy, cz := volume.ChunkCoord(chunkIndex, m.geom.ChunkCountX(), m.geom.ChunkCountY())
	labelPlane := m.arena.labelPlane(slot)
	if !m.vol.HasLabels() {
		for i := range labelPlane {
			labelPlane[i] = 0
		}
		labelPlane = nil
	}
	return m.vol.ReadChunk(cx, cy, cz, m.arena.grayPlane(slot), labelPlane)
}
