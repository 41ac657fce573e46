package render

import (
	"fmt"
	"image"
	"image/color"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"ctvolume/internal/models"
	"ctvolume/pkg/streaming"
)

// opacityCutoff is the accumulated alpha at which a ray terminates early.
// The remaining tail contributes less than (1-cutoff) of the pixel and is
// visually imperceptible.
const opacityCutoff = 0.95

// stepFloorVoxels is the minimum march step in voxel edges. It bounds
// per-pixel work on thin intersection spans so one frame can never run
// unbounded.
const stepFloorVoxels = 0.25

// Per-frame states of the renderer; exactly one state is active at a time
// on the render goroutine.
const (
	stateIdle = iota
	stateUpdating
	stateDrawing
	statePresenting
)

// materialTable is the marcher's read-only view of the material list:
// color and opacity packed 4 floats per entry plus the per-material
// grayscale windows. Entry 0 is always zero. A new table is published
// atomically by UpdateMaterials, mirroring a constant-buffer upload issued
// before the draw that reads it.
type materialTable struct {
	rgba     [MaterialCount * 4]float32
	min, max [MaterialCount]byte
}

// Renderer marches camera rays through the volume bounding box and
// composites color front-to-back from whatever chunks are resident in the
// streaming cache. Non-resident chunks are skipped, never treated as
// zero density. All sampling goes through the slot arena; the renderer
// never touches the source volume directly.
type Renderer struct {
	mgr  *streaming.Manager
	geom models.Geometry

	materials *MaterialList
	matTable  atomic.Pointer[materialTable]
	params    *paramsHolder

	width, height int
	fb            *image.RGBA

	resizeMu           sync.Mutex
	pendingW, pendingH int

	needsRender atomic.Bool

	// Render-goroutine-only state.
	state     int
	suspended bool

	workers int
}

// NewRenderer creates a renderer of the given viewport size over a
// streaming manager.
func NewRenderer(mgr *streaming.Manager, width, height int) (*Renderer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid viewport dimensions: %dx%d", width, height)
	}
	r := &Renderer{
		mgr:       mgr,
		geom:      mgr.Geometry(),
		materials: NewMaterialList(),
		params:    newParamsHolder(DefaultParams()),
		width:     width,
		height:    height,
		fb:        image.NewRGBA(image.Rect(0, 0, width, height)),
		workers:   runtime.NumCPU(),
	}
	r.UpdateMaterials()
	r.needsRender.Store(true)
	return r, nil
}

// Materials returns the material list. Mutations take effect at the next
// UpdateMaterials call.
func (r *Renderer) Materials() *MaterialList { return r.materials }

// UpdateMaterials publishes the current material list to the marcher. The
// published table is immutable, so the call is safe from a UI thread while
// a draw is in flight; the in-flight draw keeps its old table.
func (r *Renderer) UpdateMaterials() {
	t := &materialTable{}
	for i := 1; i < MaterialCount; i++ {
		m := r.materials.At(byte(i))
		t.min[i] = m.Min
		t.max[i] = m.Max
		if !m.Visible || m.Opacity <= 0 {
			continue
		}
		t.rgba[i*4+0] = m.R
		t.rgba[i*4+1] = m.G
		t.rgba[i*4+2] = m.B
		t.rgba[i*4+3] = m.Opacity
	}
	r.matTable.Store(t)
	r.needsRender.Store(true)
}

// SetParams publishes a new parameter snapshot, effective from the next
// frame.
func (r *Renderer) SetParams(p Params) {
	r.params.Store(p)
	r.needsRender.Store(true)
}

// Params returns the current parameter snapshot.
func (r *Renderer) Params() Params { return r.params.Load() }

// SetNeedsRender forces the next RenderFrame to draw even when nothing in
// the resident set changed.
func (r *Renderer) SetNeedsRender() { r.needsRender.Store(true) }

// Resize requests a new viewport size, applied at the start of the next
// frame.
func (r *Renderer) Resize(width, height int) {
	if width <= 0 || height <= 0 {
		return
	}
	r.resizeMu.Lock()
	r.pendingW, r.pendingH = width, height
	r.resizeMu.Unlock()
	r.needsRender.Store(true)
}

// Framebuffer returns the most recently drawn frame.
func (r *Renderer) Framebuffer() *image.RGBA { return r.fb }

// Size returns the current viewport dimensions.
func (r *Renderer) Size() (int, int) { return r.width, r.height }

// SuspendDraws puts the renderer into the degraded state entered after a
// present failure: draws are suppressed and quality is forced to the
// coarse tier until ResumeDraws.
func (r *Renderer) SuspendDraws() {
	r.suspended = true
	p := r.params.Load()
	p.Quality = QualityCoarse
	r.params.Store(p)
}

// ResumeDraws leaves the degraded state.
func (r *Renderer) ResumeDraws() {
	r.suspended = false
	r.needsRender.Store(true)
}

// Suspended reports whether draws are currently suppressed.
func (r *Renderer) Suspended() bool { return r.suspended }

func (r *Renderer) applyPendingResize() {
	r.resizeMu.Lock()
	w, h := r.pendingW, r.pendingH
	r.pendingW, r.pendingH = 0, 0
	r.resizeMu.Unlock()
	if w > 0 && h > 0 && (w != r.width || h != r.height) {
		r.width, r.height = w, h
		r.fb = image.NewRGBA(image.Rect(0, 0, w, h))
	}
}

// RenderFrame runs one frame: streaming update, then the draw unless both
// the needs-render flag and the streaming dirty flag are clear. It returns
// whether a draw happened. Must be called from a single render goroutine.
func (r *Renderer) RenderFrame(cam *Camera) bool {
	r.state = stateUpdating
	defer func() { r.state = stateIdle }()

	r.applyPendingResize()
	cam.SetAspect(float32(r.width) / float32(r.height))
	r.mgr.Update(cam.View())

	if r.suspended {
		return false
	}
	if !r.needsRender.Load() && !r.mgr.IsDirty() {
		return false
	}
	r.needsRender.Store(false)

	r.state = stateDrawing
	r.draw(cam)
	r.mgr.MarkClean()
	return true
}

// draw renders the full frame with a row-interleaved worker pool. Rows are
// independent, so the output is identical regardless of scheduling.
func (r *Renderer) draw(cam *Camera) {
	params := r.params.Load()
	mats := r.matTable.Load()
	invVP := cam.ViewProj().Inv()
	eye := cam.Position()

	workers := r.workers
	if workers < 1 {
		workers = 1
	}
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(start int) {
			defer wg.Done()
			for y := start; y < r.height; y += workers {
				r.drawRow(y, eye, invVP, params, mats)
			}
		}(w)
	}
	wg.Wait()
}

func (r *Renderer) drawRow(y int, eye mgl32.Vec3, invVP mgl32.Mat4, params Params, mats *materialTable) {
	for x := 0; x < r.width; x++ {
		r.fb.SetRGBA(x, y, r.marchPixel(x, y, eye, invVP, params, mats))
	}
}

// unproject maps an NDC point back to world space through the inverse
// view-projection matrix.
func unproject(invVP mgl32.Mat4, ndc mgl32.Vec3) mgl32.Vec3 {
	p := invVP.Mul4x1(mgl32.Vec4{ndc.X(), ndc.Y(), ndc.Z(), 1})
	if p.W() == 0 {
		return mgl32.Vec3{}
	}
	return mgl32.Vec3{p.X() / p.W(), p.Y() / p.W(), p.Z() / p.W()}
}

// intersectAABB is the slab-method ray/box test. It returns the entry and
// exit distances along the ray; ok is false when the ray misses the box or
// the box lies entirely behind the origin.
func intersectAABB(origin, dir, minB, maxB mgl32.Vec3) (tmin, tmax float32, ok bool) {
	tmin, tmax = -math32.MaxFloat32, math32.MaxFloat32
	for i := 0; i < 3; i++ {
		if math32.Abs(dir[i]) < 1e-8 {
			if origin[i] < minB[i] || origin[i] > maxB[i] {
				return 0, 0, false
			}
			continue
		}
		inv := 1 / dir[i]
		t1 := (minB[i] - origin[i]) * inv
		t2 := (maxB[i] - origin[i]) * inv
		if t1 > t2 {
			t1, t2 = t2, t1
		}
		if t1 > tmin {
			tmin = t1
		}
		if t2 < tmax {
			tmax = t2
		}
	}
	if tmax < 0 || tmin > tmax {
		return 0, 0, false
	}
	return tmin, tmax, true
}

// chunkExitDistance returns the distance along dir from pos to the first
// chunk boundary ahead, i.e. the span left inside the chunk that pos lies
// in. It is used to step over a non-resident chunk without overshooting
// into a resident neighbor.
func (r *Renderer) chunkExitDistance(pos, dir mgl32.Vec3) float32 {
	edge := r.geom.ChunkEdgeWorld()
	minB := r.geom.WorldMin()
	exit := float32(math32.MaxFloat32)
	for i := 0; i < 3; i++ {
		if math32.Abs(dir[i]) < 1e-8 {
			continue
		}
		cell := math32.Floor((pos[i] - minB[i]) / edge)
		boundary := minB[i] + cell*edge
		if dir[i] > 0 {
			boundary += edge
		}
		if ti := (boundary - pos[i]) / dir[i]; ti < exit {
			exit = ti
		}
	}
	if exit < 0 || exit == math32.MaxFloat32 {
		return 0
	}
	return exit
}

// compositeStep folds one sample into the front-to-back accumulator. The
// sample opacity is corrected for step length so the accumulated result is
// independent of the step count; the returned alpha never decreases and
// never exceeds 1.
func compositeStep(accR, accG, accB, accA, sr, sg, sb, sa, stepLen, densityScale float32) (float32, float32, float32, float32) {
	alphaStep := 1 - math32.Pow(1-sa, stepLen*densityScale)
	w := (1 - accA) * alphaStep
	return accR + w*sr, accG + w*sg, accB + w*sb, accA + w
}

// marchPixel reconstructs the world ray through one pixel and composites
// front-to-back along it.
func (r *Renderer) marchPixel(x, y int, eye mgl32.Vec3, invVP mgl32.Mat4, params Params, mats *materialTable) color.RGBA {
	ndcX := 2*(float32(x)+0.5)/float32(r.width) - 1
	ndcY := 1 - 2*(float32(y)+0.5)/float32(r.height)
	far := unproject(invVP, mgl32.Vec3{ndcX, ndcY, 1})
	dir := far.Sub(eye)
	if l := dir.Len(); l > 0 {
		dir = dir.Mul(1 / l)
	}

	tmin, tmax, ok := intersectAABB(eye, dir, r.geom.WorldMin(), r.geom.WorldMax())
	if !ok {
		return color.RGBA{}
	}
	if tmin < 0 {
		tmin = 0
	}

	maxSteps := stepCaps[params.Quality]
	stepLen := (tmax - tmin) / float32(maxSteps)
	floor := r.geom.VoxelEdgeWorld() * stepFloorVoxels
	if stepLen < floor {
		stepLen = floor
	}

	dim := r.geom.ChunkDim
	table := r.mgr.Table()
	arena := r.mgr.Arena()

	var accR, accG, accB, accA float32
	for t := tmin + stepLen/2; t < tmax; {
		pos := eye.Add(dir.Mul(t))
		if params.ClipPlane.Clips(pos) {
			t += stepLen
			continue
		}
		voxel := r.geom.WorldToVoxel(pos)
		vx := int(math32.Floor(voxel.X()))
		vy := int(math32.Floor(voxel.Y()))
		vz := int(math32.Floor(voxel.Z()))
		if !insideRestrictions(vx, vy, vz, params) {
			t += stepLen
			continue
		}

		slot := table.Lookup(vx/dim, vy/dim, vz/dim)
		if slot == streaming.NotResident {
			// Missing chunk: advance to its exit boundary rather than
			// sampling it as empty, which would bias the accumulated
			// result. The step floor nudges the ray across the boundary
			// without dropping the neighbor chunk's first samples.
			t += r.chunkExitDistance(pos, dir) + floor
			continue
		}
		gray, label := arena.Sample(slot, vx%dim, vy%dim, vz%dim)

		sr, sg, sb, sa := classify(gray, label, params, mats)
		sa *= params.Opacity
		if sa > 0 {
			accR, accG, accB, accA = compositeStep(accR, accG, accB, accA,
				sr, sg, sb, sa, stepLen, params.DensityScale)
			if accA >= opacityCutoff {
				break
			}
		}
		t += stepLen
	}

	return color.RGBA{
		R: uint8(clamp32(accR, 0, 1) * 255),
		G: uint8(clamp32(accG, 0, 1) * 255),
		B: uint8(clamp32(accB, 0, 1) * 255),
		A: uint8(clamp32(accA, 0, 1) * 255),
	}
}

// insideRestrictions applies the slice-slab and cut-box limits in voxel
// space.
func insideRestrictions(vx, vy, vz int, params Params) bool {
	if params.Slice.Enabled {
		pos := [3]int{vx, vy, vz}
		axis := params.Slice.Axis
		if axis < 0 || axis > 2 || pos[axis] != params.Slice.Position {
			return false
		}
	}
	return params.Cut.Contains(vx, vy, vz)
}

// classify maps one sample to a color and opacity. Labelled voxels take
// their material's color when the material is visible and the grayscale
// value lies inside the material's window; unlabelled voxels inside the
// threshold window render as fixed low-opacity gray. Label 0 is the
// exterior and never classifies as a material.
func classify(gray, label byte, params Params, mats *materialTable) (cr, cg, cb, ca float32) {
	if params.ShowLabels && label != 0 {
		a := mats.rgba[int(label)*4+3]
		if a > 0 && gray >= mats.min[label] && gray <= mats.max[label] {
			return mats.rgba[int(label)*4], mats.rgba[int(label)*4+1], mats.rgba[int(label)*4+2], a
		}
	}
	if params.ShowGrayscale && gray >= params.ThresholdMin && gray <= params.ThresholdMax {
		g := float32(gray) / 255
		g = clamp32((g-0.5)*params.Contrast+0.5+params.Brightness, 0, 1)
		return g, g, g, params.GrayOpacity
	}
	return 0, 0, 0, 0
}
