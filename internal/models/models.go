package models

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Geometry describes the shape of a volume and its placement in world space.
// The volume is centered at the origin and scaled so that its largest axis
// spans [-1, 1], matching the unit render cube the camera orbits around.
type Geometry struct {
	// Width, Height, Depth are the volume dimensions in voxels
	Width, Height, Depth int

	// ChunkDim is the side length of the cubic chunks the volume is
	// partitioned into
	ChunkDim int

	// VoxelSize is the physical edge length of one voxel in mm
	VoxelSize float64
}

// ChunkCountX returns the number of chunks along the X axis.
func (g Geometry) ChunkCountX() int { return chunkCount(g.Width, g.ChunkDim) }

// ChunkCountY returns the number of chunks along the Y axis.
func (g Geometry) ChunkCountY() int { return chunkCount(g.Height, g.ChunkDim) }

// ChunkCountZ returns the number of chunks along the Z axis.
func (g Geometry) ChunkCountZ() int { return chunkCount(g.Depth, g.ChunkDim) }

// ChunkCount returns the total number of chunks in the volume.
func (g Geometry) ChunkCount() int {
	return g.ChunkCountX() * g.ChunkCountY() * g.ChunkCountZ()
}

func chunkCount(size, dim int) int {
	if size <= 0 || dim <= 0 {
		return 0
	}
	return (size + dim - 1) / dim
}

// worldScale is the scale factor from voxel units to world units.
func (g Geometry) worldScale() float32 {
	maxDim := g.Width
	if g.Height > maxDim {
		maxDim = g.Height
	}
	if g.Depth > maxDim {
		maxDim = g.Depth
	}
	if maxDim == 0 {
		return 1
	}
	return 2.0 / float32(maxDim)
}

// WorldMin returns the minimum corner of the volume bounding box in world
// space.
func (g Geometry) WorldMin() mgl32.Vec3 {
	s := g.worldScale()
	return mgl32.Vec3{
		-float32(g.Width) * s / 2,
		-float32(g.Height) * s / 2,
		-float32(g.Depth) * s / 2,
	}
}

// WorldMax returns the maximum corner of the volume bounding box in world
// space.
func (g Geometry) WorldMax() mgl32.Vec3 {
	return g.WorldMin().Mul(-1)
}

// VoxelToWorld converts a voxel-space position (fractional voxel
// coordinates) to world space.
func (g Geometry) VoxelToWorld(v mgl32.Vec3) mgl32.Vec3 {
	s := g.worldScale()
	return g.WorldMin().Add(v.Mul(s))
}

// WorldToVoxel converts a world-space position to fractional voxel
// coordinates.
func (g Geometry) WorldToVoxel(w mgl32.Vec3) mgl32.Vec3 {
	s := g.worldScale()
	d := w.Sub(g.WorldMin())
	return mgl32.Vec3{d.X() / s, d.Y() / s, d.Z() / s}
}

// VoxelEdgeWorld returns the world-space length of one voxel edge.
func (g Geometry) VoxelEdgeWorld() float32 { return g.worldScale() }

// ChunkEdgeWorld returns the world-space length of one chunk edge.
func (g Geometry) ChunkEdgeWorld() float32 {
	return g.worldScale() * float32(g.ChunkDim)
}

// ClipPlane is a world-space clipping plane nx*x + ny*y + nz*z + d >= 0.
// Samples on the negative side are discarded when the plane is enabled.
type ClipPlane struct {
	Nx, Ny, Nz, D float32
	Enabled       bool
}

// Clips reports whether the world-space point p lies on the discarded side
// of the plane.
func (c ClipPlane) Clips(p mgl32.Vec3) bool {
	if !c.Enabled {
		return false
	}
	return c.Nx*p.X()+c.Ny*p.Y()+c.Nz*p.Z()+c.D < 0
}

// SliceInfo restricts rendering to a single slab of voxels along one axis.
// Axis is 0 for X, 1 for Y, 2 for Z.
type SliceInfo struct {
	Axis     int
	Position int
	Enabled  bool
}

// CutInfo restricts rendering to an axis-aligned voxel sub-box.
type CutInfo struct {
	MinX, MinY, MinZ int
	MaxX, MaxY, MaxZ int
	Enabled          bool
}

// Contains reports whether the voxel coordinate is inside the cut box.
func (c CutInfo) Contains(x, y, z int) bool {
	if !c.Enabled {
		return true
	}
	return x >= c.MinX && x <= c.MaxX &&
		y >= c.MinY && y <= c.MaxY &&
		z >= c.MinZ && z <= c.MaxZ
}
