// Package volume provides read access to grayscale and label voxel data
// organized into fixed-size cubic chunks along a regular 3D grid. Two
// storage backends implement the same Accessor interface: a dense
// slice-major layout and a chunk-major layout shaped like out-of-core
// storage. Backend selection is a runtime decision, not a type hierarchy.
package volume

import (
	"fmt"
)

// Accessor gives voxel-level, slice-level and chunk-level read access to a
// grayscale volume and an optional label volume of the same dimensions.
//
// All implementations must be safe for concurrent reads. Coordinates
// outside the volume are reported as errors (chunk/slice reads) or clamped
// to zero (voxel reads); no read may touch out-of-range memory.
type Accessor interface {
	// Width, Height and Depth are the volume dimensions in voxels.
	Width() int
	Height() int
	Depth() int

	// VoxelAt returns the grayscale value at (x,y,z), or 0 when the
	// coordinate is outside the volume.
	VoxelAt(x, y, z int) byte

	// LabelAt returns the label value at (x,y,z), or 0 when the coordinate
	// is outside the volume or no label volume is attached.
	LabelAt(x, y, z int) byte

	// HasLabels reports whether a label volume is attached.
	HasLabels() bool

	// ReadSlice returns a copy of the XY slice at depth z in row-major
	// order.
	ReadSlice(z int) ([]byte, error)

	// ChunkDim is the side length of the cubic chunks.
	ChunkDim() int

	// ChunkCountX, ChunkCountY and ChunkCountZ are the chunk grid
	// dimensions (ceil of volume extent over ChunkDim).
	ChunkCountX() int
	ChunkCountY() int
	ChunkCountZ() int

	// ReadChunk fills gray (and label, when non-nil and labels are
	// attached) with the chunk at chunk coordinate (cx,cy,cz) in
	// depth-slice-major local layout. Both buffers must have room for
	// ChunkDim³ bytes. Boundary chunks are read pitched: voxels beyond the
	// volume extent are zero-filled.
	ReadChunk(cx, cy, cz int, gray, label []byte) error
}

// ChunkCount returns ceil(size/chunkDim), the number of chunks needed to
// cover size voxels.
func ChunkCount(size, chunkDim int) int {
	if size <= 0 || chunkDim <= 0 {
		return 0
	}
	return (size + chunkDim - 1) / chunkDim
}

// ChunkIndex linearizes a chunk coordinate. Every valid index lies in
// [0, countX*countY*countZ).
func ChunkIndex(cx, cy, cz, countX, countY int) int {
	return cz*countX*countY + cy*countX + cx
}

// ChunkCoord is the inverse of ChunkIndex.
func ChunkCoord(index, countX, countY int) (cx, cy, cz int) {
	cx = index % countX
	cy = (index / countX) % countY
	cz = index / (countX * countY)
	return
}

// LocalIndex linearizes a within-chunk voxel coordinate in
// depth-slice-major order: one chunkDim×chunkDim slice per local z.
func LocalIndex(lx, ly, lz, chunkDim int) int {
	return lz*chunkDim*chunkDim + ly*chunkDim + lx
}

func validateDims(width, height, depth, chunkDim int) error {
	if width <= 0 || height <= 0 || depth <= 0 {
		return fmt.Errorf("invalid volume dimensions: %dx%dx%d", width, height, depth)
	}
	if chunkDim <= 0 {
		return fmt.Errorf("invalid chunk dimension: %d", chunkDim)
	}
	return nil
}

func validateChunkCoord(cx, cy, cz, countX, countY, countZ int) error {
	if cx < 0 || cx >= countX || cy < 0 || cy >= countY || cz < 0 || cz >= countZ {
		return fmt.Errorf("chunk coordinate (%d,%d,%d) outside grid %dx%dx%d",
			cx, cy, cz, countX, countY, countZ)
	}
	return nil
}
