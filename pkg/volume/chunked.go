package volume

import (
	"fmt"
)

// ChunkedVolume stores voxel data chunk-major: each chunk is a contiguous
// depth-slice-major block, the shape chunked on-disk stores and the GPU
// cache use. Chunk reads are a single copy with no pitch arithmetic.
type ChunkedVolume struct {
	width, height, depth int
	chunkDim             int
	countX, countY       int
	countZ               int
	gray                 [][]byte
	label                [][]byte
}

// NewChunkedVolume re-packs dense slice-major grayscale data into
// chunk-major storage.
func NewChunkedVolume(gray []byte, width, height, depth, chunkDim int) (*ChunkedVolume, error) {
	if err := validateDims(width, height, depth, chunkDim); err != nil {
		return nil, err
	}
	if len(gray) != width*height*depth {
		return nil, fmt.Errorf("grayscale data length %d does not match %dx%dx%d volume",
			len(gray), width, height, depth)
	}
	v := &ChunkedVolume{
		width:    width,
		height:   height,
		depth:    depth,
		chunkDim: chunkDim,
		countX:   ChunkCount(width, chunkDim),
		countY:   ChunkCount(height, chunkDim),
		countZ:   ChunkCount(depth, chunkDim),
	}
	v.gray = v.pack(gray)
	return v, nil
}

// AttachLabels re-packs a dense label volume of the same dimensions into
// chunk-major storage.
func (v *ChunkedVolume) AttachLabels(label []byte) error {
	if len(label) != v.width*v.height*v.depth {
		return fmt.Errorf("label data length %d does not match %dx%dx%d volume",
			len(label), v.width, v.height, v.depth)
	}
	v.label = v.pack(label)
	return nil
}

func (v *ChunkedVolume) pack(dense []byte) [][]byte {
	dim := v.chunkDim
	chunks := make([][]byte, v.countX*v.countY*v.countZ)
	for cz := 0; cz < v.countZ; cz++ {
		for cy := 0; cy < v.countY; cy++ {
			for cx := 0; cx < v.countX; cx++ {
				buf := make([]byte, dim*dim*dim)
				readPitched(dense, buf, cx, cy, cz, dim, v.width, v.height, v.depth)
				chunks[ChunkIndex(cx, cy, cz, v.countX, v.countY)] = buf
			}
		}
	}
	return chunks
}

// Width returns the volume width in voxels.
func (v *ChunkedVolume) Width() int { return v.width }

// Height returns the volume height in voxels.
func (v *ChunkedVolume) Height() int { return v.height }

// Depth returns the volume depth in voxels.
func (v *ChunkedVolume) Depth() int { return v.depth }

// ChunkDim returns the chunk side length.
func (v *ChunkedVolume) ChunkDim() int { return v.chunkDim }

// ChunkCountX returns the number of chunks along X.
func (v *ChunkedVolume) ChunkCountX() int { return v.countX }

// ChunkCountY returns the number of chunks along Y.
func (v *ChunkedVolume) ChunkCountY() int { return v.countY }

// ChunkCountZ returns the number of chunks along Z.
func (v *ChunkedVolume) ChunkCountZ() int { return v.countZ }

// HasLabels reports whether a label volume is attached.
func (v *ChunkedVolume) HasLabels() bool { return v.label != nil }

func (v *ChunkedVolume) at(chunks [][]byte, x, y, z int) byte {
	if x < 0 || x >= v.width || y < 0 || y >= v.height || z < 0 || z >= v.depth {
		return 0
	}
	dim := v.chunkDim
	idx := ChunkIndex(x/dim, y/dim, z/dim, v.countX, v.countY)
	return chunks[idx][LocalIndex(x%dim, y%dim, z%dim, dim)]
}

// VoxelAt returns the grayscale value at (x,y,z), 0 outside the volume.
func (v *ChunkedVolume) VoxelAt(x, y, z int) byte {
	return v.at(v.gray, x, y, z)
}

// LabelAt returns the label value at (x,y,z), 0 outside the volume or when
// no labels are attached.
func (v *ChunkedVolume) LabelAt(x, y, z int) byte {
	if v.label == nil {
		return 0
	}
	return v.at(v.label, x, y, z)
}

// ReadSlice reassembles the XY grayscale slice at depth z from chunk
// storage.
func (v *ChunkedVolume) ReadSlice(z int) ([]byte, error) {
	if z < 0 || z >= v.depth {
		return nil, fmt.Errorf("slice position %d outside depth %d", z, v.depth)
	}
	dim := v.chunkDim
	out := make([]byte, v.width*v.height)
	cz, lz := z/dim, z%dim
	for cy := 0; cy < v.countY; cy++ {
		for cx := 0; cx < v.countX; cx++ {
			chunk := v.gray[ChunkIndex(cx, cy, cz, v.countX, v.countY)]
			for ly := 0; ly < dim; ly++ {
				y := cy*dim + ly
				if y >= v.height {
					break
				}
				spanX := dim
				if cx*dim+spanX > v.width {
					spanX = v.width - cx*dim
				}
				copy(out[y*v.width+cx*dim:y*v.width+cx*dim+spanX],
					chunk[LocalIndex(0, ly, lz, dim):])
			}
		}
	}
	return out, nil
}

// ReadChunk copies the chunk at (cx,cy,cz) into gray and, when labels are
// attached and label is non-nil, into label.
func (v *ChunkedVolume) ReadChunk(cx, cy, cz int, gray, label []byte) error {
	if err := validateChunkCoord(cx, cy, cz, v.countX, v.countY, v.countZ); err != nil {
		return err
	}
	dim := v.chunkDim
	if len(gray) < dim*dim*dim {
		return fmt.Errorf("chunk buffer too small: %d < %d", len(gray), dim*dim*dim)
	}
	idx := ChunkIndex(cx, cy, cz, v.countX, v.countY)
	copy(gray, v.gray[idx])
	if label != nil && v.label != nil {
		if len(label) < dim*dim*dim {
			return fmt.Errorf("label chunk buffer too small: %d < %d", len(label), dim*dim*dim)
		}
		copy(label, v.label[idx])
	}
	return nil
}
