package volume

import (
	"fmt"
)

// FlatVolume stores the whole volume as a single dense slice-major byte
// array (x fastest, then y, then z). This is the layout raw CT exports
// arrive in, so it doubles as the loading backend.
type FlatVolume struct {
	width, height, depth int
	chunkDim             int
	gray                 []byte
	label                []byte
}

// NewFlatVolume wraps dense slice-major grayscale data. The data slice is
// retained, not copied; it must hold exactly width*height*depth bytes.
func NewFlatVolume(gray []byte, width, height, depth, chunkDim int) (*FlatVolume, error) {
	if err := validateDims(width, height, depth, chunkDim); err != nil {
		return nil, err
	}
	if len(gray) != width*height*depth {
		return nil, fmt.Errorf("grayscale data length %d does not match %dx%dx%d volume",
			len(gray), width, height, depth)
	}
	return &FlatVolume{
		width:    width,
		height:   height,
		depth:    depth,
		chunkDim: chunkDim,
		gray:     gray,
	}, nil
}

// AttachLabels attaches a label volume of the same dimensions.
func (v *FlatVolume) AttachLabels(label []byte) error {
	if len(label) != v.width*v.height*v.depth {
		return fmt.Errorf("label data length %d does not match %dx%dx%d volume",
			len(label), v.width, v.height, v.depth)
	}
	v.label = label
	return nil
}

// Width returns the volume width in voxels.
func (v *FlatVolume) Width() int { return v.width }

// Height returns the volume height in voxels.
func (v *FlatVolume) Height() int { return v.height }

// Depth returns the volume depth in voxels.
func (v *FlatVolume) Depth() int { return v.depth }

// ChunkDim returns the chunk side length.
func (v *FlatVolume) ChunkDim() int { return v.chunkDim }

// ChunkCountX returns the number of chunks along X.
func (v *FlatVolume) ChunkCountX() int { return ChunkCount(v.width, v.chunkDim) }

// ChunkCountY returns the number of chunks along Y.
func (v *FlatVolume) ChunkCountY() int { return ChunkCount(v.height, v.chunkDim) }

// ChunkCountZ returns the number of chunks along Z.
func (v *FlatVolume) ChunkCountZ() int { return ChunkCount(v.depth, v.chunkDim) }

// HasLabels reports whether a label volume is attached.
func (v *FlatVolume) HasLabels() bool { return v.label != nil }

func (v *FlatVolume) inBounds(x, y, z int) bool {
	return x >= 0 && x < v.width && y >= 0 && y < v.height && z >= 0 && z < v.depth
}

// VoxelAt returns the grayscale value at (x,y,z), 0 outside the volume.
func (v *FlatVolume) VoxelAt(x, y, z int) byte {
	if !v.inBounds(x, y, z) {
		return 0
	}
	return v.gray[(z*v.height+y)*v.width+x]
}

// LabelAt returns the label value at (x,y,z), 0 outside the volume or when
// no labels are attached.
func (v *FlatVolume) LabelAt(x, y, z int) byte {
	if v.label == nil || !v.inBounds(x, y, z) {
		return 0
	}
	return v.label[(z*v.height+y)*v.width+x]
}

// ReadSlice returns a copy of the XY grayscale slice at depth z.
func (v *FlatVolume) ReadSlice(z int) ([]byte, error) {
	if z < 0 || z >= v.depth {
		return nil, fmt.Errorf("slice position %d outside depth %d", z, v.depth)
	}
	out := make([]byte, v.width*v.height)
	copy(out, v.gray[z*v.width*v.height:])
	return out, nil
}

// ReadChunk copies the chunk at (cx,cy,cz) into gray and, when labels are
// attached and label is non-nil, into label. Boundary chunks are read
// pitched; voxels beyond the volume extent are zero-filled.
func (v *FlatVolume) ReadChunk(cx, cy, cz int, gray, label []byte) error {
	countX, countY, countZ := v.ChunkCountX(), v.ChunkCountY(), v.ChunkCountZ()
	if err := validateChunkCoord(cx, cy, cz, countX, countY, countZ); err != nil {
		return err
	}
	dim := v.chunkDim
	if len(gray) < dim*dim*dim {
		return fmt.Errorf("chunk buffer too small: %d < %d", len(gray), dim*dim*dim)
	}
	readPitched(v.gray, gray, cx, cy, cz, dim, v.width, v.height, v.depth)
	if label != nil && v.label != nil {
		if len(label) < dim*dim*dim {
			return fmt.Errorf("label chunk buffer too small: %d < %d", len(label), dim*dim*dim)
		}
		readPitched(v.label, label, cx, cy, cz, dim, v.width, v.height, v.depth)
	}
	return nil
}

// readPitched copies one chunk worth of voxels from a dense slice-major
// source into a depth-slice-major chunk buffer, zero-filling the part of a
// boundary chunk that lies beyond the volume.
func readPitched(src, dst []byte, cx, cy, cz, dim, width, height, depth int) {
	x0, y0, z0 := cx*dim, cy*dim, cz*dim
	spanX := dim
	if x0+spanX > width {
		spanX = width - x0
	}
	for lz := 0; lz < dim; lz++ {
		z := z0 + lz
		for ly := 0; ly < dim; ly++ {
			y := y0 + ly
			row := dst[LocalIndex(0, ly, lz, dim) : LocalIndex(0, ly, lz, dim)+dim]
			if z >= depth || y >= height || spanX <= 0 {
				for i := range row {
					row[i] = 0
				}
				continue
			}
			srcOff := (z*height+y)*width + x0
			copy(row[:spanX], src[srcOff:srcOff+spanX])
			for i := spanX; i < dim; i++ {
				row[i] = 0
			}
		}
	}
}
