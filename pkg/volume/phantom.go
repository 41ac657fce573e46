package volume

import (
	"math"
)

// Phantom generates a deterministic synthetic CT phantom: a soft-tissue
// sphere containing a denser core and three labelled inclusions. It is used
// by the CLI demo when no input dataset is given and by tests that need a
// volume with known structure.
//
// Grayscale values: background 0, outer shell ~80, inner core ~180, with a
// radial gradient so threshold windows select concentric regions. Labels:
// 0 exterior, 1 core, 2/3/4 the three inclusions.
func Phantom(size, chunkDim int) (*FlatVolume, error) {
	gray := make([]byte, size*size*size)
	label := make([]byte, size*size*size)

	c := float64(size-1) / 2
	outerR := c * 0.9
	coreR := c * 0.45

	type inclusion struct {
		x, y, z, r float64
		id         byte
	}
	inclusions := []inclusion{
		{c + outerR*0.5, c, c, c * 0.12, 2},
		{c, c + outerR*0.5, c, c * 0.10, 3},
		{c, c, c + outerR*0.5, c * 0.08, 4},
	}

	i := 0
	for z := 0; z < size; z++ {
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				dx, dy, dz := float64(x)-c, float64(y)-c, float64(z)-c
				r := math.Sqrt(dx*dx + dy*dy + dz*dz)
				switch {
				case r <= coreR:
					gray[i] = byte(180 - 40*r/coreR)
					label[i] = 1
				case r <= outerR:
					t := (r - coreR) / (outerR - coreR)
					gray[i] = byte(120 - 40*t)
				}
				for _, inc := range inclusions {
					ix, iy, iz := float64(x)-inc.x, float64(y)-inc.y, float64(z)-inc.z
					if ix*ix+iy*iy+iz*iz <= inc.r*inc.r {
						gray[i] = 220
						label[i] = inc.id
					}
				}
				i++
			}
		}
	}

	v, err := NewFlatVolume(gray, size, size, size, chunkDim)
	if err != nil {
		return nil, err
	}
	if err := v.AttachLabels(label); err != nil {
		return nil, err
	}
	return v, nil
}
