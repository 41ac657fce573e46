// Package visualization provides the 2D output surfaces of the viewer:
// a PNG frame sink for rendered frames and axis-aligned slice extraction
// from a volume accessor, the viewer's 2D slice mode.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"

	"ctvolume/pkg/volume"
)

// FrameSink writes presented frames as numbered PNG files into a
// directory. It implements render.FrameSink.
type FrameSink struct {
	dir        string
	prefix     string
	frame      int
	background color.RGBA
}

// NewFrameSink creates the output directory and returns a sink writing
// files named <prefix>_0000.png, <prefix>_0001.png, ...
func NewFrameSink(dir, prefix string) (*FrameSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating frame directory: %w", err)
	}
	return &FrameSink{dir: dir, prefix: prefix}, nil
}

// SetBackground sets the clear color frames are composited over. A zero
// alpha keeps frames transparent.
func (s *FrameSink) SetBackground(c color.RGBA) {
	s.background = c
}

// Present writes one frame and advances the frame counter.
func (s *FrameSink) Present(frame *image.RGBA) error {
	name := filepath.Join(s.dir, fmt.Sprintf("%s_%04d.png", s.prefix, s.frame))
	file, err := os.Create(name)
	if err != nil {
		return err
	}
	defer file.Close()

	var out image.Image = frame
	if s.background.A != 0 {
		composed := image.NewRGBA(frame.Bounds())
		draw.Draw(composed, composed.Bounds(), image.NewUniform(s.background), image.Point{}, draw.Src)
		draw.Draw(composed, composed.Bounds(), frame, frame.Bounds().Min, draw.Over)
		out = composed
	}

	if err := png.Encode(file, out); err != nil {
		return fmt.Errorf("encoding frame %d: %w", s.frame, err)
	}
	s.frame++
	return nil
}

// FrameCount returns the number of frames written so far.
func (s *FrameSink) FrameCount() int { return s.frame }

// ExtractSlice extracts a 2D grayscale slice from the volume along the
// specified axis ("x", "y" or "z").
func ExtractSlice(acc volume.Accessor, axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.Gray

	switch axis {
	case "x", "X":
		if position >= acc.Width() {
			return nil, fmt.Errorf("position %d exceeds width %d", position, acc.Width())
		}
		img = image.NewGray(image.Rect(0, 0, acc.Depth(), acc.Height()))
		for y := 0; y < acc.Height(); y++ {
			for z := 0; z < acc.Depth(); z++ {
				img.SetGray(z, y, color.Gray{Y: acc.VoxelAt(position, y, z)})
			}
		}

	case "y", "Y":
		if position >= acc.Height() {
			return nil, fmt.Errorf("position %d exceeds height %d", position, acc.Height())
		}
		img = image.NewGray(image.Rect(0, 0, acc.Width(), acc.Depth()))
		for z := 0; z < acc.Depth(); z++ {
			for x := 0; x < acc.Width(); x++ {
				img.SetGray(x, z, color.Gray{Y: acc.VoxelAt(x, position, z)})
			}
		}

	case "z", "Z":
		if position >= acc.Depth() {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, acc.Depth())
		}
		img = image.NewGray(image.Rect(0, 0, acc.Width(), acc.Height()))
		slice, err := acc.ReadSlice(position)
		if err != nil {
			return nil, err
		}
		copy(img.Pix, slice)

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// ExtractSliceOverlay extracts a slice like ExtractSlice and tints
// labelled voxels with their color from the palette, the 2D counterpart of
// the renderer's label layer. Labels missing from the palette render as
// plain grayscale.
func ExtractSliceOverlay(acc volume.Accessor, axis string, position int, palette map[byte]color.RGBA) (*image.RGBA, error) {
	base, err := ExtractSlice(acc, axis, position)
	if err != nil {
		return nil, err
	}

	labelAt := func(px, py int) byte {
		switch axis {
		case "x", "X":
			return acc.LabelAt(position, py, px)
		case "y", "Y":
			return acc.LabelAt(px, position, py)
		default:
			return acc.LabelAt(px, py, position)
		}
	}

	b := base.Bounds()
	out := image.NewRGBA(b)
	gray := base.(*image.Gray)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g := gray.GrayAt(x, y).Y
			if c, ok := palette[labelAt(x, y)]; ok {
				// Blend the label color over the grayscale by its alpha
				a := uint32(c.A)
				out.SetRGBA(x, y, color.RGBA{
					R: uint8((uint32(c.R)*a + uint32(g)*(255-a)) / 255),
					G: uint8((uint32(c.G)*a + uint32(g)*(255-a)) / 255),
					B: uint8((uint32(c.B)*a + uint32(g)*(255-a)) / 255),
					A: 255,
				})
				continue
			}
			out.SetRGBA(x, y, color.RGBA{R: g, G: g, B: g, A: 255})
		}
	}
	return out, nil
}

// SaveSlice saves an extracted slice as a PNG image.
func SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveSliceSequence extracts and saves every slice along the specified
// axis into outputDir.
func SaveSliceSequence(acc volume.Accessor, axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = acc.Width()
	case "y", "Y":
		maxPos = acc.Height()
	case "z", "Z":
		maxPos = acc.Depth()
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := ExtractSlice(acc, axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
