// Package imgutil transforms images into printable raster matrices.
package imgutil

import (
	"fmt"
	"image"
	"image/color"

	"janouch.name/qlusb/ql"
)

// Scale is a scaling image.Image wrapper.
type Scale struct {
	Image image.Image
	Scale int
}

// ColorModel implements image.Image.
func (s *Scale) ColorModel() color.Model {
	return s.Image.ColorModel()
}

// Bounds implements image.Image.
func (s *Scale) Bounds() image.Rectangle {
	r := s.Image.Bounds()
	return image.Rect(r.Min.X*s.Scale, r.Min.Y*s.Scale,
		r.Max.X*s.Scale, r.Max.Y*s.Scale)
}

// At implements image.Image.
func (s *Scale) At(x, y int) color.Color {
	if x < 0 {
		x = x - s.Scale + 1
	}
	if y < 0 {
		y = y - s.Scale + 1
	}
	return s.Image.At(x/s.Scale, y/s.Scale)
}

// LeftRotate is a 90 degree rotating image.Image wrapper.
type LeftRotate struct {
	Image image.Image
}

// ColorModel implements image.Image.
func (lr *LeftRotate) ColorModel() color.Model {
	return lr.Image.ColorModel()
}

// Bounds implements image.Image.
func (lr *LeftRotate) Bounds() image.Rectangle {
	r := lr.Image.Bounds()
	// Min is inclusive, Max is exclusive.
	return image.Rect(r.Min.Y, -(r.Max.X - 1), r.Max.Y, -(r.Min.X - 1))
}

// At implements image.Image.
func (lr *LeftRotate) At(x, y int) color.Color {
	return lr.Image.At(-y, x)
}

// -----------------------------------------------------------------------------

// dark is the black-or-white decision for single-color printing.
func dark(c color.Color) bool {
	r, g, b, a := c.RGBA()
	if a == 0 {
		return false
	}
	lightness := float64(55*r+182*g+18*b) / float64(0xffff*(55+182+18))
	return lightness <= 0.5
}

// red classifies a pixel as belonging to the red plane of two-color
// media. Dark reds count as black.
func red(c color.Color) bool {
	r, g, b, a := c.RGBA()
	return a != 0 && r > 0x7fff && r > 2*g && r > 2*b
}

func rasterize(img image.Image, media ql.Media, model ql.Model,
	classify func(color.Color) bool) (ql.Matrix, error) {
	spec, ok := media.Spec()
	if !ok {
		return nil, fmt.Errorf("unsupported media %s", media)
	}

	bounds := img.Bounds()
	if dx := bounds.Dx(); dx > spec.PrintWidthDots {
		return nil, fmt.Errorf("image is %d dots wide, %s fits %d",
			dx, media, spec.PrintWidthDots)
	}
	if spec.LengthDots != 0 && bounds.Dy() > spec.LengthDots {
		return nil, fmt.Errorf("image is %d dots high, %s fits %d",
			bounds.Dy(), media, spec.LengthDots)
	}

	rowBytes := model.RowBytes()
	matrix := make(ql.Matrix, 0, bounds.Dy())
	pixels := make([]bool, rowBytes*8)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for i := range pixels {
			pixels[i] = false
		}

		// The print head is addressed right to left.
		off := spec.LeftOffsetDots
		for x := bounds.Max.X - 1; x >= bounds.Min.X; x-- {
			if off >= len(pixels) {
				break
			}
			pixels[off] = classify(img.At(x, y))
			off++
		}

		row := make([]byte, rowBytes)
		for i := 0; i < rowBytes; i++ {
			var b byte
			for j := 0; j < 8; j++ {
				b <<= 1
				if pixels[i*8+j] {
					b |= 1
				}
			}
			row[i] = b
		}
		matrix = append(matrix, row)
	}
	return matrix, nil
}

// Rasterize converts an image to the raster format of the given model,
// positioned at the media's left offset. Pixels darker than the
// halfway point print black.
func Rasterize(img image.Image, media ql.Media, model ql.Model) (
	ql.Matrix, error) {
	return rasterize(img, media, model, dark)
}

// SplitTwoColor converts an image to the black and red planes of
// two-color printing. Reddish pixels go to the red plane, any other
// dark pixel to the black one.
func SplitTwoColor(img image.Image, media ql.Media, model ql.Model) (
	ql.TwoColorMatrix, error) {
	black, err := rasterize(img, media, model,
		func(c color.Color) bool { return dark(c) && !red(c) })
	if err != nil {
		return ql.TwoColorMatrix{}, err
	}
	redPlane, err := rasterize(img, media, model, red)
	if err != nil {
		return ql.TwoColorMatrix{}, err
	}
	return ql.NewTwoColorMatrix(black, redPlane)
}
