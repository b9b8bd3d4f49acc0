package ratio

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
)

// scaleTolerance is the maximum per-dimension deviation, in pixels, allowed
// between the generated canvas and the padded canvas scaled uniformly.
const scaleTolerance = 1

// RatioMismatchError is returned when a derived asset's canvas no longer
// matches the padded canvas ratio, meaning the backend did not preserve
// geometry. Both ratios are carried for diagnosis.
type RatioMismatchError struct {
	ExpectedW, ExpectedH int
	ActualW, ActualH     int
}

func (e *RatioMismatchError) Error() string {
	return fmt.Sprintf("ratio: canvas ratio mismatch: expected %d:%d, got %d:%d",
		e.ExpectedW, e.ExpectedH, e.ActualW, e.ActualH)
}

// Resolution is an absolute pixel size.
type Resolution struct {
	Width  int
	Height int
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// CropSpec is a pad geometry scaled to a derived asset's resolution, ready to
// be applied as a crop.
type CropSpec struct {
	Geometry Geometry
	// Canvas is the derived asset's resolution the margins apply to.
	Canvas Resolution
	// Output is the expected post-crop resolution.
	Output Resolution
}

// Rect returns the crop rectangle within the derived canvas.
func (c CropSpec) Rect() image.Rectangle {
	return c.Geometry.CropRect(c.Canvas.Width, c.Canvas.Height)
}

// ScaleGeometry scales a pad geometry recorded against source onto a derived
// asset of resolution generated. The scale factor is taken from the widths
// and must agree with the height scale within scaleTolerance once applied,
// otherwise a RatioMismatchError is returned.
//
// After per-margin rounding, the far edges (right, bottom) are clamped so the
// crop output lands exactly on the scaled original dimensions.
func ScaleGeometry(g Geometry, source, generated Resolution) (CropSpec, error) {
	if source.Width <= 0 || source.Height <= 0 || generated.Width <= 0 || generated.Height <= 0 {
		return CropSpec{}, fmt.Errorf("ratio: non-positive resolution (source %s, generated %s)", source, generated)
	}

	s := float64(generated.Width) / float64(source.Width)
	if diff := math.Abs(float64(source.Height)*s - float64(generated.Height)); diff > scaleTolerance {
		return CropSpec{}, &RatioMismatchError{
			ExpectedW: source.Width, ExpectedH: source.Height,
			ActualW: generated.Width, ActualH: generated.Height,
		}
	}

	scaled := Geometry{
		Top:         scalePx(g.Top, s),
		Bottom:      scalePx(g.Bottom, s),
		Left:        scalePx(g.Left, s),
		Right:       scalePx(g.Right, s),
		Orientation: g.Orientation,
	}

	// Expected output is the original (unpadded) size under the same scale.
	origW := source.Width - g.Left - g.Right
	origH := source.Height - g.Top - g.Bottom
	wantW := scalePx(origW, s)
	wantH := scalePx(origH, s)

	// Rounding each margin independently can drift by a pixel; absorb the
	// difference on the far edge rather than cropping asymmetrically.
	scaled.Right += (generated.Width - scaled.Left - scaled.Right) - wantW
	scaled.Bottom += (generated.Height - scaled.Top - scaled.Bottom) - wantH
	if scaled.Right < 0 || scaled.Bottom < 0 {
		return CropSpec{}, &RatioMismatchError{
			ExpectedW: source.Width, ExpectedH: source.Height,
			ActualW: generated.Width, ActualH: generated.Height,
		}
	}

	return CropSpec{
		Geometry: scaled,
		Canvas:   generated,
		Output:   Resolution{Width: wantW, Height: wantH},
	}, nil
}

// CropImage removes the margins described by spec from img. The image must be
// at the spec's canvas resolution.
func CropImage(img image.Image, spec CropSpec) (*image.NRGBA, error) {
	bounds := img.Bounds()
	if bounds.Dx() != spec.Canvas.Width || bounds.Dy() != spec.Canvas.Height {
		return nil, &RatioMismatchError{
			ExpectedW: spec.Canvas.Width, ExpectedH: spec.Canvas.Height,
			ActualW: bounds.Dx(), ActualH: bounds.Dy(),
		}
	}
	return imaging.Crop(img, spec.Rect()), nil
}

func scalePx(v int, s float64) int {
	return int(math.Round(float64(v) * s))
}
