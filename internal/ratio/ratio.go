// Package ratio implements the aspect-ratio transform pair used by the
// generation pipeline: padding an image onto a wider or taller canvas to
// reach a target ratio, and later cropping the padded margins back out of a
// derived asset of possibly different resolution.
//
// Padding uses a hard-edged magenta sentinel fill so the padded regions stay
// unambiguous against real photo content. The exact pad geometry is recorded
// at pad time and never re-derived by pixel inspection.
package ratio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	// Register decoders for the formats accepted on upload.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// ErrInvalidImage is returned when the input cannot be decoded or has a zero
// dimension.
var ErrInvalidImage = errors.New("ratio: invalid image")

// Sentinel is the fill color for padded regions. Magenta is chosen because it
// rarely occurs in photographic content, which makes the bars trivially
// identifiable downstream.
var Sentinel = color.NRGBA{R: 255, G: 0, B: 255, A: 255}

// Ratio is an aspect ratio held as an integer width:height pair to avoid
// float drift.
type Ratio struct {
	W int
	H int
}

// Widescreen is the 16:9 canvas ratio expected by the generation backend.
var Widescreen = Ratio{W: 16, H: 9}

// Value returns the ratio as a float for display purposes only; all geometry
// decisions use integer arithmetic.
func (r Ratio) Value() float64 {
	return float64(r.W) / float64(r.H)
}

func (r Ratio) String() string {
	return fmt.Sprintf("%d:%d", r.W, r.H)
}

// Orientation describes which kind of bars were added during padding.
type Orientation string

const (
	// OrientationNone means the image already matched the target ratio.
	OrientationNone Orientation = "none"
	// OrientationLetterbox means horizontal bars were added top and bottom.
	OrientationLetterbox Orientation = "letterbox"
	// OrientationPillarbox means vertical bars were added left and right.
	OrientationPillarbox Orientation = "pillarbox"
)

// Geometry records the margins added by PadToRatio, in pixels relative to the
// padded canvas.
type Geometry struct {
	Top         int         `json:"top"`
	Bottom      int         `json:"bottom"`
	Left        int         `json:"left"`
	Right       int         `json:"right"`
	Orientation Orientation `json:"orientation"`
}

// IsZero reports whether no padding was applied.
func (g Geometry) IsZero() bool {
	return g.Top == 0 && g.Bottom == 0 && g.Left == 0 && g.Right == 0
}

// CropRect returns the rectangle that removes the recorded margins from a
// canvas of the given size.
func (g Geometry) CropRect(canvasW, canvasH int) image.Rectangle {
	return image.Rect(g.Left, g.Top, canvasW-g.Right, canvasH-g.Bottom)
}

// PaddedImage is the result of PadToRatio: the padded canvas plus the exact
// geometry needed to undo it.
type PaddedImage struct {
	Image        *image.NRGBA
	Geometry     Geometry
	CanvasWidth  int
	CanvasHeight int
	SourceWidth  int
	SourceHeight int
}

// Decode decodes image bytes, returning ErrInvalidImage for empty or
// undecodable input. The detected format name ("png", "jpeg", ...) is
// returned alongside the image.
func Decode(data []byte) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", fmt.Errorf("%w: empty input", ErrInvalidImage)
	}
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return img, format, nil
}

// PadToRatio pads img onto the smallest canvas that satisfies the target
// ratio. A relatively tall image gets pillarbox bars, a relatively wide image
// gets letterbox bars, and an image already at the target ratio is returned
// on an identical canvas with zero margins.
//
// Margins are split evenly, with the extra pixel of an odd split going to the
// far edge (right or bottom).
func PadToRatio(img image.Image, target Ratio) (*PaddedImage, error) {
	if target.W <= 0 || target.H <= 0 {
		return nil, fmt.Errorf("ratio: non-positive target ratio %s", target)
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidImage, w, h)
	}

	canvasW, canvasH := w, h
	geom := Geometry{Orientation: OrientationNone}

	// Integer cross-multiplication compares w/h against target.W/target.H
	// without floats.
	switch cmp := w*target.H - h*target.W; {
	case cmp < 0:
		// Taller than target: grow width.
		canvasW = roundDiv(h*target.W, target.H)
		if canvasW > w {
			geom.Left = (canvasW - w) / 2
			geom.Right = canvasW - w - geom.Left
			geom.Orientation = OrientationPillarbox
		} else {
			canvasW = w
		}
	case cmp > 0:
		// Wider than target: grow height.
		canvasH = roundDiv(w*target.H, target.W)
		if canvasH > h {
			geom.Top = (canvasH - h) / 2
			geom.Bottom = canvasH - h - geom.Top
			geom.Orientation = OrientationLetterbox
		} else {
			canvasH = h
		}
	}

	canvas := imaging.New(canvasW, canvasH, Sentinel)
	canvas = imaging.Paste(canvas, img, image.Pt(geom.Left, geom.Top))

	return &PaddedImage{
		Image:        canvas,
		Geometry:     geom,
		CanvasWidth:  canvasW,
		CanvasHeight: canvasH,
		SourceWidth:  w,
		SourceHeight: h,
	}, nil
}

// roundDiv divides a by b rounding to the nearest integer.
func roundDiv(a, b int) int {
	return int(math.Round(float64(a) / float64(b)))
}
