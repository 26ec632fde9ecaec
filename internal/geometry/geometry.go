// Package geometry maps boxes between display, normalized, and original pixel space.
package geometry

import (
	"image"
	"math"

	"github.com/verte-zerg/boxlabel/internal/model"
)

// screenFraction is the share of the screen height an image may occupy.
const screenFraction = 0.8

// Display describes how the current image is shown.
type Display struct {
	OriginalWidth  int
	OriginalHeight int
	Width          int
	Height         int
	Scale          float64
}

// Normalized is a box in resolution-independent coordinates.
type Normalized struct {
	Label int
	CX    float64
	CY    float64
	W     float64
	H     float64
}

// Compute derives the display geometry for an image. Scaling is uniform, driven
// by the height only, and never enlarges. A non-positive screen height disables
// scaling.
func Compute(originalW, originalH, screenHeight int) Display {
	scale := 1.0
	if screenHeight > 0 && originalH > 0 {
		scale = math.Min(1, screenFraction*float64(screenHeight)/float64(originalH))
	}
	return Display{
		OriginalWidth:  originalW,
		OriginalHeight: originalH,
		Width:          round(float64(originalW) * scale),
		Height:         round(float64(originalH) * scale),
		Scale:          scale,
	}
}

// Bounds returns the display rectangle anchored at the origin.
func (d Display) Bounds() image.Rectangle {
	return image.Rect(0, 0, d.Width, d.Height)
}

// Scaled reports whether the display is smaller than the original.
func (d Display) Scaled() bool {
	return d.Width != d.OriginalWidth || d.Height != d.OriginalHeight
}

// ToNormalized converts a display-space box into center/size fractions.
func ToNormalized(box model.Box, d Display) Normalized {
	if d.Width <= 0 || d.Height <= 0 {
		return Normalized{Label: box.Label}
	}
	r := box.Rect
	w, h := float64(d.Width), float64(d.Height)
	return Normalized{
		Label: box.Label,
		CX:    float64(r.Min.X+r.Max.X) / 2 / w,
		CY:    float64(r.Min.Y+r.Max.Y) / 2 / h,
		W:     float64(r.Max.X-r.Min.X) / w,
		H:     float64(r.Max.Y-r.Min.Y) / h,
	}
}

// ToOriginalPixels converts a normalized box into an absolute rectangle for an
// image of the given size. The result is not clamped to the image.
func ToOriginalPixels(n Normalized, originalW, originalH int) image.Rectangle {
	fw, fh := float64(originalW), float64(originalH)
	w := round(n.W * fw)
	h := round(n.H * fh)
	x := round(n.CX*fw - float64(w)/2)
	y := round(n.CY*fh - float64(h)/2)
	return image.Rect(x, y, x+w, y+h)
}

// round rounds half to even.
func round(v float64) int {
	return int(math.RoundToEven(v))
}
