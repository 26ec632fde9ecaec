package geometry

import (
	"image"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/boxlabel/internal/model"
)

func TestComputeKeepsSmallImages(t *testing.T) {
	d := Compute(640, 480, 1080)
	require.Equal(t, 1.0, d.Scale)
	require.Equal(t, 640, d.Width)
	require.Equal(t, 480, d.Height)
	require.False(t, d.Scaled())
}

func TestComputeDownscalesTallImages(t *testing.T) {
	d := Compute(3000, 2000, 1000)
	require.InDelta(t, 0.4, d.Scale, 1e-12)
	require.Equal(t, 1200, d.Width)
	require.Equal(t, 800, d.Height)
	require.Equal(t, 3000, d.OriginalWidth)
	require.Equal(t, 2000, d.OriginalHeight)
	require.True(t, d.Scaled())
}

func TestComputeUnknownScreen(t *testing.T) {
	d := Compute(5000, 4000, 0)
	require.Equal(t, 1.0, d.Scale)
	require.Equal(t, image.Rect(0, 0, 5000, 4000), d.Bounds())
}

func TestToNormalized(t *testing.T) {
	d := Compute(200, 100, 0)
	n := ToNormalized(model.NewLabeled(image.Rect(50, 25, 150, 75), 2), d)
	require.Equal(t, 2, n.Label)
	require.InDelta(t, 0.5, n.CX, 1e-12)
	require.InDelta(t, 0.5, n.CY, 1e-12)
	require.InDelta(t, 0.5, n.W, 1e-12)
	require.InDelta(t, 0.5, n.H, 1e-12)
}

func TestToOriginalPixelsCropMath(t *testing.T) {
	n := Normalized{Label: 0, CX: 0.5, CY: 0.5, W: 0.2, H: 0.1}
	require.Equal(t, image.Rect(400, 225, 600, 275), ToOriginalPixels(n, 1000, 500))
}

func TestToOriginalPixelsIsNotClamped(t *testing.T) {
	n := Normalized{CX: 0.02, CY: 0.5, W: 0.1, H: 0.1}
	r := ToOriginalPixels(n, 100, 100)
	require.Less(t, r.Min.X, 0)
}

func TestRoundTripWithinOnePixel(t *testing.T) {
	d := Compute(1333, 777, 0)
	rects := []image.Rectangle{
		image.Rect(0, 0, 1333, 777),
		image.Rect(10, 20, 11, 21),
		image.Rect(101, 33, 560, 402),
		image.Rect(1, 1, 4, 8),
		image.Rect(700, 500, 1332, 776),
	}
	for _, r := range rects {
		box := model.NewLabeled(r, 0)
		got := ToOriginalPixels(ToNormalized(box, d), d.Width, d.Height)
		require.InDelta(t, r.Min.X, got.Min.X, 1, "rect %v", r)
		require.InDelta(t, r.Min.Y, got.Min.Y, 1, "rect %v", r)
		require.InDelta(t, r.Max.X, got.Max.X, 1, "rect %v", r)
		require.InDelta(t, r.Max.Y, got.Max.Y, 1, "rect %v", r)
	}
}
