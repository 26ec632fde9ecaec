package tui

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/image/draw"

	"github.com/verte-zerg/boxlabel/internal/model"
)

const halfBlock = "▀"

var (
	unlabeledColor = color.RGBA{R: 0xFF, G: 0x4D, B: 0x4F, A: 0xFF}
	labeledColor   = color.RGBA{R: 0x40, G: 0x8C, B: 0xFF, A: 0xFF}
	draftColor     = color.RGBA{R: 0xFA, G: 0xD0, B: 0x2C, A: 0xFF}
	backdropColor  = color.RGBA{A: 0xFF}
)

// canvas maps between terminal cells and display pixels. Every cell shows
// two canvas pixels stacked vertically.
type canvas struct {
	displayW, displayH int
	width, height      int
	cols, rows         int
	offsetX            int
	factor             float64
}

// fitCanvas fits a display of dw x dh pixels into a cols x rows cell area,
// keeping the aspect ratio and centering horizontally.
func fitCanvas(dw, dh, cols, rows int) canvas {
	if dw <= 0 || dh <= 0 || cols <= 0 || rows <= 0 {
		return canvas{}
	}
	factor := math.Min(float64(cols)/float64(dw), float64(2*rows)/float64(dh))
	width := max(1, int(math.Floor(float64(dw)*factor)))
	height := max(1, int(math.Floor(float64(dh)*factor)))
	cellRows := (height + 1) / 2
	return canvas{
		displayW: dw,
		displayH: dh,
		width:    width,
		height:   height,
		cols:     width,
		rows:     cellRows,
		offsetX:  (cols - width) / 2,
		factor:   factor,
	}
}

func (c canvas) empty() bool {
	return c.width == 0 || c.height == 0
}

// toDisplay converts a terminal cell to the display pixel under its center.
// Points outside the canvas are clamped; inside reports whether the cell
// belongs to the canvas.
func (c canvas) toDisplay(x, y int) (p image.Point, inside bool) {
	if c.empty() {
		return image.Point{}, false
	}
	cx := x - c.offsetX
	cy := y
	inside = cx >= 0 && cx < c.cols && cy >= 0 && cy < c.rows
	px := int(math.Floor((float64(cx) + 0.5) / c.factor))
	py := int(math.Floor(float64(2*cy+1) / c.factor))
	p.X = min(max(px, 0), c.displayW)
	p.Y = min(max(py, 0), c.displayH)
	return p, inside
}

// toCanvas converts a display rectangle to canvas pixels.
func (c canvas) toCanvas(r image.Rectangle) image.Rectangle {
	scale := func(v int) int { return int(math.Floor(float64(v) * c.factor)) }
	return image.Rect(scale(r.Min.X), scale(r.Min.Y), scale(r.Max.X), scale(r.Max.Y))
}

// scaleBase resizes the display image to the canvas.
func (c canvas) scaleBase(src image.Image) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, c.width, c.height))
	if src == nil {
		draw.Draw(dst, dst.Bounds(), image.NewUniform(backdropColor), image.Point{}, draw.Src)
		return dst
	}
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}

// overlay copies base and outlines boxes and the draft on it.
func (c canvas) overlay(base *image.RGBA, boxes []model.Box, draft image.Rectangle, drawing bool) *image.RGBA {
	out := image.NewRGBA(base.Bounds())
	copy(out.Pix, base.Pix)
	for _, b := range boxes {
		clr := labeledColor
		if !b.Labeled() {
			clr = unlabeledColor
		}
		strokeRect(out, c.toCanvas(b.Rect), clr)
	}
	if drawing {
		strokeRect(out, c.toCanvas(draft.Canon()), draftColor)
	}
	return out
}

func strokeRect(img *image.RGBA, r image.Rectangle, clr color.RGBA) {
	b := img.Bounds()
	maxX := min(r.Max.X, b.Max.X-1)
	maxY := min(r.Max.Y, b.Max.Y-1)
	for x := max(r.Min.X, 0); x <= maxX; x++ {
		setIn(img, x, r.Min.Y, clr)
		setIn(img, x, maxY, clr)
	}
	for y := max(r.Min.Y, 0); y <= maxY; y++ {
		setIn(img, r.Min.X, y, clr)
		setIn(img, maxX, y, clr)
	}
}

func setIn(img *image.RGBA, x, y int, clr color.RGBA) {
	if image.Pt(x, y).In(img.Bounds()) {
		img.SetRGBA(x, y, clr)
	}
}

// render encodes img as half-block cells, one line per cell row.
func (c canvas) render(img *image.RGBA) string {
	pad := strings.Repeat(" ", max(c.offsetX, 0))
	lines := make([]string, 0, c.rows)
	for row := 0; row < c.rows; row++ {
		var b strings.Builder
		b.WriteString(pad)
		for col := 0; col < c.cols; col++ {
			top := img.RGBAAt(col, 2*row)
			bottom := backdropColor
			if 2*row+1 < c.height {
				bottom = img.RGBAAt(col, 2*row+1)
			}
			style := lipgloss.NewStyle().
				Foreground(lipgloss.Color(hexColor(top))).
				Background(lipgloss.Color(hexColor(bottom)))
			b.WriteString(style.Render(halfBlock))
		}
		lines = append(lines, b.String())
	}
	return strings.Join(lines, "\n")
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B)
}
