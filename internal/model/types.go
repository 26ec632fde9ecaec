// Package model defines shared data structures.
package model

import (
	"fmt"
	"image"
)

// MaxLabels is the number of label slots (key_1..key_9).
const MaxLabels = 9

// Unlabeled marks a box that still waits for a label.
const Unlabeled = -1

// Box is a rectangle in display-pixel coordinates with an optional label index.
type Box struct {
	Rect  image.Rectangle
	Label int
}

// NewUnlabeled builds a box that awaits a label.
func NewUnlabeled(rect image.Rectangle) Box {
	return Box{Rect: rect.Canon(), Label: Unlabeled}
}

// NewLabeled builds a box carrying label index idx.
func NewLabeled(rect image.Rectangle, idx int) Box {
	return Box{Rect: rect.Canon(), Label: idx}
}

// Labeled reports whether the box has a label.
func (b Box) Labeled() bool {
	return b.Label >= 0
}

// Contains reports whether p lies inside the box, edges included.
func (b Box) Contains(p image.Point) bool {
	r := b.Rect
	return r.Min.X <= p.X && p.X <= r.Max.X && r.Min.Y <= p.Y && p.Y <= r.Max.Y
}

// Mode selects how finalized boxes get their label.
type Mode int

const (
	// ModeManual leaves new boxes unlabeled until a label command arrives.
	ModeManual Mode = iota
	// ModeAuto labels new boxes with the last used label.
	ModeAuto
)

func (m Mode) String() string {
	if m == ModeAuto {
		return "Auto Label"
	}
	return "Manual Label"
}

// LabelSet is the ordered, immutable list of label names.
type LabelSet []string

// Valid reports whether idx refers to a configured label.
func (l LabelSet) Valid(idx int) bool {
	return idx >= 0 && idx < len(l)
}

// Name returns the label name for idx, or a placeholder for unknown indices.
func (l LabelSet) Name(idx int) string {
	if !l.Valid(idx) {
		return fmt.Sprintf("#%d", idx)
	}
	return l[idx]
}

// Config defines annotation settings after flags and config file are merged.
type Config struct {
	Dir          string
	LabelsPath   string
	ScreenHeight int
	Crop         bool
	SaveDir      string
	Auto         bool
	Precision    int
	CropQuality  int
	LogFile      string
}
