// Package boxes holds the boxes drawn on the current image and the labeling policy.
package boxes

import (
	"image"

	"github.com/cockroachdb/errors"

	"github.com/verte-zerg/boxlabel/internal/model"
)

var (
	// ErrDegenerateBox is returned when a finished rectangle has no area.
	ErrDegenerateBox = errors.New("box discarded: zero width or height")
	// ErrPendingLabel is returned when the last box still waits for a label.
	ErrPendingLabel = errors.New("the last box has no label yet")
)

// Store is the ordered list of boxes for one image.
type Store struct {
	boxes []model.Box

	drawing bool
	anchor  image.Point
	corner  image.Point
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// BeginDraw starts a drawing gesture at p.
func (s *Store) BeginDraw(p image.Point) {
	s.drawing = true
	s.anchor = p
	s.corner = p
}

// UpdateDraw moves the free corner of the gesture and returns the live rectangle.
func (s *Store) UpdateDraw(p image.Point) image.Rectangle {
	if !s.drawing {
		return image.Rectangle{}
	}
	s.corner = p
	return s.draft()
}

// Draft returns the rectangle being drawn, if any.
func (s *Store) Draft() (image.Rectangle, bool) {
	if !s.drawing {
		return image.Rectangle{}, false
	}
	return s.draft(), true
}

// EndDraw closes the gesture at p and returns its rectangle.
func (s *Store) EndDraw(p image.Point) (image.Rectangle, bool) {
	if !s.drawing {
		return image.Rectangle{}, false
	}
	s.corner = p
	r := s.draft()
	s.drawing = false
	return r, true
}

func (s *Store) draft() image.Rectangle {
	return image.Rectangle{Min: s.anchor, Max: s.corner}.Canon()
}

// Len returns the number of stored boxes.
func (s *Store) Len() int {
	return len(s.boxes)
}

// Last returns the newest box.
func (s *Store) Last() (model.Box, bool) {
	if len(s.boxes) == 0 {
		return model.Box{}, false
	}
	return s.boxes[len(s.boxes)-1], true
}

// Pending reports whether the newest box is unlabeled.
func (s *Store) Pending() bool {
	last, ok := s.Last()
	return ok && !last.Labeled()
}

// List returns a copy of the boxes in insertion order.
func (s *Store) List() []model.Box {
	out := make([]model.Box, len(s.boxes))
	copy(out, s.boxes)
	return out
}

// RemoveAt removes the first box, in insertion order, that contains p. With
// overlapping boxes this can be a box other than the one drawn on top.
func (s *Store) RemoveAt(p image.Point) (model.Box, bool) {
	for i, b := range s.boxes {
		if b.Contains(p) {
			s.boxes = append(s.boxes[:i], s.boxes[i+1:]...)
			return b, true
		}
	}
	return model.Box{}, false
}

// RemoveLast pops the newest box.
func (s *Store) RemoveLast() (model.Box, bool) {
	last, ok := s.Last()
	if !ok {
		return model.Box{}, false
	}
	s.boxes = s.boxes[:len(s.boxes)-1]
	return last, true
}

// Reset drops all boxes and any gesture in progress.
func (s *Store) Reset() {
	s.boxes = nil
	s.drawing = false
}

func (s *Store) append(b model.Box) {
	s.boxes = append(s.boxes, b)
}

func (s *Store) backfill(idx int) int {
	filled := 0
	for i := range s.boxes {
		if !s.boxes[i].Labeled() {
			s.boxes[i].Label = idx
			filled++
		}
	}
	return filled
}

func (s *Store) labelLast(idx int) bool {
	if len(s.boxes) == 0 {
		return false
	}
	s.boxes[len(s.boxes)-1].Label = idx
	return true
}
