package boxes

import (
	"image"

	"github.com/cockroachdb/errors"

	"github.com/verte-zerg/boxlabel/internal/model"
)

// Assigner applies the manual or automatic labeling policy. It outlives
// individual images so the last used label stays sticky.
type Assigner struct {
	Mode model.Mode
	Last int
}

// Toggle flips between manual and automatic labeling.
func (a *Assigner) Toggle() model.Mode {
	if a.Mode == model.ModeAuto {
		a.Mode = model.ModeManual
	} else {
		a.Mode = model.ModeAuto
	}
	return a.Mode
}

// Finalize stores rect as a new box. In auto mode the new box and every
// unlabeled box before it receive the last used label.
func (a *Assigner) Finalize(s *Store, rect image.Rectangle) (model.Box, error) {
	rect = rect.Canon()
	if rect.Dx() == 0 || rect.Dy() == 0 {
		return model.Box{}, ErrDegenerateBox
	}
	if a.Mode == model.ModeAuto {
		box := model.NewLabeled(rect, a.Last)
		s.append(box)
		s.backfill(a.Last)
		return box, nil
	}
	if s.Pending() {
		return model.Box{}, errors.WithHint(ErrPendingLabel, "label the box you drew before drawing another")
	}
	box := model.NewUnlabeled(rect)
	s.append(box)
	return box, nil
}

// LabelLast records idx as the last used label and labels or relabels the
// newest box. It reports whether a box was changed.
func (a *Assigner) LabelLast(s *Store, idx int) bool {
	a.Last = idx
	return s.labelLast(idx)
}
