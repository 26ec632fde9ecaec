package session

import (
	"fmt"
	"image"
)

// Command is one input the session understands. The set is closed.
type Command interface {
	fmt.Stringer
	command()
}

// LoadImage loads a specific image without committing the current one.
type LoadImage struct{ Path string }

// BeginDraw starts a box gesture.
type BeginDraw struct{ At image.Point }

// UpdateDraw moves the free corner of the gesture.
type UpdateDraw struct{ To image.Point }

// FinalizeDraw ends the gesture and stores the box.
type FinalizeDraw struct{ To image.Point }

// RemoveBoxAt removes the first box containing the point.
type RemoveBoxAt struct{ At image.Point }

// UndoLast removes the newest box.
type UndoLast struct{}

// ResetAll removes every box of the current image.
type ResetAll struct{}

// LabelLast labels the newest box with label index Index.
type LabelLast struct{ Index int }

// ToggleMode flips manual and automatic labeling.
type ToggleMode struct{}

// ToggleCropMode flips crop extraction.
type ToggleCropMode struct{}

// Advance commits the current image and moves to the next one.
type Advance struct{}

func (LoadImage) command()      {}
func (BeginDraw) command()      {}
func (UpdateDraw) command()     {}
func (FinalizeDraw) command()   {}
func (RemoveBoxAt) command()    {}
func (UndoLast) command()       {}
func (ResetAll) command()       {}
func (LabelLast) command()      {}
func (ToggleMode) command()     {}
func (ToggleCropMode) command() {}
func (Advance) command()        {}

func (c LoadImage) String() string    { return "load " + c.Path }
func (c BeginDraw) String() string    { return fmt.Sprintf("begin %d %d", c.At.X, c.At.Y) }
func (c UpdateDraw) String() string   { return fmt.Sprintf("move %d %d", c.To.X, c.To.Y) }
func (c FinalizeDraw) String() string { return fmt.Sprintf("end %d %d", c.To.X, c.To.Y) }
func (c RemoveBoxAt) String() string  { return fmt.Sprintf("remove %d %d", c.At.X, c.At.Y) }
func (UndoLast) String() string       { return "undo" }
func (ResetAll) String() string       { return "reset" }
func (c LabelLast) String() string    { return fmt.Sprintf("label %d", c.Index) }
func (ToggleMode) String() string     { return "mode" }
func (ToggleCropMode) String() string { return "crop" }
func (Advance) String() string        { return "next" }

// Status classifies the outcome of a command.
type Status int

const (
	// StatusOK means the command was applied.
	StatusOK Status = iota
	// StatusWarning means the command was refused and state is unchanged.
	StatusWarning
	// StatusFatal means an I/O failure; the current image keeps its boxes.
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusWarning:
		return "warning"
	case StatusFatal:
		return "fatal"
	default:
		return "ok"
	}
}

// Outcome is the result of dispatching a command.
type Outcome struct {
	Status  Status
	Message string
	Err     error
}

func ok(format string, args ...any) Outcome {
	return Outcome{Status: StatusOK, Message: fmt.Sprintf(format, args...)}
}

func warn(err error) Outcome {
	return Outcome{Status: StatusWarning, Message: err.Error(), Err: err}
}

func fatal(err error) Outcome {
	return Outcome{Status: StatusFatal, Message: err.Error(), Err: err}
}
