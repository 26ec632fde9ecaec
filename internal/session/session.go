// Package session drives annotation of one directory, one image at a time.
package session

import (
	"fmt"
	"image"
	"path/filepath"

	"github.com/cockroachdb/errors"
	"github.com/disintegration/imaging"
	"go.uber.org/zap"

	"github.com/verte-zerg/boxlabel/internal/boxes"
	"github.com/verte-zerg/boxlabel/internal/geometry"
	"github.com/verte-zerg/boxlabel/internal/logging"
	"github.com/verte-zerg/boxlabel/internal/model"
	"github.com/verte-zerg/boxlabel/internal/queue"
	"github.com/verte-zerg/boxlabel/internal/result"
)

// DefaultSaveDirName is the crop directory created inside the input directory.
const DefaultSaveDirName = "Results"

var (
	// ErrNoImage is returned for drawing commands while no image is loaded.
	ErrNoImage = errors.New("no image loaded")
	// ErrNotDrawing is returned when a gesture ends that never started.
	ErrNotDrawing = errors.New("no box is being drawn")
	// ErrUnknownLabel is returned for label indices outside the label set.
	ErrUnknownLabel = errors.New("unknown label")
	// ErrLoadFailed marks errors decoding an image.
	ErrLoadFailed = errors.New("image load failed")
	// ErrCommitFailed marks errors persisting results.
	ErrCommitFailed = errors.New("commit failed")
)

// State is the lifecycle stage of a session.
type State int

const (
	// StateIdle means no image was loaded yet.
	StateIdle State = iota
	// StateAnnotating means an image is loaded and accepts boxes.
	StateAnnotating
	// StateExhausted means every queued image was handled.
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateAnnotating:
		return "annotating"
	case StateExhausted:
		return "exhausted"
	default:
		return "idle"
	}
}

// Options configures a session.
type Options struct {
	Labels       model.LabelSet
	ScreenHeight int
	Mode         model.Mode
	Crop         bool
	SaveDir      string
	Precision    int
	CropQuality  int
}

// Session owns the box store and display geometry of the current image and
// the state that outlives images: queue, labeling mode, crop settings.
type Session struct {
	labels       model.LabelSet
	queue        *queue.Queue
	writer       *result.Writer
	logger       *zap.Logger
	screenHeight int

	assigner boxes.Assigner
	crop     bool
	saveDir  string

	state   State
	current string
	store   *boxes.Store
	display geometry.Display
	buffer  image.Image

	lastCommit result.Result
	skipped    []string
}

// New creates an idle session over q.
func New(q *queue.Queue, opts Options, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	saveDir := opts.SaveDir
	if saveDir == "" {
		saveDir = filepath.Join(q.Dir(), DefaultSaveDirName)
	}
	return &Session{
		labels:       opts.Labels,
		queue:        q,
		writer:       result.NewWriter(opts.Labels, opts.Precision, opts.CropQuality),
		logger:       logger,
		screenHeight: opts.ScreenHeight,
		assigner:     boxes.Assigner{Mode: opts.Mode},
		crop:         opts.Crop,
		saveDir:      saveDir,
		state:        StateIdle,
		store:        boxes.New(),
	}
}

// Dispatch applies cmd and reports the outcome.
func (s *Session) Dispatch(cmd Command) Outcome {
	out := s.dispatch(cmd)
	s.logger.Debug("command",
		zap.String(logging.FieldCommand, cmd.String()),
		zap.Stringer("status", out.Status),
		zap.Stringer(logging.FieldState, s.state))
	return out
}

func (s *Session) dispatch(cmd Command) Outcome {
	switch c := cmd.(type) {
	case LoadImage:
		if err := s.LoadImage(c.Path); err != nil {
			return classify(err)
		}
		return ok("loaded %s", filepath.Base(c.Path))
	case BeginDraw:
		if err := s.BeginDraw(c.At); err != nil {
			return classify(err)
		}
		return ok("")
	case UpdateDraw:
		if err := s.UpdateDraw(c.To); err != nil {
			return classify(err)
		}
		return ok("")
	case FinalizeDraw:
		box, err := s.FinalizeDraw(c.To)
		if err != nil {
			return classify(err)
		}
		if box.Labeled() {
			return ok("box %d labeled %s", s.store.Len(), s.labels.Name(box.Label))
		}
		return ok("box %d awaits a label", s.store.Len())
	case RemoveBoxAt:
		if _, removed := s.RemoveBoxAt(c.At); removed {
			return ok("box removed")
		}
		return ok("no box at %d,%d", c.At.X, c.At.Y)
	case UndoLast:
		if _, removed := s.UndoLast(); removed {
			return ok("last box removed")
		}
		return ok("nothing to undo")
	case ResetAll:
		s.ResetAll()
		return ok("all boxes cleared")
	case LabelLast:
		if err := s.LabelLast(c.Index); err != nil {
			return classify(err)
		}
		return ok("label %s", s.labels.Name(c.Index))
	case ToggleMode:
		return ok("%s", s.ToggleMode())
	case ToggleCropMode:
		if s.ToggleCropMode() {
			return ok("crop mode on")
		}
		return ok("crop mode off")
	case Advance:
		if err := s.Advance(); err != nil {
			return classify(err)
		}
		return ok("%s", s.advanceMessage())
	default:
		return fatal(errors.AssertionFailedf("unknown command %T", cmd))
	}
}

func classify(err error) Outcome {
	if errors.Is(err, ErrCommitFailed) || errors.Is(err, ErrLoadFailed) {
		return fatal(err)
	}
	return warn(err)
}

// LoadImage decodes path, computes its display geometry and starts a fresh
// box store for it. The current boxes are discarded without committing. A
// queued path leaves the queue so it is not handed out again.
func (s *Session) LoadImage(path string) error {
	img, err := s.writer.Cropper.Load(path)
	if err != nil {
		return errors.Mark(err, ErrLoadFailed)
	}
	b := img.Bounds()
	d := geometry.Compute(b.Dx(), b.Dy(), s.screenHeight)
	buffer := img
	if d.Scaled() {
		buffer = imaging.Resize(img, d.Width, d.Height, imaging.Lanczos)
	}
	s.queue.Take(path)
	s.current = path
	s.display = d
	s.buffer = buffer
	s.store = boxes.New()
	s.state = StateAnnotating
	s.logger.Info("image loaded",
		zap.String(logging.FieldImage, path),
		zap.Int("width", d.OriginalWidth),
		zap.Int("height", d.OriginalHeight),
		zap.Float64("scale", d.Scale))
	return nil
}

func (s *Session) requireImage() error {
	if s.state != StateAnnotating {
		return ErrNoImage
	}
	return nil
}

// BeginDraw starts a gesture at p.
func (s *Session) BeginDraw(p image.Point) error {
	if err := s.requireImage(); err != nil {
		return err
	}
	s.store.BeginDraw(p)
	return nil
}

// UpdateDraw moves the gesture's free corner to p.
func (s *Session) UpdateDraw(p image.Point) error {
	if err := s.requireImage(); err != nil {
		return err
	}
	s.store.UpdateDraw(p)
	return nil
}

// FinalizeDraw ends the gesture at p. The rectangle is clipped to the display
// before the labeling policy is applied.
func (s *Session) FinalizeDraw(p image.Point) (model.Box, error) {
	if err := s.requireImage(); err != nil {
		return model.Box{}, err
	}
	rect, drawing := s.store.EndDraw(p)
	if !drawing {
		return model.Box{}, ErrNotDrawing
	}
	return s.assigner.Finalize(s.store, rect.Intersect(s.display.Bounds()))
}

// RemoveBoxAt removes the first box, in insertion order, containing p.
func (s *Session) RemoveBoxAt(p image.Point) (model.Box, bool) {
	return s.store.RemoveAt(p)
}

// UndoLast removes the newest box.
func (s *Session) UndoLast() (model.Box, bool) {
	return s.store.RemoveLast()
}

// ResetAll clears every box of the current image.
func (s *Session) ResetAll() {
	s.store.Reset()
}

// LabelLast labels the newest box with idx and makes idx the sticky label.
func (s *Session) LabelLast(idx int) error {
	if !s.labels.Valid(idx) {
		return errors.Wrapf(ErrUnknownLabel, "index %d (%d labels configured)", idx, len(s.labels))
	}
	s.assigner.LabelLast(s.store, idx)
	return nil
}

// ToggleMode flips manual and automatic labeling.
func (s *Session) ToggleMode() model.Mode {
	return s.assigner.Toggle()
}

// ToggleCropMode flips crop extraction and returns the new setting.
func (s *Session) ToggleCropMode() bool {
	s.crop = !s.crop
	return s.crop
}

// Advance commits the current image and loads the next queued one. From the
// idle state it only loads the first image. It is refused while the newest
// box has no label.
func (s *Session) Advance() error {
	s.lastCommit = result.Result{}
	s.skipped = nil
	switch s.state {
	case StateExhausted:
		return queue.ErrExhausted
	case StateAnnotating:
		if s.store.Pending() {
			return errors.WithHint(boxes.ErrPendingLabel, "label the box you drew before moving on")
		}
		if err := s.commit(); err != nil {
			return err
		}
	}
	return s.loadNext()
}

func (s *Session) commit() error {
	list := s.store.List()
	res, err := s.writer.Commit(list, s.display, s.current, result.CommitOptions{Crop: s.crop, SaveDir: s.saveDir})
	if err != nil {
		s.logger.Error("commit failed",
			zap.String(logging.FieldImage, s.current),
			zap.Int(logging.FieldBoxes, len(list)),
			zap.Error(err))
		return errors.Mark(errors.Wrapf(err, "failed to save %s", filepath.Base(s.current)), ErrCommitFailed)
	}
	s.logger.Info("image committed",
		zap.String(logging.FieldImage, s.current),
		zap.Int(logging.FieldBoxes, res.Lines),
		zap.String(logging.FieldSidecar, res.SidecarPath),
		zap.Strings(logging.FieldCrops, res.Crops))
	s.lastCommit = res
	s.store.Reset()
	return nil
}

// loadNext pulls images until one decodes. Unreadable images keep no sidecar
// file and therefore come back on the next run.
func (s *Session) loadNext() error {
	for {
		path, err := s.queue.Next()
		if errors.Is(err, queue.ErrExhausted) {
			s.exhaust()
			return nil
		}
		if err != nil {
			return err
		}
		if err := s.LoadImage(path); err != nil {
			s.logger.Warn("skipping unreadable image", zap.String(logging.FieldImage, path), zap.Error(err))
			s.skipped = append(s.skipped, path)
			continue
		}
		return nil
	}
}

func (s *Session) exhaust() {
	s.state = StateExhausted
	s.current = ""
	s.display = geometry.Display{}
	s.buffer = nil
	s.store = boxes.New()
	done, total := s.queue.Progress()
	s.logger.Info("queue exhausted", zap.Int("done", done), zap.Int("total", total))
}

func (s *Session) advanceMessage() string {
	msg := ""
	if s.lastCommit.SidecarPath != "" {
		msg = fmt.Sprintf("saved %s (%d boxes", filepath.Base(s.lastCommit.SidecarPath), s.lastCommit.Lines)
		if len(s.lastCommit.Crops) > 0 {
			msg += fmt.Sprintf(", %d crops", len(s.lastCommit.Crops))
		}
		msg += "); "
	}
	if len(s.skipped) > 0 {
		msg += fmt.Sprintf("skipped %d unreadable images; ", len(s.skipped))
	}
	if s.state == StateExhausted {
		return msg + "all images done"
	}
	return msg + "loaded " + filepath.Base(s.current)
}

// State returns the lifecycle stage.
func (s *Session) State() State { return s.state }

// Current returns the path of the loaded image, empty when none.
func (s *Session) Current() string { return s.current }

// Display returns the geometry of the loaded image.
func (s *Session) Display() geometry.Display { return s.display }

// DisplayImage returns the downscaled buffer boxes are drawn on.
func (s *Session) DisplayImage() image.Image { return s.buffer }

// Boxes returns the boxes of the current image in insertion order.
func (s *Session) Boxes() []model.Box { return s.store.List() }

// Draft returns the rectangle being drawn, if any.
func (s *Session) Draft() (image.Rectangle, bool) { return s.store.Draft() }

// Pending reports whether the newest box waits for a label.
func (s *Session) Pending() bool { return s.store.Pending() }

// Mode returns the labeling mode.
func (s *Session) Mode() model.Mode { return s.assigner.Mode }

// LastLabel returns the sticky label used in automatic mode.
func (s *Session) LastLabel() int { return s.assigner.Last }

// CropMode reports whether crops are extracted on commit.
func (s *Session) CropMode() bool { return s.crop }

// SaveDir returns the crop output directory.
func (s *Session) SaveDir() string { return s.saveDir }

// Labels returns the configured label names.
func (s *Session) Labels() model.LabelSet { return s.labels }

// Progress returns images done (including the one in hand) and the total.
func (s *Session) Progress() (done, total int) { return s.queue.Progress() }

// Skipped returns images the last advance could not decode.
func (s *Session) Skipped() []string { return append([]string(nil), s.skipped...) }
