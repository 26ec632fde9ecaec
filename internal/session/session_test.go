package session

import (
	"image"
	"image/color"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/boxlabel/internal/boxes"
	"github.com/verte-zerg/boxlabel/internal/model"
	"github.com/verte-zerg/boxlabel/internal/queue"
	"github.com/verte-zerg/boxlabel/internal/result"
)

var testLabels = model.LabelSet{"cat", "dog", "bird"}

func writeImage(t *testing.T, path string, w, h int) {
	t.Helper()
	img := imaging.New(w, h, color.NRGBA{R: 200, G: 80, B: 20, A: 255})
	require.NoError(t, imaging.Save(img, path))
}

func newSession(t *testing.T, opts Options, names ...string) (*Session, string) {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		writeImage(t, filepath.Join(dir, name), 200, 100)
	}
	q, err := queue.Scan(dir)
	require.NoError(t, err)
	if opts.Labels == nil {
		opts.Labels = testLabels
	}
	return New(q, opts, nil), dir
}

func drawBox(t *testing.T, s *Session, r image.Rectangle) Outcome {
	t.Helper()
	require.Equal(t, StatusOK, s.Dispatch(BeginDraw{At: r.Min}).Status)
	require.Equal(t, StatusOK, s.Dispatch(UpdateDraw{To: r.Max}).Status)
	return s.Dispatch(FinalizeDraw{To: r.Max})
}

func TestEndToEndSingleBox(t *testing.T) {
	s, dir := newSession(t, Options{Precision: result.DefaultPrecision}, "a.jpg", "b.jpg")
	require.Equal(t, StateIdle, s.State())

	out := s.Dispatch(Advance{})
	require.Equal(t, StatusOK, out.Status)
	require.Equal(t, filepath.Join(dir, "a.jpg"), s.Current())

	out = drawBox(t, s, image.Rect(50, 25, 150, 75))
	require.Equal(t, StatusOK, out.Status)
	require.True(t, s.Pending())
	require.Equal(t, StatusOK, s.Dispatch(LabelLast{Index: 1}).Status)

	out = s.Dispatch(Advance{})
	require.Equal(t, StatusOK, out.Status, out.Message)
	require.Contains(t, out.Message, "saved a.txt")

	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "1 0.500000 0.500000 0.500000 0.500000\n", string(data))

	require.Equal(t, filepath.Join(dir, "b.jpg"), s.Current())
	require.Empty(t, s.Boxes())
	done, total := s.Progress()
	require.Equal(t, 2, done)
	require.Equal(t, 2, total)
}

func TestAdvanceRefusedWhileLastBoxUnlabeled(t *testing.T) {
	s, dir := newSession(t, Options{}, "a.jpg", "b.jpg")
	s.Dispatch(Advance{})
	drawBox(t, s, image.Rect(10, 10, 40, 40))

	out := s.Dispatch(Advance{})
	require.Equal(t, StatusWarning, out.Status)
	require.True(t, errors.Is(out.Err, boxes.ErrPendingLabel))
	require.Equal(t, filepath.Join(dir, "a.jpg"), s.Current())
	require.Len(t, s.Boxes(), 1)
	require.False(t, result.HasSidecar(filepath.Join(dir, "a.jpg")))
}

func TestManualModeGuardThroughDispatch(t *testing.T) {
	s, _ := newSession(t, Options{}, "a.jpg")
	s.Dispatch(Advance{})
	drawBox(t, s, image.Rect(10, 10, 40, 40))

	out := drawBox(t, s, image.Rect(60, 10, 90, 40))
	require.Equal(t, StatusWarning, out.Status)
	require.True(t, errors.Is(out.Err, boxes.ErrPendingLabel))
	require.Len(t, s.Boxes(), 1)
	_, drawing := s.Draft()
	require.False(t, drawing)
}

func TestAutoModeBackfillsAcrossSession(t *testing.T) {
	s, _ := newSession(t, Options{}, "a.jpg")
	s.Dispatch(Advance{})
	drawBox(t, s, image.Rect(10, 10, 40, 40))
	s.Dispatch(LabelLast{Index: 2})
	drawBox(t, s, image.Rect(50, 10, 80, 40))

	require.Equal(t, "Auto Label", s.Dispatch(ToggleMode{}).Message)
	out := drawBox(t, s, image.Rect(90, 10, 120, 40))
	require.Equal(t, StatusOK, out.Status)
	for _, b := range s.Boxes() {
		require.Equal(t, 2, b.Label)
	}
}

func TestDegenerateBoxDiscarded(t *testing.T) {
	s, _ := newSession(t, Options{}, "a.jpg")
	s.Dispatch(Advance{})
	out := drawBox(t, s, image.Rect(10, 10, 10, 40))
	require.Equal(t, StatusWarning, out.Status)
	require.True(t, errors.Is(out.Err, boxes.ErrDegenerateBox))
	require.Empty(t, s.Boxes())
}

func TestFinalizeClipsToDisplay(t *testing.T) {
	s, _ := newSession(t, Options{Mode: model.ModeAuto}, "a.jpg")
	s.Dispatch(Advance{})
	require.Equal(t, StatusOK, s.Dispatch(BeginDraw{At: image.Pt(150, 50)}).Status)
	require.Equal(t, StatusOK, s.Dispatch(FinalizeDraw{To: image.Pt(260, 140)}).Status)
	require.Equal(t, image.Rect(150, 50, 200, 100), s.Boxes()[0].Rect)

	s.Dispatch(BeginDraw{At: image.Pt(300, 300)})
	out := s.Dispatch(FinalizeDraw{To: image.Pt(320, 320)})
	require.True(t, errors.Is(out.Err, boxes.ErrDegenerateBox))
}

func TestFinalizeWithoutBegin(t *testing.T) {
	s, _ := newSession(t, Options{}, "a.jpg")
	s.Dispatch(Advance{})
	out := s.Dispatch(FinalizeDraw{To: image.Pt(5, 5)})
	require.Equal(t, StatusWarning, out.Status)
	require.True(t, errors.Is(out.Err, ErrNotDrawing))
}

func TestUnknownLabelRefused(t *testing.T) {
	s, _ := newSession(t, Options{}, "a.jpg")
	s.Dispatch(Advance{})
	drawBox(t, s, image.Rect(10, 10, 40, 40))
	out := s.Dispatch(LabelLast{Index: 3})
	require.Equal(t, StatusWarning, out.Status)
	require.True(t, errors.Is(out.Err, ErrUnknownLabel))
	require.True(t, s.Pending())
}

func TestRemoveUndoReset(t *testing.T) {
	s, _ := newSession(t, Options{Mode: model.ModeAuto}, "a.jpg")
	s.Dispatch(Advance{})
	drawBox(t, s, image.Rect(0, 0, 100, 100))
	drawBox(t, s, image.Rect(40, 40, 60, 60))
	drawBox(t, s, image.Rect(150, 10, 190, 90))

	require.Equal(t, "box removed", s.Dispatch(RemoveBoxAt{At: image.Pt(50, 50)}).Message)
	require.Equal(t, image.Rect(40, 40, 60, 60), s.Boxes()[0].Rect)
	require.Equal(t, "no box at 120,5", s.Dispatch(RemoveBoxAt{At: image.Pt(120, 5)}).Message)

	s.Dispatch(UndoLast{})
	require.Len(t, s.Boxes(), 1)
	s.Dispatch(ResetAll{})
	require.Empty(t, s.Boxes())
	require.Equal(t, "nothing to undo", s.Dispatch(UndoLast{}).Message)
}

func TestExhaustedState(t *testing.T) {
	s, _ := newSession(t, Options{}, "a.jpg")
	s.Dispatch(Advance{})
	out := s.Dispatch(Advance{})
	require.Equal(t, StatusOK, out.Status)
	require.Contains(t, out.Message, "all images done")
	require.Equal(t, StateExhausted, s.State())
	require.Nil(t, s.DisplayImage())

	out = s.Dispatch(BeginDraw{At: image.Pt(1, 1)})
	require.Equal(t, StatusWarning, out.Status)
	require.True(t, errors.Is(out.Err, ErrNoImage))

	out = s.Dispatch(Advance{})
	require.Equal(t, StatusWarning, out.Status)
	require.True(t, errors.Is(out.Err, queue.ErrExhausted))
}

func TestEmptyDirectoryExhaustsImmediately(t *testing.T) {
	s, _ := newSession(t, Options{})
	require.Equal(t, StatusOK, s.Dispatch(Advance{}).Status)
	require.Equal(t, StateExhausted, s.State())
}

func TestDrawingRequiresImage(t *testing.T) {
	s, _ := newSession(t, Options{}, "a.jpg")
	out := s.Dispatch(BeginDraw{At: image.Pt(1, 1)})
	require.True(t, errors.Is(out.Err, ErrNoImage))
}

func TestEmptyCommitWithCropMode(t *testing.T) {
	s, dir := newSession(t, Options{}, "a.jpg")
	require.True(t, s.Dispatch(ToggleCropMode{}).Status == StatusOK)
	require.True(t, s.CropMode())
	s.Dispatch(Advance{})
	s.Dispatch(Advance{})

	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	require.Empty(t, data)

	entries, err := os.ReadDir(filepath.Join(dir, DefaultSaveDirName))
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestCropModeUsesOriginalResolution(t *testing.T) {
	dir := t.TempDir()
	writeImage(t, filepath.Join(dir, "big.png"), 1000, 500)
	q, err := queue.Scan(dir)
	require.NoError(t, err)
	s := New(q, Options{Labels: testLabels, ScreenHeight: 500, Crop: true, Precision: 6}, nil)

	s.Dispatch(Advance{})
	require.Equal(t, 800, s.Display().Width)
	require.Equal(t, 800, s.DisplayImage().Bounds().Dx())

	drawBox(t, s, image.Rect(320, 180, 480, 220))
	s.Dispatch(LabelLast{Index: 1})
	out := s.Dispatch(Advance{})
	require.Equal(t, StatusOK, out.Status, out.Message)
	require.Contains(t, out.Message, "1 crops")

	crop, err := imaging.Open(filepath.Join(dir, DefaultSaveDirName, "big-dog-0.jpg"))
	require.NoError(t, err)
	require.Equal(t, image.Rect(0, 0, 200, 50), crop.Bounds())
}

func TestUnreadableImagesAreSkipped(t *testing.T) {
	s, dir := newSession(t, Options{}, "a.jpg", "c.jpg")
	bad := filepath.Join(dir, "b.jpg")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
	q, err := queue.Scan(dir)
	require.NoError(t, err)
	s = New(q, Options{Labels: testLabels}, nil)

	s.Dispatch(Advance{})
	out := s.Dispatch(Advance{})
	require.Equal(t, StatusOK, out.Status)
	require.Contains(t, out.Message, "skipped 1")
	require.Equal(t, []string{bad}, s.Skipped())
	require.Equal(t, filepath.Join(dir, "c.jpg"), s.Current())
	require.False(t, result.HasSidecar(bad))
}

func TestCommitFailureKeepsBoxes(t *testing.T) {
	s, dir := newSession(t, Options{Mode: model.ModeAuto}, "a.jpg", "b.jpg")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "a.txt"), 0o755))
	s.Dispatch(Advance{})
	drawBox(t, s, image.Rect(10, 10, 40, 40))

	out := s.Dispatch(Advance{})
	require.Equal(t, StatusFatal, out.Status)
	require.True(t, errors.Is(out.Err, ErrCommitFailed))
	require.Equal(t, filepath.Join(dir, "a.jpg"), s.Current())
	require.Len(t, s.Boxes(), 1)
}

func TestCropFailureRetryWritesLinesOnce(t *testing.T) {
	s, dir := newSession(t, Options{Mode: model.ModeAuto, Crop: true, Precision: result.DefaultPrecision}, "a.jpg", "b.jpg")
	blocker := filepath.Join(dir, DefaultSaveDirName, "a-cat-0.jpg")
	require.NoError(t, os.MkdirAll(blocker, 0o755))
	s.Dispatch(Advance{})
	drawBox(t, s, image.Rect(50, 25, 150, 75))

	out := s.Dispatch(Advance{})
	require.Equal(t, StatusFatal, out.Status)
	require.True(t, errors.Is(out.Err, ErrCommitFailed))
	require.False(t, result.HasSidecar(filepath.Join(dir, "a.jpg")))
	require.Len(t, s.Boxes(), 1)

	require.NoError(t, os.Remove(blocker))
	out = s.Dispatch(Advance{})
	require.Equal(t, StatusOK, out.Status, out.Message)

	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	require.NoError(t, err)
	require.Equal(t, "0 0.500000 0.500000 0.500000 0.500000\n", string(data))
	require.FileExists(t, blocker)
	require.Equal(t, filepath.Join(dir, "b.jpg"), s.Current())
}

func TestLoadImageTakesPathOffQueue(t *testing.T) {
	s, dir := newSession(t, Options{Precision: result.DefaultPrecision}, "a.jpg", "b.jpg")
	b := filepath.Join(dir, "b.jpg")
	require.Equal(t, StatusOK, s.Dispatch(LoadImage{Path: b}).Status)
	done, total := s.Progress()
	require.Equal(t, 1, done)
	require.Equal(t, 2, total)

	require.Equal(t, StatusOK, s.Dispatch(Advance{}).Status)
	require.Equal(t, filepath.Join(dir, "a.jpg"), s.Current())
	require.Equal(t, StatusOK, s.Dispatch(Advance{}).Status)
	require.Equal(t, StateExhausted, s.State())

	data, err := os.ReadFile(filepath.Join(dir, "b.txt"))
	require.NoError(t, err)
	require.Empty(t, data)
}

func TestLoadImageCommand(t *testing.T) {
	s, dir := newSession(t, Options{}, "a.jpg", "b.jpg")
	out := s.Dispatch(LoadImage{Path: filepath.Join(dir, "b.jpg")})
	require.Equal(t, StatusOK, out.Status)
	require.Equal(t, StateAnnotating, s.State())

	out = s.Dispatch(LoadImage{Path: filepath.Join(dir, "missing.jpg")})
	require.Equal(t, StatusFatal, out.Status)
	require.Equal(t, filepath.Join(dir, "b.jpg"), s.Current())
}

func TestLabelsStayInRangeUnderRandomCommands(t *testing.T) {
	s, _ := newSession(t, Options{}, "a.jpg", "b.jpg", "c.jpg")
	s.Dispatch(Advance{})
	rng := rand.New(rand.NewSource(7))
	point := func() image.Point { return image.Pt(rng.Intn(240)-20, rng.Intn(140)-20) }
	for i := 0; i < 2000; i++ {
		var cmd Command
		switch rng.Intn(9) {
		case 0, 1:
			s.Dispatch(BeginDraw{At: point()})
			cmd = FinalizeDraw{To: point()}
		case 2, 3:
			cmd = LabelLast{Index: rng.Intn(5) - 1}
		case 4:
			cmd = RemoveBoxAt{At: point()}
		case 5:
			cmd = UndoLast{}
		case 6:
			cmd = ToggleMode{}
		case 7:
			cmd = ResetAll{}
		default:
			cmd = Advance{}
		}
		s.Dispatch(cmd)

		list := s.Boxes()
		for j, b := range list {
			if b.Labeled() {
				require.True(t, testLabels.Valid(b.Label), "step %d: %s", i, cmd)
			} else {
				require.Equal(t, len(list)-1, j, "step %d: only the last box may be unlabeled", i)
			}
			require.False(t, b.Rect.Empty())
		}
	}
}

func TestOutcomeStatusStrings(t *testing.T) {
	require.Equal(t, "ok", StatusOK.String())
	require.Equal(t, "warning", StatusWarning.String())
	require.Equal(t, "fatal", StatusFatal.String())
	require.True(t, strings.HasPrefix(BeginDraw{At: image.Pt(1, 2)}.String(), "begin 1 2"))
}
