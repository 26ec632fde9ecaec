package tui

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/disintegration/imaging"

	"github.com/verte-zerg/boxlabel/internal/model"
	"github.com/verte-zerg/boxlabel/internal/queue"
	"github.com/verte-zerg/boxlabel/internal/session"
)

func newTestModel(t *testing.T, names ...string) (*Model, string) {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		img := imaging.New(200, 100, color.NRGBA{B: 255, A: 255})
		if err := imaging.Save(img, filepath.Join(dir, name)); err != nil {
			t.Fatalf("save fixture: %v", err)
		}
	}
	q, err := queue.Scan(dir)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	s := session.New(q, session.Options{Labels: model.LabelSet{"cat", "dog"}, Precision: 6}, nil)
	m := NewModel(s, nil)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return m, dir
}

func press(x, y int, button tea.MouseButton) tea.MouseMsg {
	return tea.MouseMsg{X: x, Y: y, Action: tea.MouseActionPress, Button: button}
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestMouseDrawLabelAndAdvance(t *testing.T) {
	m, dir := newTestModel(t, "a.png", "b.png")
	if m.session.State() != session.StateAnnotating {
		t.Fatalf("expected first image loaded, got %s", m.session.State())
	}

	m.Update(press(10, 5, tea.MouseButtonLeft))
	m.Update(tea.MouseMsg{X: 40, Y: 15, Action: tea.MouseActionMotion, Button: tea.MouseButtonLeft})
	if _, drawing := m.session.Draft(); !drawing {
		t.Fatalf("expected a draft while dragging")
	}
	m.Update(tea.MouseMsg{X: 40, Y: 15, Action: tea.MouseActionRelease})

	boxes := m.session.Boxes()
	if len(boxes) != 1 || boxes[0].Rect != image.Rect(21, 22, 81, 62) {
		t.Fatalf("unexpected boxes %+v", boxes)
	}

	m.Update(runeKey('3'))
	if m.session.Boxes()[0].Labeled() {
		t.Fatalf("key beyond the label count must be ignored")
	}
	m.Update(runeKey('2'))
	if got := m.session.Boxes()[0].Label; got != 1 {
		t.Fatalf("expected label 1, got %d", got)
	}

	m.Update(runeKey('e'))
	data, err := os.ReadFile(filepath.Join(dir, "a.txt"))
	if err != nil {
		t.Fatalf("read sidecar: %v", err)
	}
	if !strings.HasPrefix(string(data), "1 ") || strings.Count(string(data), "\n") != 1 {
		t.Fatalf("unexpected sidecar %q", data)
	}
	if filepath.Base(m.session.Current()) != "b.png" {
		t.Fatalf("expected b.png, got %s", m.session.Current())
	}
}

func TestRightClickRemovesAndEscUndoes(t *testing.T) {
	m, _ := newTestModel(t, "a.png")
	m.Update(runeKey('a'))
	for _, r := range [][2]int{{10, 5}, {60, 5}} {
		m.Update(press(r[0], r[1], tea.MouseButtonLeft))
		m.Update(tea.MouseMsg{X: r[0] + 20, Y: r[1] + 10, Action: tea.MouseActionRelease})
	}
	if len(m.session.Boxes()) != 2 {
		t.Fatalf("expected 2 boxes, got %d", len(m.session.Boxes()))
	}
	m.Update(press(15, 8, tea.MouseButtonRight))
	if len(m.session.Boxes()) != 1 {
		t.Fatalf("right click should remove the box under the pointer")
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if len(m.session.Boxes()) != 0 {
		t.Fatalf("esc should undo the last box")
	}
}

func TestPressOutsideCanvasIgnored(t *testing.T) {
	m, _ := newTestModel(t, "a.png")
	m.Update(press(10, 28, tea.MouseButtonLeft))
	if _, drawing := m.session.Draft(); drawing {
		t.Fatalf("press below the canvas must not start a box")
	}
}

func TestRenderStatusFormats(t *testing.T) {
	m, _ := newTestModel(t, "a.png", "b.png")
	m.Update(runeKey('c'))
	m.Update(tea.MouseMsg{X: 10, Y: 5, Action: tea.MouseActionMotion})
	out := m.renderStatus()
	if !containsAll(out, []string{"a.png", "200x100", "x:21 y:22", "Manual Label", "crop on", "1/2", "crop mode on"}) {
		t.Fatalf("status missing expected segments: %s", out)
	}
	m.Update(runeKey('a'))
	if !strings.Contains(m.renderStatus(), "Auto Label") {
		t.Fatalf("expected auto mode in status: %s", m.renderStatus())
	}
}

func TestWarningShownInStatus(t *testing.T) {
	m, _ := newTestModel(t, "a.png", "b.png")
	m.Update(press(10, 5, tea.MouseButtonLeft))
	m.Update(tea.MouseMsg{X: 40, Y: 15, Action: tea.MouseActionRelease})
	m.Update(runeKey('e'))
	if m.last.Status != session.StatusWarning {
		t.Fatalf("expected a warning, got %+v", m.last)
	}
	if !strings.Contains(m.renderStatus(), "no label yet") {
		t.Fatalf("expected the pending label warning: %s", m.renderStatus())
	}
	if !strings.Contains(m.renderBoxList(), "1:?") {
		t.Fatalf("expected unlabeled box in list: %s", m.renderBoxList())
	}
}

func TestExhaustedView(t *testing.T) {
	m, _ := newTestModel(t, "a.png")
	m.Update(runeKey('e'))
	if m.session.State() != session.StateExhausted {
		t.Fatalf("expected exhausted state, got %s", m.session.State())
	}
	if !strings.Contains(m.View(), "All 1 images are labeled") {
		t.Fatalf("expected placeholder in view")
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC}); cmd == nil {
		t.Fatalf("expected quit command")
	}
}

func TestViewDrawsCanvas(t *testing.T) {
	m, _ := newTestModel(t, "a.png")
	view := m.View()
	if !strings.Contains(view, halfBlock) {
		t.Fatalf("expected half-block canvas in view")
	}
	if !strings.Contains(view, "label last box") {
		t.Fatalf("expected help line in view")
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}
