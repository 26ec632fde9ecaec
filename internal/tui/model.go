// Package tui provides the Bubble Tea annotation interface.
package tui

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"go.uber.org/zap"

	"github.com/verte-zerg/boxlabel/internal/logging"
	"github.com/verte-zerg/boxlabel/internal/session"
)

var (
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	boxListStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	fatalStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F")).Bold(true)
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// Model implements the Bubble Tea annotation UI. It translates keys and
// mouse events into session commands and draws the session state.
type Model struct {
	session *session.Session
	logger  *zap.Logger
	keys    keyMap
	help    help.Model

	width  int
	height int
	canvas canvas

	base     *image.RGBA
	baseFor  string
	baseSize image.Point

	cursor    image.Point
	hasCursor bool
	dragging  bool

	last session.Outcome
}

// NewModel constructs the UI over s. An idle session is advanced to its first image.
func NewModel(s *session.Session, logger *zap.Logger) *Model {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Model{
		session: s,
		logger:  logger,
		keys:    newKeyMap(),
		help:    help.New(),
	}
	if s.State() == session.StateIdle {
		m.apply(session.Advance{})
	}
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.refit()
		return m, nil
	case tea.KeyMsg:
		return m, m.handleKey(msg)
	case tea.MouseMsg:
		m.handleMouse(msg)
		return m, nil
	default:
		return m, nil
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit
	case key.Matches(msg, m.keys.Label):
		if len(msg.Runes) != 1 {
			return nil
		}
		if idx := int(msg.Runes[0] - '1'); idx < len(m.session.Labels()) {
			m.apply(session.LabelLast{Index: idx})
		}
	case key.Matches(msg, m.keys.Undo):
		m.apply(session.UndoLast{})
	case key.Matches(msg, m.keys.Next):
		m.dragging = false
		m.apply(session.Advance{})
	case key.Matches(msg, m.keys.Reset):
		m.apply(session.ResetAll{})
	case key.Matches(msg, m.keys.Mode):
		m.apply(session.ToggleMode{})
	case key.Matches(msg, m.keys.Crop):
		m.apply(session.ToggleCropMode{})
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		m.refit()
	}
	return nil
}

func (m *Model) handleMouse(msg tea.MouseMsg) {
	p, inside := m.canvas.toDisplay(msg.X, msg.Y)
	m.cursor, m.hasCursor = p, inside
	switch msg.Action {
	case tea.MouseActionPress:
		if !inside {
			return
		}
		switch msg.Button {
		case tea.MouseButtonLeft:
			if out := m.apply(session.BeginDraw{At: p}); out.Status == session.StatusOK {
				m.dragging = true
			}
		case tea.MouseButtonRight:
			m.apply(session.RemoveBoxAt{At: p})
		}
	case tea.MouseActionMotion:
		if m.dragging {
			m.session.Dispatch(session.UpdateDraw{To: p})
		}
	case tea.MouseActionRelease:
		if m.dragging {
			m.dragging = false
			m.apply(session.FinalizeDraw{To: p})
		}
	}
}

// apply dispatches cmd and keeps the outcome for the status bar.
func (m *Model) apply(cmd session.Command) session.Outcome {
	out := m.session.Dispatch(cmd)
	if out.Message != "" || out.Status != session.StatusOK {
		m.last = out
	}
	if out.Status == session.StatusFatal {
		m.logger.Error("command failed",
			zap.String(logging.FieldCommand, cmd.String()),
			zap.String(logging.FieldImage, m.session.Current()),
			zap.Error(out.Err))
	}
	if _, ok := cmd.(session.Advance); ok || m.session.Current() != m.baseFor {
		m.refit()
	}
	return out
}

// refit recomputes the canvas for the current image and terminal size.
func (m *Model) refit() {
	if m.session.State() != session.StateAnnotating || m.width == 0 || m.height == 0 {
		m.canvas = canvas{}
		m.base = nil
		m.baseFor = ""
		return
	}
	d := m.session.Display()
	size := image.Pt(m.width, m.canvasRows())
	if m.base != nil && m.baseFor == m.session.Current() && m.baseSize == size {
		return
	}
	m.canvas = fitCanvas(d.Width, d.Height, size.X, size.Y)
	m.base = m.canvas.scaleBase(m.session.DisplayImage())
	m.baseFor = m.session.Current()
	m.baseSize = size
}

// canvasRows returns the rows left for the image above the status lines and help.
func (m *Model) canvasRows() int {
	return max(m.height-2-lipgloss.Height(m.help.View(m.keys)), 1)
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	var body string
	switch {
	case m.session.State() == session.StateExhausted:
		done, total := m.session.Progress()
		msg := doneStyle.Render(fmt.Sprintf("All %d images are labeled (%d/%d). Press ctrl+c to quit.", total, done, total))
		body = lipgloss.Place(m.width, m.canvasRows(), lipgloss.Center, lipgloss.Center, msg)
	case m.base == nil || m.canvas.empty():
		body = lipgloss.Place(m.width, m.canvasRows(), lipgloss.Center, lipgloss.Center, "No image loaded.")
	default:
		draft, drawing := m.session.Draft()
		img := m.canvas.overlay(m.base, m.session.Boxes(), draft, drawing)
		body = lipgloss.PlaceVertical(m.canvasRows(), lipgloss.Top, m.canvas.render(img))
	}
	return strings.Join([]string{body, m.renderStatus(), m.renderBoxList(), m.help.View(m.keys)}, "\n")
}

func (m *Model) renderStatus() string {
	segments := make([]string, 0, 7)
	if current := m.session.Current(); current != "" {
		d := m.session.Display()
		segments = append(segments, filepath.Base(current), fmt.Sprintf("%dx%d", d.Width, d.Height))
	}
	if m.hasCursor {
		segments = append(segments, fmt.Sprintf("x:%d y:%d", m.cursor.X, m.cursor.Y))
	}
	segments = append(segments, m.session.Mode().String())
	if m.session.CropMode() {
		segments = append(segments, "crop on")
	}
	done, total := m.session.Progress()
	segments = append(segments, fmt.Sprintf("%d/%d", done, total))
	line := statusStyle.Render(strings.Join(segments, "  "))
	if note := m.renderOutcome(); note != "" {
		line += "  " + note
	}
	return line
}

func (m *Model) renderOutcome() string {
	switch m.last.Status {
	case session.StatusFatal:
		return fatalStyle.Render(m.last.Message)
	case session.StatusWarning:
		return warnStyle.Render(m.last.Message)
	default:
		return doneStyle.Render(m.last.Message)
	}
}

// renderBoxList lists the boxes of the current image with their label names,
// truncated to the terminal width.
func (m *Model) renderBoxList() string {
	boxes := m.session.Boxes()
	if len(boxes) == 0 {
		return ""
	}
	labels := m.session.Labels()
	parts := make([]string, len(boxes))
	for i, b := range boxes {
		name := "?"
		if b.Labeled() {
			name = labels.Name(b.Label)
		}
		parts[i] = fmt.Sprintf("%d:%s", i+1, name)
	}
	line := "boxes " + strings.Join(parts, " · ")
	if m.width > 0 {
		line = runewidth.Truncate(line, m.width, "…")
	}
	return boxListStyle.Render(line)
}
