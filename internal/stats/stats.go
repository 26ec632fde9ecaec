// Package stats reports annotation progress from sidecar files.
package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/verte-zerg/boxlabel/internal/model"
)

const (
	sparkChars          = " .:-=+*#%@"
	terminalWidthBackup = 80
	sparkIndent         = len("Boxes/image: ")
)

var headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))

// Options controls report rendering.
type Options struct {
	Top    int
	Window int
	Width  int
	Color  bool
}

// MovingAverage computes a rolling mean over the provided window size.
func MovingAverage(values []float64, window int) []float64 {
	if window <= 1 || len(values) == 0 {
		out := make([]float64, len(values))
		copy(out, values)
		return out
	}
	out := make([]float64, len(values))
	var sum float64
	for i := 0; i < len(values); i++ {
		sum += values[i]
		if i >= window {
			sum -= values[i-window]
		}
		den := float64(i + 1)
		if i >= window {
			den = float64(window)
		}
		out[i] = sum / den
	}
	return out
}

// Sparkline renders a single-line ASCII sparkline for the values.
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	minVal, maxVal := values[0], values[0]
	for _, v := range values[1:] {
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	if math.Abs(maxVal-minVal) < 1e-9 {
		return strings.Repeat(string(sparkChars[len(sparkChars)/2]), len(values))
	}
	var b strings.Builder
	for _, v := range values {
		pos := (v - minVal) / (maxVal - minVal)
		idx := int(math.Round(pos * float64(len(sparkChars)-1)))
		idx = max(0, min(idx, len(sparkChars)-1))
		b.WriteByte(sparkChars[idx])
	}
	return b.String()
}

// Render prints the summary, the per-label table and the boxes-per-image sparkline.
func Render(w io.Writer, r Report, labels model.LabelSet, opts Options) error {
	if err := RenderSummary(w, r, opts.Color); err != nil {
		return err
	}
	if err := RenderLabelTable(w, r, labels, opts); err != nil {
		return err
	}
	return RenderCurve(w, r, opts)
}

// RenderSummary prints progress counters.
func RenderSummary(w io.Writer, r Report, useColor bool) error {
	if _, err := fmt.Fprintln(w, heading("Summary", useColor)); err != nil {
		return err
	}
	pct := 0.0
	if r.Total > 0 {
		pct = float64(r.Labeled) / float64(r.Total) * 100
	}
	lines := []string{
		fmt.Sprintf("Directory: %s", r.Dir),
		fmt.Sprintf("Images: %d", r.Total),
		fmt.Sprintf("Labeled: %d (%.1f%%)", r.Labeled, pct),
		fmt.Sprintf("Remaining: %d", r.Remaining()),
		fmt.Sprintf("Without boxes: %d", r.Empty),
		fmt.Sprintf("Boxes: %d", r.Boxes),
	}
	if r.Unknown > 0 {
		lines = append(lines, fmt.Sprintf("Unknown label index: %d", r.Unknown))
	}
	if len(r.Malformed) > 0 {
		lines = append(lines, fmt.Sprintf("Malformed label files: %s", strings.Join(r.Malformed, ", ")))
	}
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderLabelTable prints box counts per label, most used first. Top limits
// the rows; zero lists every configured label.
func RenderLabelTable(w io.Writer, r Report, labels model.LabelSet, opts Options) error {
	if r.Boxes == 0 {
		_, err := fmt.Fprintln(w, "No boxes found.")
		return err
	}
	if _, err := fmt.Fprintln(w, heading("Per-Label", opts.Color)); err != nil {
		return err
	}
	n := opts.Top
	if n <= 0 {
		n = len(r.PerLabel)
	}
	tbl := table{columns: []column{
		{title: "Key", right: true},
		{title: "Label"},
		{title: "Boxes", right: true},
		{title: "Share", right: true},
	}}
	for _, lc := range TopLabels(r.PerLabel, n) {
		tbl.add(
			fmt.Sprintf("%d", lc.Index+1),
			labels.Name(lc.Index),
			fmt.Sprintf("%d", lc.Count),
			fmt.Sprintf("%.1f%%", float64(lc.Count)/float64(r.Boxes)*100),
		)
	}
	tbl.footer = []string{"", "total", fmt.Sprintf("%d", r.Boxes), "100.0%"}
	lines := tbl.lines()
	for _, line := range lines {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// RenderCurve prints a sparkline of boxes per labeled image, smoothed over
// Window images and cut to the newest values that fit Width.
func RenderCurve(w io.Writer, r Report, opts Options) error {
	if len(r.PerImage) == 0 {
		return nil
	}
	values := MovingAverage(r.PerImage, opts.Window)
	width := opts.Width
	if width <= 0 {
		width = terminalWidthBackup
	}
	if room := width - sparkIndent; room > 0 && len(values) > room {
		values = values[len(values)-room:]
	}
	_, err := fmt.Fprintf(w, "Boxes/image: %s\n", Sparkline(values))
	return err
}

func heading(text string, useColor bool) string {
	if !useColor {
		return text
	}
	return headingStyle.Render(text)
}

// TerminalWidth returns the width of stdout or a fallback when it is not a terminal.
func TerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return terminalWidthBackup
	}
	return width
}

// ShouldUseColor reports whether w is a terminal and NO_COLOR is unset.
func ShouldUseColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
