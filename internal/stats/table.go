package stats

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

const columnGap = "  "

// column describes one table column. Right-aligned columns hold numbers.
type column struct {
	title string
	right bool
}

// table lays out rows under a header rule, with an optional footer row set
// off by a second rule. Widths are terminal cells, so wide label names align.
type table struct {
	columns []column
	rows    [][]string
	footer  []string
}

func (t *table) add(cells ...string) {
	t.rows = append(t.rows, cells)
}

func (t *table) widths() []int {
	widths := make([]int, len(t.columns))
	measure := func(cells []string) {
		for i := range widths {
			if i < len(cells) {
				widths[i] = max(widths[i], runewidth.StringWidth(cells[i]))
			}
		}
	}
	for i, c := range t.columns {
		widths[i] = runewidth.StringWidth(c.title)
	}
	for _, row := range t.rows {
		measure(row)
	}
	measure(t.footer)
	return widths
}

// lines renders the table without trailing spaces.
func (t *table) lines() []string {
	if len(t.columns) == 0 {
		return nil
	}
	widths := t.widths()
	titles := make([]string, len(t.columns))
	for i, c := range t.columns {
		titles[i] = c.title
	}
	total := 0
	for _, w := range widths {
		total += w
	}
	rule := strings.Repeat("─", total+len(columnGap)*(len(widths)-1))

	out := []string{t.row(titles, widths), rule}
	for _, row := range t.rows {
		out = append(out, t.row(row, widths))
	}
	if len(t.footer) > 0 {
		out = append(out, rule, t.row(t.footer, widths))
	}
	return out
}

func (t *table) row(cells []string, widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		cell := ""
		if i < len(cells) {
			cell = cells[i]
		}
		if t.columns[i].right {
			parts[i] = runewidth.FillLeft(cell, w)
		} else {
			parts[i] = runewidth.FillRight(cell, w)
		}
	}
	return strings.TrimRight(strings.Join(parts, columnGap), " ")
}
