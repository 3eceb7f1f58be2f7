package report

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// Align is a column alignment.
type Align int

// Column alignments.
const (
	AlignLeft Align = iota
	AlignRight
)

// Table is a markdown table whose columns are padded to their display width,
// so wide runes in store or category names stay aligned.
type Table struct {
	Header []string
	Align  []Align
	Rows   [][]string
}

// AddRow appends a row.
func (t *Table) AddRow(cells ...string) {
	t.Rows = append(t.Rows, cells)
}

// Lines renders the table.
func (t *Table) Lines() []string {
	colCount := len(t.Header)
	for _, row := range t.Rows {
		colCount = max(colCount, len(row))
	}

	if colCount == 0 {
		return nil
	}

	widths := make([]int, colCount)

	measure := func(row []string) {
		for i, cell := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}

	measure(t.Header)

	for _, row := range t.Rows {
		measure(row)
	}

	for i := range widths {
		// a separator cell needs at least three dashes
		widths[i] = max(widths[i], 3)
	}

	lines := make([]string, 0, len(t.Rows)+2)
	lines = append(lines, t.renderRow(t.Header, widths), t.separator(widths))

	for _, row := range t.Rows {
		lines = append(lines, t.renderRow(row, widths))
	}

	return lines
}

// String renders the table as a single block.
func (t *Table) String() string {
	return strings.Join(t.Lines(), "\n")
}

func (t *Table) align(col int) Align {
	if col < len(t.Align) {
		return t.Align[col]
	}

	return AlignLeft
}

func (t *Table) renderRow(row []string, widths []int) string {
	var sb strings.Builder

	sb.WriteString("|")

	for i, width := range widths {
		cell := ""
		if i < len(row) {
			cell = row[i]
		}

		pad := strings.Repeat(" ", width-runewidth.StringWidth(cell))

		sb.WriteString(" ")

		if t.align(i) == AlignRight {
			sb.WriteString(pad + cell)
		} else {
			sb.WriteString(cell + pad)
		}

		sb.WriteString(" |")
	}

	return sb.String()
}

func (t *Table) separator(widths []int) string {
	var sb strings.Builder

	sb.WriteString("|")

	for i, width := range widths {
		sb.WriteString(" ")

		if t.align(i) == AlignRight {
			sb.WriteString(strings.Repeat("-", width-1) + ":")
		} else {
			sb.WriteString(strings.Repeat("-", width))
		}

		sb.WriteString(" |")
	}

	return sb.String()
}
