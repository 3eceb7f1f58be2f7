// Package report renders a markdown summary of a pipeline run.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"hotprices/internal/normalizer"
	"hotprices/internal/pipeline"
)

var storeColumns = []string{"Store", "Groups", "Records", "Items", "Skipped", "Failed", "Duplicates", "Uncategorised"}

// StoreTable builds the per-store stats table with a trailing total row.
func StoreTable(stores []normalizer.StoreStats) *Table {
	t := &Table{Header: storeColumns, Align: []Align{AlignLeft}}
	for range storeColumns[1:] {
		t.Align = append(t.Align, AlignRight)
	}

	var total normalizer.StoreStats

	for _, s := range stores {
		t.AddRow(statsRow(s.Store, s)...)

		total.Groups += s.Groups
		total.Records += s.Records
		total.Items += s.Items
		total.Skipped += s.Skipped
		total.Failed += s.Failed
		total.Duplicates += s.Duplicates
		total.Uncategorised += s.Uncategorised
	}

	if len(stores) > 1 {
		t.AddRow(statsRow("**Total**", total)...)
	}

	return t
}

func statsRow(label string, s normalizer.StoreStats) []string {
	return []string{
		label,
		strconv.Itoa(s.Groups),
		strconv.Itoa(s.Records),
		strconv.Itoa(s.Items),
		strconv.Itoa(s.Skipped),
		strconv.Itoa(s.Failed),
		strconv.Itoa(s.Duplicates),
		strconv.Itoa(s.Uncategorised),
	}
}

// Render returns the markdown report of res.
func Render(res *pipeline.RunResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Price run %s\n\n", res.Day)
	fmt.Fprintf(&sb, "- Run: `%s`\n", res.RunID)
	fmt.Fprintf(&sb, "- Duration: %s\n", res.Duration.Round(time.Millisecond))
	fmt.Fprintf(&sb, "- Snapshot items: %d\n", res.Total)

	if res.HadPrevious {
		fmt.Fprintf(&sb, "- Price changes: %d, unchanged: %d, new products: %d\n",
			res.Merge.Changed, res.Merge.Unchanged, res.Merge.New)
		fmt.Fprintf(&sb, "- Products not in latest list: %d\n", res.Merge.Unmatched)
	} else {
		sb.WriteString("- No previous snapshot\n")
	}

	if res.CarriedOver > 0 {
		fmt.Fprintf(&sb, "- Carried over from other stores: %d\n", res.CarriedOver)
	}

	sb.WriteString("\n## Stores\n\n")
	sb.WriteString(StoreTable(res.Stores).String())
	sb.WriteString("\n")

	if len(res.Files) > 0 {
		files := &Table{
			Header: []string{"File", "Items", "SHA-256"},
			Align:  []Align{AlignLeft, AlignRight, AlignLeft},
		}

		for _, f := range res.Files {
			files.AddRow(f.File, strconv.Itoa(f.Items), shortHash(f.Hash))
		}

		sb.WriteString("\n## Published\n\n")
		sb.WriteString(files.String())
		sb.WriteString("\n")
	}

	return sb.String()
}

// Write renders res to w.
func Write(w io.Writer, res *pipeline.RunResult) error {
	if _, err := io.WriteString(w, Render(res)); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}

	return h
}
