package formatter

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/penwyp/ivt-split/internal/core/router"
	"github.com/penwyp/ivt-split/internal/util"
)

// TableFormatter prints a run report as a box-drawn table
type TableFormatter struct {
	w        io.Writer
	headers  []string
	maxWidth int
	color    bool
}

func NewTableFormatter(w io.Writer) *TableFormatter {
	f := &TableFormatter{
		w:       w,
		headers: []string{"SSP", "Destination", "Rows", "Invalid Imps", "Cost (USD)", "File"},
	}
	if file, ok := w.(*os.File); ok && util.IsTerminal(file) {
		f.maxWidth = util.TerminalWidth(file)
		f.color = true
	}
	return f
}

// WithMaxWidth limits the table to width cells, shortening the file column
func (f *TableFormatter) WithMaxWidth(width int) *TableFormatter {
	f.maxWidth = width
	return f
}

func (f *TableFormatter) Format(report *RunReport) error {
	f.printHeading(report)

	if len(report.Groups) == 0 {
		fmt.Fprintln(f.w, "No groups written")
		return nil
	}

	rows := make([][]string, 0, len(report.Groups)+1)
	var totalRows int
	var totalCount int64
	var totalCost float64
	for _, g := range report.Groups {
		file := g.Path
		if g.Overwrote {
			file += " (overwritten)"
		}
		rows = append(rows, []string{
			g.SSP,
			g.Destination,
			util.FormatCount(int64(g.Rows)),
			util.FormatCount(g.Count),
			util.FormatCurrency(g.Cost),
			file,
		})
		totalRows += g.Rows
		totalCount += g.Count
		totalCost += g.Cost
	}
	totals := []string{
		"Total", "",
		util.FormatCount(int64(totalRows)),
		util.FormatCount(totalCount),
		util.FormatCurrency(totalCost),
		fmt.Sprintf("%d files", report.FilesCreated),
	}

	widths := f.calculateColumnWidths(append(rows, totals))

	f.printBorder(widths, "top")
	f.printRow(f.headers, widths, false)
	f.printBorder(widths, "middle")
	for i, row := range rows {
		f.printRow(row, widths, report.Groups[i].Destination == router.Overflow.String())
	}
	f.printBorder(widths, "middle")
	f.printRow(totals, widths, false)
	f.printBorder(widths, "bottom")

	return nil
}

func (f *TableFormatter) printHeading(report *RunReport) {
	fmt.Fprintf(f.w, "Input:   %s (%s)\n", report.Input, report.Format)
	fmt.Fprintf(f.w, "Output:  %s\n", report.Root)
	if report.Limit != nil {
		fmt.Fprintf(f.w, "Limit:   %s USD\n", router.FormatLimit(*report.Limit))
	}
	if report.SummaryPath != "" {
		fmt.Fprintf(f.w, "Summary: %s\n", report.SummaryPath)
	}
	fmt.Fprintf(f.w, "Run:     %s in %s\n", report.RunID, util.FormatDuration(report.Duration))
}

// calculateColumnWidths sizes columns to their content, then shrinks the
// file column when the table would not fit maxWidth
func (f *TableFormatter) calculateColumnWidths(rows [][]string) []int {
	widths := make([]int, len(f.headers))
	for i, header := range f.headers {
		widths[i] = util.GetDisplayWidth(header)
	}
	for _, row := range rows {
		for i, value := range row {
			if w := util.GetDisplayWidth(value); w > widths[i] {
				widths[i] = w
			}
		}
	}

	if f.maxWidth > 0 {
		// 3 cells per column for padding and separator, plus the left border
		total := 1
		for _, w := range widths {
			total += w + 3
		}
		last := len(widths) - 1
		if over := total - f.maxWidth; over > 0 {
			minFile := util.GetDisplayWidth(f.headers[last])
			widths[last] = max(widths[last]-over, minFile)
		}
	}
	return widths
}

func (f *TableFormatter) printBorder(widths []int, borderType string) {
	var left, middle, right string

	switch borderType {
	case "top":
		left, middle, right = "┌", "┬", "┐"
	case "middle":
		left, middle, right = "├", "┼", "┤"
	case "bottom":
		left, middle, right = "└", "┴", "┘"
	}

	var b strings.Builder
	b.WriteString(left)
	for i, width := range widths {
		b.WriteString(strings.Repeat("─", width+2))
		if i < len(widths)-1 {
			b.WriteString(middle)
		}
	}
	b.WriteString(right)
	fmt.Fprintln(f.w, b.String())
}

// printRow left-aligns text columns and right-aligns the numeric ones
func (f *TableFormatter) printRow(values []string, widths []int, highlight bool) {
	var b strings.Builder
	b.WriteString("│")
	for i, value := range values {
		value = util.TruncateString(value, widths[i])
		var cell string
		switch i {
		case 2, 3, 4:
			cell = util.PadString(value, widths[i], false)
		default:
			cell = util.PadString(value, widths[i], true)
		}
		if i == 1 && highlight {
			cell = util.Colorize(cell, util.ColorYellow, f.color)
		}
		b.WriteString(" " + cell + " │")
	}
	fmt.Fprintln(f.w, b.String())
}
