package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/facette/natsort"

	"github.com/camden-git/sitephotosync/traversal"
	"github.com/camden-git/sitephotosync/workers"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Faint(true)
)

// summary is what a command prints when it is done. Either part may be nil.
type summary struct {
	Sort   *workers.SortStats
	Report *traversal.Report
}

var outcomeOrder = []traversal.OutcomeKind{
	traversal.OutcomeUploaded,
	traversal.OutcomeSkippedCompleted,
	traversal.OutcomeSkippedNoPhotos,
	traversal.OutcomeDeferredOverQuota,
	traversal.OutcomeClassificationFailed,
	traversal.OutcomeDispatchFailed,
}

func renderSummary(s summary) string {
	var sb strings.Builder

	if s.Sort != nil {
		sb.WriteString(titleStyle.Render("Sorted photos"))
		sb.WriteString("\n")
		codes := make([]string, 0, len(s.Sort.Sorted))
		for code := range s.Sort.Sorted {
			codes = append(codes, code)
		}
		natsort.Sort(codes)
		rows := make([][]string, 0, len(codes)+2)
		for _, code := range codes {
			rows = append(rows, []string{code, strconv.Itoa(s.Sort.Sorted[code])})
		}
		rows = append(rows,
			[]string{"unsorted", strconv.Itoa(s.Sort.Unsorted)},
			[]string{"failed", strconv.Itoa(s.Sort.Failed)})
		sb.WriteString(renderTable([]string{"Folder", "Photos"}, rows))
	}

	if r := s.Report; r != nil {
		sb.WriteString(titleStyle.Render("Run " + r.RunID))
		sb.WriteString("\n")
		rows := make([][]string, 0, len(outcomeOrder))
		for _, kind := range outcomeOrder {
			if n := r.Count(kind); n > 0 {
				rows = append(rows, []string{string(kind), strconv.Itoa(n)})
			}
		}
		rows = append(rows, []string{"photos uploaded", strconv.Itoa(r.TotalUploaded())})
		sb.WriteString(renderTable([]string{"Outcome", "Count"}, rows))

		end := "stopped before the end of the table"
		if r.EndOfTable {
			end = "reached the end of the table"
		}
		sb.WriteString(mutedStyle.Render(fmt.Sprintf("%d rows visited, %d unreadable, %s", r.Rows, r.ReadFailures, end)))
		sb.WriteString("\n")

		for _, o := range r.Outcomes {
			if o.Reason == "" {
				continue
			}
			sb.WriteString(failStyle.Render(fmt.Sprintf("%s  %s", o.Code, o.Reason)))
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = max(widths[i], lipgloss.Width(cell))
			}
		}
	}

	var sb strings.Builder
	sep := mutedStyle.Render("|")
	line := func(style lipgloss.Style, cells []string) {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = style.Width(widths[i] + 2).Render(cell)
		}
		sb.WriteString(strings.Join(parts, sep))
		sb.WriteString("\n")
	}

	line(headerStyle, headers)
	total := len(widths) - 1
	for _, w := range widths {
		total += w + 2
	}
	sb.WriteString(mutedStyle.Render(strings.Repeat("-", total)))
	sb.WriteString("\n")
	for _, row := range rows {
		line(cellStyle, row)
	}
	sb.WriteString("\n")
	return sb.String()
}
