package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/trezcool/schoolbus/core/collection"
	"github.com/trezcool/schoolbus/core/transport"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	subtleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// itemColumns returns "id" followed by every other field name, sorted.
func itemColumns(items []collection.Item) []string {
	seen := map[string]bool{collection.IDField: true}
	var rest []string
	for _, it := range items {
		for k := range it {
			if !seen[k] {
				seen[k] = true
				rest = append(rest, k)
			}
		}
	}
	sort.Strings(rest)
	return append([]string{collection.IDField}, rest...)
}

func renderItems(items []collection.Item) string {
	if len(items) == 0 {
		return subtleStyle.Render("no items")
	}

	columns := itemColumns(items)
	rows := make([][]string, 0, len(items))
	for _, it := range items {
		row := make([]string, len(columns))
		for i, col := range columns {
			if v, ok := it[col]; ok && v != nil {
				row[i] = fmt.Sprint(v)
			}
		}
		rows = append(rows, row)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(columns...).
		Rows(rows...).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	return t.String()
}

func renderCounts(counts []transport.StatusCount) string {
	parts := make([]string, 0, len(counts))
	total := 0
	for _, c := range counts {
		parts = append(parts, fmt.Sprintf("%s: %d", c.Status, c.Count))
		total += c.Count
	}
	line := fmt.Sprintf("%d items", total)
	if len(parts) > 0 {
		line += " (" + strings.Join(parts, ", ") + ")"
	}
	return subtleStyle.Render(line)
}

func renderProgress(p collection.Progress) string {
	return subtleStyle.Render(fmt.Sprintf("chunk %d/%d: %d succeeded, %d failed so far", p.Chunk, p.Chunks, p.Success, p.Failure))
}

func renderSummary(s collection.Summary) string {
	line := fmt.Sprintf("%s: %d of %d succeeded", s.Label, s.Success, s.Total)
	switch {
	case s.Failure == 0:
		return successStyle.Render(line)
	case s.Partial():
		return warningStyle.Render(line + ", failed: " + strings.Join(s.Failed, " "))
	default:
		return errorStyle.Render(line + ", failed: " + strings.Join(s.Failed, " "))
	}
}
