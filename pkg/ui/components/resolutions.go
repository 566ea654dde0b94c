// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// ResolutionRow represents one completed resolution in the feed.
type ResolutionRow struct {
	Time     string
	ID       string
	Source   string // "store", "cache", "network"
	Known    bool
	Fresh    bool
	Duration time.Duration
}

// ResolutionsComponent renders the recent resolutions feed, newest first.
type ResolutionsComponent struct {
	rows    []ResolutionRow
	maxRows int
	visible int
	offset  int
}

// NewResolutionsComponent creates a new resolutions feed.
func NewResolutionsComponent(maxRows int) *ResolutionsComponent {
	return &ResolutionsComponent{
		rows:    make([]ResolutionRow, 0),
		maxRows: maxRows,
		visible: 10,
	}
}

// Add prepends a resolution to the feed and resets the scroll position.
func (c *ResolutionsComponent) Add(row ResolutionRow) {
	c.rows = append([]ResolutionRow{row}, c.rows...)
	if len(c.rows) > c.maxRows {
		c.rows = c.rows[:c.maxRows]
	}
	c.offset = 0
}

// Clear empties the feed.
func (c *ResolutionsComponent) Clear() {
	c.rows = make([]ResolutionRow, 0)
	c.offset = 0
}

// Len returns the number of resolutions kept in the feed.
func (c *ResolutionsComponent) Len() int {
	return len(c.rows)
}

// ScrollUp moves the window toward newer entries.
func (c *ResolutionsComponent) ScrollUp() {
	if c.offset > 0 {
		c.offset--
	}
}

// ScrollDown moves the window toward older entries.
func (c *ResolutionsComponent) ScrollDown() {
	if c.offset < len(c.rows)-c.visible {
		c.offset++
	}
}

// View renders the resolutions feed.
func (c *ResolutionsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	freshStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	staleStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	unknownStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	if len(c.rows) == 0 {
		return headerStyle.Render("RESOLUTIONS") + "\n\n" +
			lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280")).Render("  No resolutions yet...")
	}

	result := headerStyle.Render(fmt.Sprintf("RESOLUTIONS (last %d)\n", c.maxRows))
	result += "┌──────────┬──────────────────────────┬─────────┬────────┬─────────────┐\n"
	result += "│   Time   │        Identifier        │ Source  │   ms   │   Outcome   │\n"
	result += "├──────────┼──────────────────────────┼─────────┼────────┼─────────────┤\n"

	end := c.offset + c.visible
	if end > len(c.rows) {
		end = len(c.rows)
	}
	for _, row := range c.rows[c.offset:end] {
		var icon, outcome string
		var style lipgloss.Style
		switch {
		case !row.Known:
			icon, outcome, style = "✗", "unknown", unknownStyle
		case row.Fresh:
			icon, outcome, style = "✓", "fresh", freshStyle
		default:
			icon, outcome, style = "~", "stale", staleStyle
		}

		// Pad before styling so ANSI escapes don't skew the column width.
		result += fmt.Sprintf("│ %8s │ %-24s │ %-7s │ %6d │ %s %s │\n",
			row.Time,
			truncateID(row.ID, 24),
			row.Source,
			row.Duration.Milliseconds(),
			icon,
			style.Render(fmt.Sprintf("%-9s", outcome)),
		)
	}

	result += "└──────────┴──────────────────────────┴─────────┴────────┴─────────────┘"

	return result
}

// truncateID shortens long identifiers, keeping the tail where the
// distinguishing part of a did usually lives.
func truncateID(id string, max int) string {
	if len(id) <= max {
		return id
	}
	head := max/2 - 1
	tail := max - head - 1
	return id[:head] + "…" + id[len(id)-tail:]
}
