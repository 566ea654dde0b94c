// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// ChainRow represents one managed network in the chain table.
type ChainRow struct {
	ChainID   uint64
	Name      string
	State     string // "connected", "probing", "degraded"
	Endpoint  string
	Height    uint64
	Failovers int
}

// ChainsComponent renders network connectivity as a table.
type ChainsComponent struct {
	table table.Model
	count int
}

// NewChainsComponent creates the chain table with fixed columns.
func NewChainsComponent() *ChainsComponent {
	columns := []table.Column{
		{Title: "Chain", Width: 14},
		{Title: "State", Width: 12},
		{Title: "Height", Width: 10},
		{Title: "FO", Width: 4},
		{Title: "Endpoint", Width: 30},
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithHeight(4),
		table.WithFocused(false),
	)

	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Bold(true).
		Foreground(lipgloss.Color("#7C3AED")).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("#374151")).
		BorderBottom(true)
	// No row cursor: the table is display-only.
	styles.Selected = lipgloss.NewStyle()
	t.SetStyles(styles)

	return &ChainsComponent{table: t}
}

// SetRows replaces the table contents with the latest snapshot.
func (c *ChainsComponent) SetRows(rows []ChainRow) {
	out := make([]table.Row, 0, len(rows))
	for _, r := range rows {
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("chain-%d", r.ChainID)
		}
		out = append(out, table.Row{
			name,
			stateCell(r.State),
			fmt.Sprintf("%d", r.Height),
			fmt.Sprintf("%d", r.Failovers),
			r.Endpoint,
		})
	}
	c.count = len(out)
	c.table.SetRows(out)
	if len(out) > 0 {
		c.table.SetHeight(len(out) + 1) // header row plus data rows
	}
}

// Count returns the number of networks currently shown.
func (c *ChainsComponent) Count() int {
	return c.count
}

func stateCell(state string) string {
	switch state {
	case "connected":
		return "● connected"
	case "probing":
		return "◌ probing"
	case "degraded":
		return "○ degraded"
	default:
		return state
	}
}

// View renders the chain table.
func (c *ChainsComponent) View() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	out := headerStyle.Render("NETWORKS") + "\n\n"
	if c.count == 0 {
		return out + mutedStyle.Render("  No networks configured")
	}
	return out + c.table.View()
}
