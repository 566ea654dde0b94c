// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds node counters for display.
type Stats struct {
	StoredDescriptors int
	CachedRecords     int
	Resolutions       int64
	Unknown           int64
	NetworkHits       int64
	Errors            int64
}

// StatsComponent renders node statistics.
type StatsComponent struct {
	stats Stats
}

// NewStatsComponent creates a new stats component.
func NewStatsComponent() *StatsComponent {
	return &StatsComponent{}
}

// Update updates the statistics.
func (s *StatsComponent) Update(stats Stats) {
	s.stats = stats
}

// View renders the stats component.
func (s *StatsComponent) View() string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Bold(true)
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)

	hitRate := float64(0)
	if s.stats.Resolutions > 0 {
		hitRate = float64(s.stats.Resolutions-s.stats.NetworkHits) / float64(s.stats.Resolutions) * 100
	}

	errorsDisplay := valueStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	if s.stats.Errors > 0 {
		errorsDisplay = errorStyle.Render(fmt.Sprintf("%d", s.stats.Errors))
	}

	return style.Render("STORE & CACHE") + "\n" +
		fmt.Sprintf("Descriptors: %s  │  Cached records: %s\n",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.StoredDescriptors)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.CachedRecords)),
		) +
		fmt.Sprintf("Resolutions: %s  │  Local hit rate: %s  │  Unknown: %s  │  Errors: %s",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Resolutions)),
			valueStyle.Render(fmt.Sprintf("%.1f%%", hitRate)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Unknown)),
			errorsDisplay,
		)
}
