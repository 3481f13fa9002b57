// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Stats holds execution statistics for display.
type Stats struct {
	Opportunities int64
	Executions    int64
	Completed     int64
	Failed        int64
	SuccessRate   float64
	ExpectedUSD   float64
	RealizedUSD   float64
	GasUsed       uint64
}

// StatsComponent renders statistics.
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
	profitStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)

	failedDisplay := valueStyle.Render(fmt.Sprintf("%d", s.stats.Failed))
	if s.stats.Failed > 0 {
		failedDisplay = errorStyle.Render(fmt.Sprintf("%d", s.stats.Failed))
	}

	realizedDisplay := profitStyle.Render(fmt.Sprintf("$%.2f", s.stats.RealizedUSD))
	if s.stats.RealizedUSD < 0 {
		realizedDisplay = errorStyle.Render(fmt.Sprintf("$%.2f", s.stats.RealizedUSD))
	}

	return style.Render("STATS") + "\n" +
		fmt.Sprintf("Opportunities: %s  │  Executions: %s  │  Completed: %s (%.1f%%)  │  Failed: %s\n",
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Opportunities)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Executions)),
			valueStyle.Render(fmt.Sprintf("%d", s.stats.Completed)),
			s.stats.SuccessRate,
			failedDisplay,
		) +
		fmt.Sprintf("Expected: %s      │  Realized: %s     │  Gas used: %s",
			valueStyle.Render(fmt.Sprintf("$%.2f", s.stats.ExpectedUSD)),
			realizedDisplay,
			valueStyle.Render(fmt.Sprintf("%d", s.stats.GasUsed)),
		)
}
