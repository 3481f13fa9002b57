// Package components provides reusable TUI components.
package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// OpportunityRow represents an opportunity in the list.
type OpportunityRow struct {
	Timestamp string
	Route     string // "uniswap-v2→sushiswap"
	Pair      string // "WETH/USDC"
	Hops      int
	SpreadPct decimal.Decimal
	NetUSD    decimal.Decimal
	Risk      string // "low", "medium", "high"
	Status    string
}

// OpportunitiesComponent renders the opportunities list.
type OpportunitiesComponent struct {
	rows    []OpportunityRow
	maxRows int
	offset  int
	visible int
}

// NewOpportunitiesComponent creates a new opportunities component.
func NewOpportunitiesComponent(maxRows int) *OpportunitiesComponent {
	return &OpportunitiesComponent{
		rows:    make([]OpportunityRow, 0),
		maxRows: maxRows,
		visible: 10,
	}
}

// Add adds a new opportunity to the list.
func (o *OpportunitiesComponent) Add(row OpportunityRow) {
	o.rows = append([]OpportunityRow{row}, o.rows...)
	if len(o.rows) > o.maxRows {
		o.rows = o.rows[:o.maxRows]
	}
}

// Clear clears all opportunities.
func (o *OpportunitiesComponent) Clear() {
	o.rows = make([]OpportunityRow, 0)
	o.offset = 0
}

// ScrollUp moves the view window toward newer rows.
func (o *OpportunitiesComponent) ScrollUp() {
	if o.offset > 0 {
		o.offset--
	}
}

// ScrollDown moves the view window toward older rows.
func (o *OpportunitiesComponent) ScrollDown() {
	if o.offset < len(o.rows)-o.visible {
		o.offset++
	}
}

// View renders the opportunities component.
func (o *OpportunitiesComponent) View() string {
	if len(o.rows) == 0 {
		return "No opportunities detected yet..."
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	lowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	mediumStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	highStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	result := headerStyle.Render(fmt.Sprintf("OPPORTUNITIES (last %d)\n", o.maxRows))
	result += "┌──────────┬──────────────────────────┬────────────┬──────┬─────────┬──────────┬────────┬────────────┐\n"
	result += "│   Time   │          Route           │    Pair    │ Hops │ Spread  │   Net    │  Risk  │   Status   │\n"
	result += "├──────────┼──────────────────────────┼────────────┼──────┼─────────┼──────────┼────────┼────────────┤\n"

	rows := o.rows
	if o.offset < len(rows) {
		rows = rows[o.offset:]
	}
	if len(rows) > o.visible {
		rows = rows[:o.visible]
	}
	for _, row := range rows {
		riskStyle := mediumStyle
		switch row.Risk {
		case "low":
			riskStyle = lowStyle
		case "high":
			riskStyle = highStyle
		}

		result += fmt.Sprintf("│%9s │%25s │%11s │%5d │%8s │%9s │ %s│%11s │\n",
			row.Timestamp,
			row.Route,
			row.Pair,
			row.Hops,
			fmt.Sprintf("%.2f%%", row.SpreadPct.InexactFloat64()),
			fmt.Sprintf("$%.2f", row.NetUSD.InexactFloat64()),
			riskStyle.Render(fmt.Sprintf("%-6s", row.Risk)),
			row.Status,
		)
	}

	result += "└──────────┴──────────────────────────┴────────────┴──────┴─────────┴──────────┴────────┴────────────┘"

	return result
}
