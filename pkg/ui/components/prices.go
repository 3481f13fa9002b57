// Package components provides reusable TUI components.
package components

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
)

// PriceRow represents one venue quote for a token.
type PriceRow struct {
	Symbol    string
	Venue     string
	Price     decimal.Decimal
	UpdatedAt string
}

// CostBreakdown holds domain-calculated cost data for display.
type CostBreakdown struct {
	Route           string
	TradeSize       string
	TradeValueUSD   float64
	GrossProfitUSD  float64
	GasCostUSD      float64
	SlippageUSD     float64
	FlashloanFeeUSD float64
	NetProfitUSD    float64
	IsProfitable    bool
}

// PricesComponent renders the cross-venue price table.
type PricesComponent struct {
	rows          map[string]PriceRow // keyed by "symbol/venue"
	gasGwei       float64
	congestion    string
	costBreakdown *CostBreakdown // Pre-calculated by domain
}

// NewPricesComponent creates a new prices component.
func NewPricesComponent() *PricesComponent {
	return &PricesComponent{
		rows: make(map[string]PriceRow),
	}
}

// Update records the latest quote for a token on a venue.
func (p *PricesComponent) Update(row PriceRow) {
	p.rows[row.Symbol+"/"+row.Venue] = row
}

// SetGas sets the gas price in gwei and the congestion level.
func (p *PricesComponent) SetGas(gwei float64, congestion string) {
	p.gasGwei = gwei
	p.congestion = congestion
}

// SetCostBreakdown sets the domain-calculated cost breakdown.
// UI just displays this data, no calculations needed.
func (p *PricesComponent) SetCostBreakdown(breakdown CostBreakdown) {
	p.costBreakdown = &breakdown
}

// View renders the prices component.
func (p *PricesComponent) View() string {
	if len(p.rows) == 0 {
		return "Waiting for price data..."
	}

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED"))
	positiveStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	negativeStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	warnStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))

	var result string
	result = headerStyle.Render("PRICES")
	if p.gasGwei > 0 {
		result += dimStyle.Render(fmt.Sprintf("  gas %.1f gwei (%s)", p.gasGwei, p.congestion))
	}
	result += "\n\n"

	// Simple aligned table without box drawing
	result += fmt.Sprintf("  %-8s  %-14s  %14s  %10s\n",
		"Token", "Venue", "Price", "Updated")
	result += dimStyle.Render("  " + strings.Repeat("─", 52)) + "\n"

	keys := make([]string, 0, len(p.rows))
	for k := range p.rows {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		row := p.rows[k]
		result += fmt.Sprintf("  %-8s  %-14s  %14s  %10s\n",
			row.Symbol,
			row.Venue,
			"$"+row.Price.StringFixed(2),
			dimStyle.Render(row.UpdatedAt),
		)
	}

	// Cost breakdown section - DISPLAY ONLY, no calculations
	// All values come pre-calculated from the domain
	result += "\n"
	result += dimStyle.Render("  " + strings.Repeat("─", 52)) + "\n"

	if p.costBreakdown != nil {
		cb := p.costBreakdown

		// Dynamic title based on profitability (from domain)
		if cb.IsProfitable {
			result += headerStyle.Render("  OPPORTUNITY FOUND!") + "\n\n"
		} else {
			result += headerStyle.Render("  WHY NO OPPORTUNITY?") + "\n\n"
		}

		result += fmt.Sprintf("  Route: %s\n", dimStyle.Render(cb.Route))
		result += fmt.Sprintf("  Trade size: %s\n", dimStyle.Render(cb.TradeSize))
		result += fmt.Sprintf("  Trade value: %s\n", dimStyle.Render(fmt.Sprintf("$%.0f", cb.TradeValueUSD)))
		result += fmt.Sprintf("  Gross profit: %s\n", warnStyle.Render(fmt.Sprintf("$%.2f", cb.GrossProfitUSD)))
		result += fmt.Sprintf("  Gas cost: %s\n", negativeStyle.Render(fmt.Sprintf("-$%.2f", cb.GasCostUSD)))
		result += fmt.Sprintf("  Slippage: %s\n", negativeStyle.Render(fmt.Sprintf("-$%.2f", cb.SlippageUSD)))
		if cb.FlashloanFeeUSD > 0 {
			result += fmt.Sprintf("  Flashloan fee: %s\n", negativeStyle.Render(fmt.Sprintf("-$%.2f", cb.FlashloanFeeUSD)))
		}

		if cb.IsProfitable {
			result += fmt.Sprintf("  Net profit: %s\n", positiveStyle.Render(fmt.Sprintf("+$%.2f", cb.NetProfitUSD)))
		} else {
			result += fmt.Sprintf("  Net profit: %s\n", negativeStyle.Render(fmt.Sprintf("$%.2f", cb.NetProfitUSD)))
			result += "\n"
			result += dimStyle.Render("  Spread too thin to clear costs") + "\n"
		}
	} else {
		result += dimStyle.Render("  Waiting for cost analysis...") + "\n"
	}

	return result
}
