// Package infra contains infrastructure adapters for the arbitrage context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fd1az/dexarb/business/arbitrage/domain"
)

// ConsoleNotifier writes detected opportunities to a terminal.
type ConsoleNotifier struct {
	out io.Writer
}

// NewConsoleNotifier creates a ConsoleNotifier writing to stdout.
func NewConsoleNotifier() *ConsoleNotifier {
	return &ConsoleNotifier{
		out: os.Stdout,
	}
}

// NewConsoleNotifierTo creates a ConsoleNotifier writing to out.
func NewConsoleNotifierTo(out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{out: out}
}

// Start prints the banner.
func (n *ConsoleNotifier) Start(ctx context.Context) error {
	fmt.Fprintln(n.out, "DEX Arbitrage Engine Started")
	fmt.Fprintln(n.out, "============================")
	return nil
}

// Notify outputs an arbitrage opportunity to the console.
func (n *ConsoleNotifier) Notify(_ context.Context, opp *domain.Opportunity) {
	fmt.Fprintln(n.out, "")
	fmt.Fprintln(n.out, "================================================================================")
	fmt.Fprintln(n.out, "ARBITRAGE OPPORTUNITY DETECTED")
	fmt.Fprintln(n.out, "================================================================================")
	fmt.Fprintf(n.out, "ID:             %s\n", opp.ID)
	fmt.Fprintf(n.out, "Discovered:     %s\n", opp.DiscoveredAt.Format(time.RFC3339))
	fmt.Fprintf(n.out, "Route:          %s\n", routeString(opp))
	fmt.Fprintf(n.out, "Pair:           %s -> %s\n", opp.TokenIn, opp.TokenOut)
	fmt.Fprintln(n.out, "--------------------------------------------------------------------------------")
	fmt.Fprintln(n.out, "TRADE DETAILS")
	fmt.Fprintf(n.out, "  Size:           %s (%s USD)\n", opp.TradeSize.StringFixed(4), opp.TradeSizeUSD.StringFixed(2))
	fmt.Fprintf(n.out, "  Spread:         %s%%\n", opp.SpreadPct.StringFixed(3))
	fmt.Fprintf(n.out, "  Gas Cost:       $%s (%d units)\n", opp.Costs.GasUSD.StringFixed(2), opp.Costs.GasUnits)
	fmt.Fprintf(n.out, "  Slippage:       $%s (%s%%)\n", opp.Costs.SlippageUSD.StringFixed(2), opp.Costs.SlippagePct.StringFixed(3))
	if opp.Costs.FlashloanFeeUSD.IsPositive() {
		fmt.Fprintf(n.out, "  Flashloan Fee:  $%s\n", opp.Costs.FlashloanFeeUSD.StringFixed(2))
	}
	fmt.Fprintln(n.out, "--------------------------------------------------------------------------------")
	fmt.Fprintln(n.out, "PROFIT")
	fmt.Fprintf(n.out, "  Gross:          $%s\n", opp.Costs.GrossUSD.StringFixed(2))
	fmt.Fprintf(n.out, "  Net:            $%s (%s%%)\n", opp.NetProfitUSD.StringFixed(2), opp.NetProfitPct.StringFixed(2))
	fmt.Fprintf(n.out, "  Risk:           %s (score %d, confidence %d%%)\n", opp.Risk.Level, opp.Risk.Score, opp.Risk.Confidence)
	for _, factor := range opp.Risk.Factors {
		fmt.Fprintf(n.out, "    - %s\n", factor)
	}
	fmt.Fprintln(n.out, "================================================================================")
}

// UpdateConnectionStatus outputs connection status changes.
func (n *ConsoleNotifier) UpdateConnectionStatus(name string, connected bool, latency time.Duration) {
	status := "disconnected"
	if connected {
		status = fmt.Sprintf("connected (%s)", latency)
	}
	fmt.Fprintf(n.out, "[%s] %s: %s\n", time.Now().Format("15:04:05"), name, status)
}

// Stop prints the shutdown line.
func (n *ConsoleNotifier) Stop() error {
	fmt.Fprintln(n.out, "")
	fmt.Fprintln(n.out, "DEX Arbitrage Engine Stopped")
	return nil
}

func routeString(opp *domain.Opportunity) string {
	if len(opp.Path) == 0 {
		return fmt.Sprintf("%s -> %s", opp.SourceVenue, opp.TargetVenue)
	}
	venues := make([]string, len(opp.Path))
	for i, hop := range opp.Path {
		venues[i] = string(hop.Venue)
	}
	return fmt.Sprintf("%s (%d hops)", strings.Join(venues, " -> "), len(opp.Path))
}
