package domain

import "github.com/shopspring/decimal"

// SimulationResult is the pre-flight gate's verdict. It is a conservative
// estimate, not an on-chain simulation: it prices gas at current rates,
// takes the venue's quoted impact for the trade size and checks that the
// trade survives both.
type SimulationResult struct {
	OK             bool
	Reason         string
	GasCostUSD     decimal.Decimal
	SlippagePct    decimal.Decimal
	SlippageUSD    decimal.Decimal
	ExpectedUSD    decimal.Decimal // profit claimed by the opportunity
	SimulatedUSD   decimal.Decimal // profit after simulated costs
	DeviationPct   decimal.Decimal // |simulated - expected| / expected * 100
	GasUnits       uint64
	GasPriceGwei   float64
	FlashloanReady bool
}

// Result is the execution service's uniform answer: every path through
// ExecuteTrade produces one, success or not.
type Result struct {
	RecordID      string
	OpportunityID string
	Status        RecordStatus
	TxHash        string
	GasUsed       uint64
	ActualUSD     decimal.Decimal
	Error         string
	Simulation    *SimulationResult
}

// Succeeded reports whether the trade completed on chain.
func (r Result) Succeeded() bool {
	return r.Status == RecordCompleted
}
