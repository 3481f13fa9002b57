package domain

import "strings"

// Pair identifies a monitored market as two token contract addresses.
type Pair struct {
	Base  string // token being priced
	Quote string // denominating token
}

// NewPair creates a pair from two token addresses.
func NewPair(base, quote string) Pair {
	return Pair{Base: base, Quote: quote}
}

// Valid reports whether both sides are present and distinct.
func (p Pair) Valid() bool {
	return p.Base != "" && p.Quote != "" && !strings.EqualFold(p.Base, p.Quote)
}

// String returns the pair as "base/quote".
func (p Pair) String() string {
	return p.Base + "/" + p.Quote
}

// Key returns a lower-cased form for map keys and subscriptions.
func (p Pair) Key() string {
	return strings.ToLower(p.Base) + "/" + strings.ToLower(p.Quote)
}

// Invert swaps base and quote.
func (p Pair) Invert() Pair {
	return Pair{Base: p.Quote, Quote: p.Base}
}
