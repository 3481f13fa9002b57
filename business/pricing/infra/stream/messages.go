package stream

import (
	"strings"

	"github.com/fd1az/dexarb/business/pricing/domain"
)

// WSRequest is a subscription control frame sent to the price gateway.
type WSRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params,omitempty"`
	ID     int64    `json:"id"`
}

// WSResponse acknowledges a control frame. Result is null on success.
type WSResponse struct {
	Result any   `json:"result"`
	ID     int64 `json:"id"`
}

// PriceEvent is a pushed tick for one subscribed pair. Price is a decimal
// string; Timestamp is unix milliseconds.
type PriceEvent struct {
	Stream    string `json:"stream"`
	Token     string `json:"token"`
	Quote     string `json:"quote"`
	Price     string `json:"price"`
	Timestamp int64  `json:"ts"`
}

// TickerStream returns the gateway stream name for a pair,
// e.g. "ticker:0xc02a...:0xa0b8...".
func TickerStream(p domain.Pair) string {
	return "ticker:" + strings.ToLower(p.Base) + ":" + strings.ToLower(p.Quote)
}
