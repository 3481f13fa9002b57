package domain

import "time"

// BreakerEventType names what tripped the circuit breaker.
type BreakerEventType string

const (
	BreakerProfitDeviation BreakerEventType = "profit_deviation"
	BreakerManual          BreakerEventType = "manual"
)

// BreakerEvent records why the breaker tripped. It exists only while the
// breaker is latched; an explicit reset clears it.
type BreakerEvent struct {
	Type      BreakerEventType
	TrippedAt time.Time
	Reason    string
	Data      map[string]string
}
