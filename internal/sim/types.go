package sim

import "strings"

// Status is the lifecycle state of an observed simulation.
type Status string

const (
	StatusLoading   Status = "loading"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusStopped   Status = "stopped"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
)

// ParseStatus normalizes a status string reported by the server. Unknown
// values map to StatusError so they never look like a live simulation.
func ParseStatus(s string) Status {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusLoading, StatusRunning, StatusPaused, StatusStopped, StatusCompleted, StatusError:
		return st
	default:
		return StatusError
	}
}

// Terminal reports whether no further ticks can arrive for this status.
func (s Status) Terminal() bool {
	return s == StatusStopped || s == StatusCompleted || s == StatusError
}

// MaxSeriesLen caps an equity series; older samples are evicted first.
const MaxSeriesLen = 10000

// TrimSeries drops the oldest samples beyond MaxSeriesLen.
func TrimSeries(series []EquitySample) []EquitySample {
	if n := len(series); n > MaxSeriesLen {
		return series[n-MaxSeriesLen:]
	}
	return series
}

// EquitySample is one point of the equity curve.
type EquitySample struct {
	Timestamp Time     `json:"timestamp"`
	Equity    float64  `json:"equity"`
	Price     *float64 `json:"price,omitempty"`
}

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Trade is one fill. PnL is set only on closing trades.
type Trade struct {
	Timestamp Time     `json:"timestamp"`
	Symbol    string   `json:"symbol"`
	Side      Side     `json:"side"`
	Quantity  float64  `json:"quantity"`
	Price     float64  `json:"price"`
	Fee       float64  `json:"fee"`
	PnL       *float64 `json:"pnl"`
}

// Closed reports whether the trade carries realized P&L.
func (t Trade) Closed() bool {
	return t.PnL != nil
}

type Position struct {
	Symbol        string  `json:"symbol"`
	Quantity      float64 `json:"quantity"`
	AvgPrice      float64 `json:"avg_price"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
}

// Float returns a pointer to v, for optional numeric fields.
func Float(v float64) *float64 {
	return &v
}
