package dashboard

import (
	"github.com/sdibella/simwatch/internal/metrics"
	"github.com/sdibella/simwatch/internal/sim"
)

// View models for API responses

type Summary struct {
	SessionID    string     `json:"session_id"`
	SimulationID string     `json:"simulation_id"`
	Origin       string     `json:"origin"`
	Status       sim.Status `json:"status"`
	Connected    bool       `json:"connected"`
	Paused       bool       `json:"paused"`
	Speed        float64    `json:"speed"`
	TickCount    int        `json:"tick_count"`
	Equity       float64    `json:"equity"`
	Cash         float64    `json:"cash"`
	InitialCash  float64    `json:"initial_cash"`
	OpenCount    int        `json:"open_positions"`
	Streak       int        `json:"streak"` // consecutive wins (>0) or losses (<0)
	ErrorMessage string     `json:"error_message,omitempty"`
	LastUpdated  string     `json:"last_updated"`

	Metrics metrics.Metrics `json:"metrics"`
}

type TradeView struct {
	Time     sim.Time `json:"time"`
	Symbol   string   `json:"symbol"`
	Side     sim.Side `json:"side"`
	Quantity float64  `json:"quantity"`
	Price    float64  `json:"price"`
	Result   string   `json:"result"` // "win"/"loss"/"open"
	PnL      *float64 `json:"pnl"`
	Fee      float64  `json:"fee"`
}

type EquityPoint struct {
	Time   sim.Time `json:"time"`
	Equity float64  `json:"equity"`
	Price  *float64 `json:"price,omitempty"`
}

type SideStats struct {
	Trades   int     `json:"trades"`
	Wins     int     `json:"wins"`
	WinRate  float64 `json:"win_rate"`
	AvgPnL   float64 `json:"avg_pnl"`
	TotalPnL float64 `json:"total_pnl"`
}

type PerformanceBreakdown struct {
	BySide     map[sim.Side]SideStats `json:"by_side"`
	BySymbol   map[string]SideStats   `json:"by_symbol"`
	AvgWin     float64                `json:"avg_win"`
	AvgLoss    float64                `json:"avg_loss"`
	Expectancy float64                `json:"expectancy"`
	TotalFees  float64                `json:"total_fees"`
}
