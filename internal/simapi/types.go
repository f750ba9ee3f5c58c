package simapi

import "github.com/sdibella/simwatch/internal/sim"

// RunnerState is the in-memory view of a simulation held by a live runner.
type RunnerState struct {
	SimulationID string             `json:"simulation_id"`
	Status       string             `json:"status"`
	TickCount    int                `json:"tick_count"`
	Equity       float64            `json:"equity"`
	Cash         float64            `json:"cash"`
	Positions    []sim.Position     `json:"positions"`
	TotalTrades  int                `json:"total_trades"`
	Speed        float64            `json:"speed"`
	Paused       bool               `json:"paused"`
	Error        *string            `json:"error"`
	EquityCurve  []sim.EquitySample `json:"equity_curve"`
}

// FinalMetrics is the summary persisted when a simulation finishes.
type FinalMetrics struct {
	Equity      float64            `json:"equity"`
	Cash        float64            `json:"cash"`
	TotalTrades int                `json:"total_trades"`
	TotalFees   float64            `json:"total_fees"`
	ReturnPct   float64            `json:"return_pct"`
	EquityCurve []sim.EquitySample `json:"equity_curve"`
}

// Record is the persisted historical record of a simulation.
type Record struct {
	ID            string         `json:"id"`
	StrategyName  string         `json:"strategy_name"`
	Params        map[string]any `json:"params"`
	Symbols       []string       `json:"symbols"`
	Mode          string         `json:"mode"`
	Interval      string         `json:"interval"`
	Speed         float64        `json:"speed"`
	InitialCash   float64        `json:"initial_cash"`
	TradingFeePct float64        `json:"trading_fee_pct"`
	Status        string         `json:"status"`
	StartedAt     sim.Time       `json:"started_at"`
	StoppedAt     sim.Time       `json:"stopped_at"`
	FinalMetrics  *FinalMetrics  `json:"final_metrics"`
	ErrorMessage  *string        `json:"error_message"`
	Trades        []sim.Trade    `json:"trades"`
}

// Summary is one row of the simulation listing.
type Summary struct {
	ID           string        `json:"id"`
	StrategyName string        `json:"strategy_name"`
	Symbols      []string      `json:"symbols"`
	Mode         string        `json:"mode"`
	Speed        float64       `json:"speed"`
	Status       string        `json:"status"`
	StartedAt    sim.Time      `json:"started_at"`
	StoppedAt    sim.Time      `json:"stopped_at"`
	FinalMetrics *FinalMetrics `json:"final_metrics"`
}
