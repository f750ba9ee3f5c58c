// Package metrics derives performance figures from an equity curve and a
// trade ledger. The same computation serves finished and in-progress runs.
package metrics

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/sdibella/simwatch/internal/sim"
)

// ProfitFactorCap stands in for an infinite profit factor (profit with no losses).
const ProfitFactorCap = 999

// TradingDays annualizes per-sample returns.
const TradingDays = 252

type Metrics struct {
	TotalPnL           float64 `json:"total_pnl"`
	ReturnPct          float64 `json:"return_pct"`
	SharpeRatio        float64 `json:"sharpe_ratio"`
	MaxDrawdownPct     float64 `json:"max_drawdown_pct"`
	CurrentDrawdownPct float64 `json:"current_drawdown_pct"`
	WinRate            float64 `json:"win_rate"`
	ProfitFactor       float64 `json:"profit_factor"`
	TotalTrades        int     `json:"total_trades"`
	TotalFees          float64 `json:"total_fees"`
}

// Compute is pure: it keeps no state between calls.
func Compute(series []sim.EquitySample, trades []sim.Trade, initialCash float64) Metrics {
	lastEquity := initialCash
	if len(series) > 0 {
		lastEquity = series[len(series)-1].Equity
	}

	totalPnL := lastEquity - initialCash
	returnPct := 0.0
	if initialCash > 0 {
		returnPct = totalPnL / initialCash * 100
	}

	maxDD, curDD := drawdown(series, initialCash)

	var wins, closed int
	var grossProfit, grossLoss, fees float64
	for _, t := range trades {
		fees += t.Fee
		if !t.Closed() {
			continue
		}
		closed++
		switch pnl := *t.PnL; {
		case pnl > 0:
			wins++
			grossProfit += pnl
		case pnl < 0:
			grossLoss += -pnl
		}
	}

	winRate := 0.0
	if closed > 0 {
		winRate = float64(wins) / float64(closed) * 100
	}

	profitFactor := 0.0
	switch {
	case grossLoss > 0:
		profitFactor = round2(grossProfit / grossLoss)
	case grossProfit > 0:
		profitFactor = ProfitFactorCap
	}

	return Metrics{
		TotalPnL:           round2(totalPnL),
		ReturnPct:          round2(returnPct),
		SharpeRatio:        round2(sharpe(series)),
		MaxDrawdownPct:     round2(maxDD),
		CurrentDrawdownPct: round2(curDD),
		WinRate:            round2(winRate),
		ProfitFactor:       profitFactor,
		TotalTrades:        len(trades),
		TotalFees:          round2(fees),
	}
}

// drawdown walks the series against a running peak seeded with initialCash.
// It returns the largest peak-to-trough decline and the decline at the last
// sample, both in percent.
func drawdown(series []sim.EquitySample, initialCash float64) (maxDD, curDD float64) {
	peak := initialCash
	for _, s := range series {
		if s.Equity > peak {
			peak = s.Equity
		}
		if peak <= 0 {
			continue
		}
		curDD = (peak - s.Equity) / peak * 100
		if curDD > maxDD {
			maxDD = curDD
		}
	}
	return maxDD, curDD
}

// sharpe annualizes the mean/stddev of simple returns between consecutive
// samples. Steps from a non-positive equity are skipped.
func sharpe(series []sim.EquitySample) float64 {
	returns := make([]float64, 0, len(series))
	for i := 1; i < len(series); i++ {
		prev := series[i-1].Equity
		if prev > 0 {
			returns = append(returns, (series[i].Equity-prev)/prev)
		}
	}
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	std := math.Sqrt(variance / float64(len(returns)))
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(TradingDays)
}

func round2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
