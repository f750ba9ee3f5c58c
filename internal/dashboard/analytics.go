package dashboard

import (
	"time"

	"github.com/sdibella/simwatch/internal/session"
	"github.com/sdibella/simwatch/internal/sim"
)

const (
	// MaxEquityPoints bounds the equity curve sent to the browser.
	MaxEquityPoints = 1000
	// MaxTrades is how many recent trades the trades endpoint returns.
	MaxTrades = 50
)

// NewSummary flattens a session view for the summary endpoint.
func NewSummary(v session.View) Summary {
	st := v.State
	return Summary{
		SessionID:    v.SessionID,
		SimulationID: st.SimulationID,
		Origin:       v.Origin,
		Status:       st.Status,
		Connected:    v.Connected,
		Paused:       st.Paused,
		Speed:        st.Speed,
		TickCount:    st.TickCount,
		Equity:       st.Equity,
		Cash:         st.Cash,
		InitialCash:  st.InitialCash,
		OpenCount:    len(st.Positions),
		Streak:       streak(st.Trades),
		ErrorMessage: st.ErrorMessage,
		LastUpdated:  time.Now().UTC().Format(time.RFC3339),
		Metrics:      v.Metrics,
	}
}

// streak counts the run of same-result closed trades ending at the latest one.
func streak(trades []sim.Trade) int {
	n := 0
	for i := len(trades) - 1; i >= 0; i-- {
		t := trades[i]
		if !t.Closed() {
			continue
		}
		if *t.PnL > 0 {
			if n < 0 {
				break
			}
			n++
		} else {
			if n > 0 {
				break
			}
			n--
		}
	}
	return n
}

// RecentTrades returns up to limit trades, newest first.
func RecentTrades(trades []sim.Trade, limit int) []TradeView {
	n := len(trades)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]TradeView, 0, n)
	for i := len(trades) - 1; i >= 0 && len(out) < n; i-- {
		t := trades[i]
		result := "open"
		if t.Closed() {
			result = "loss"
			if *t.PnL > 0 {
				result = "win"
			}
		}
		out = append(out, TradeView{
			Time:     t.Timestamp,
			Symbol:   t.Symbol,
			Side:     t.Side,
			Quantity: t.Quantity,
			Price:    t.Price,
			Result:   result,
			PnL:      t.PnL,
			Fee:      t.Fee,
		})
	}
	return out
}

// EquityCurve returns the series, sampled to maxPoints evenly spaced points
// if longer. The first and last samples are always kept.
func EquityCurve(series []sim.EquitySample, maxPoints int) []EquityPoint {
	if maxPoints < 2 || len(series) <= maxPoints {
		out := make([]EquityPoint, len(series))
		for i, s := range series {
			out[i] = point(s)
		}
		return out
	}

	sampled := make([]EquityPoint, maxPoints)
	step := float64(len(series)-1) / float64(maxPoints-1)
	for i := 0; i < maxPoints; i++ {
		sampled[i] = point(series[int(float64(i)*step+0.5)])
	}
	return sampled
}

func point(s sim.EquitySample) EquityPoint {
	return EquityPoint{Time: s.Timestamp, Equity: s.Equity, Price: s.Price}
}

// ComputePerformance breaks closed trades down by side and by symbol.
func ComputePerformance(trades []sim.Trade) PerformanceBreakdown {
	bySide := make(map[sim.Side]SideStats)
	bySymbol := make(map[string]SideStats)

	var totalWin, totalLoss, fees float64
	var wins, losses int

	for _, t := range trades {
		fees += t.Fee
		if !t.Closed() {
			continue
		}
		pnl := *t.PnL
		won := pnl > 0

		bySide[t.Side] = addTrade(bySide[t.Side], pnl, won)
		bySymbol[t.Symbol] = addTrade(bySymbol[t.Symbol], pnl, won)

		if won {
			totalWin += pnl
			wins++
		} else {
			totalLoss += pnl
			losses++
		}
	}

	for k, s := range bySide {
		bySide[k] = finish(s)
	}
	for k, s := range bySymbol {
		bySymbol[k] = finish(s)
	}

	avgWin := 0.0
	if wins > 0 {
		avgWin = totalWin / float64(wins)
	}
	avgLoss := 0.0
	if losses > 0 {
		avgLoss = totalLoss / float64(losses)
	}

	expectancy := 0.0
	if total := wins + losses; total > 0 {
		wr := float64(wins) / float64(total)
		expectancy = avgWin*wr + avgLoss*(1-wr) // avgLoss is already negative
	}

	return PerformanceBreakdown{
		BySide:     bySide,
		BySymbol:   bySymbol,
		AvgWin:     avgWin,
		AvgLoss:    avgLoss,
		Expectancy: expectancy,
		TotalFees:  fees,
	}
}

func addTrade(s SideStats, pnl float64, won bool) SideStats {
	s.Trades++
	if won {
		s.Wins++
	}
	s.TotalPnL += pnl
	return s
}

func finish(s SideStats) SideStats {
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades) * 100
		s.AvgPnL = s.TotalPnL / float64(s.Trades)
	}
	return s
}
