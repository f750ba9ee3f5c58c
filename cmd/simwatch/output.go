package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/sdibella/simwatch/internal/metrics"
	"github.com/sdibella/simwatch/internal/session"
	"github.com/sdibella/simwatch/internal/simapi"
)

func printProgress(w io.Writer, v session.View) {
	st := v.State
	flags := ""
	if st.Paused {
		flags += " paused"
	}
	if v.Connected {
		flags += " live"
	}
	fmt.Fprintf(w, "%s tick=%d equity=%.2f pnl=%+.2f (%+.2f%%) dd=%.2f%% trades=%d%s\n",
		st.Status, st.TickCount, st.Equity,
		v.Metrics.TotalPnL, v.Metrics.ReturnPct, v.Metrics.CurrentDrawdownPct,
		v.Metrics.TotalTrades, flags)
}

func printView(w io.Writer, v session.View) {
	st := v.State
	fmt.Fprintf(w, "\nsimulation %s (%s, %s)\n", st.SimulationID, v.Origin, st.Status)
	if st.ErrorMessage != "" {
		fmt.Fprintf(w, "error: %s\n", st.ErrorMessage)
	}
	fmt.Fprintf(w, "equity %.2f  cash %.2f  initial %.2f  samples %d\n",
		st.Equity, st.Cash, st.InitialCash, len(st.Series))
	if len(st.Positions) > 0 {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SYMBOL\tQTY\tAVG\tUNREALIZED")
		for _, p := range st.Positions {
			fmt.Fprintf(tw, "%s\t%g\t%.2f\t%+.2f\n", p.Symbol, p.Quantity, p.AvgPrice, p.UnrealizedPnL)
		}
		tw.Flush()
	}
	printMetrics(w, v.Metrics)
}

func printMetrics(w io.Writer, m metrics.Metrics) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "total pnl\t%+.2f\n", m.TotalPnL)
	fmt.Fprintf(tw, "return\t%+.2f%%\n", m.ReturnPct)
	fmt.Fprintf(tw, "sharpe\t%.2f\n", m.SharpeRatio)
	fmt.Fprintf(tw, "max drawdown\t%.2f%%\n", m.MaxDrawdownPct)
	fmt.Fprintf(tw, "current drawdown\t%.2f%%\n", m.CurrentDrawdownPct)
	fmt.Fprintf(tw, "win rate\t%.2f%%\n", m.WinRate)
	fmt.Fprintf(tw, "profit factor\t%.2f\n", m.ProfitFactor)
	fmt.Fprintf(tw, "trades\t%d\n", m.TotalTrades)
	fmt.Fprintf(tw, "fees\t%.2f\n", m.TotalFees)
	tw.Flush()
}

func printSummaries(w io.Writer, sims []simapi.Summary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTRATEGY\tSYMBOLS\tMODE\tSTATUS\tSTARTED\tRETURN")
	for _, s := range sims {
		started := "-"
		if !s.StartedAt.IsZero() {
			started = s.StartedAt.Format("2006-01-02 15:04")
		}
		ret := "-"
		if s.FinalMetrics != nil {
			ret = fmt.Sprintf("%+.2f%%", s.FinalMetrics.ReturnPct)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.StrategyName, strings.Join(s.Symbols, ","), s.Mode, s.Status, started, ret)
	}
	tw.Flush()
}
