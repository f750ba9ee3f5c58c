package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sdibella/simwatch/internal/sim"
)

func TestParseTick(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"tick","tick":7,"timestamp":"2024-01-05T00:00:00","equity":100250.5,"cash":40000,
		"positions":[{"symbol":"MSFT","quantity":5,"avg_price":370,"unrealized_pnl":12}],
		"prices":{"MSFT":372.4,"AAPL":185.2},
		"trade":{"symbol":"MSFT","side":"BUY","quantity":5,"price":370,"pnl":null}}`))
	require.NoError(t, err)

	tick, ok := ev.(*TickEvent)
	require.True(t, ok, "got %T", ev)
	assert.Equal(t, 7, tick.Tick)
	assert.Equal(t, 100250.5, tick.Equity)
	assert.Len(t, tick.Positions, 1)

	price, ok := tick.Prices.First()
	require.True(t, ok)
	assert.Equal(t, 372.4, price, "first symbol on the wire wins")
	assert.Equal(t, []string{"MSFT", "AAPL"}, tick.Prices.Symbols)

	require.NotNil(t, tick.Trade)
	assert.Equal(t, tick.Timestamp, tick.Trade.Timestamp)
	assert.Equal(t, 0.0, tick.Trade.Fee)
	assert.False(t, tick.Trade.Closed())
}

func TestParseTickWithoutPrices(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"type":"tick","tick":1,"timestamp":"2024-01-05","equity":1,"cash":1,"positions":[]}`))
	require.NoError(t, err)
	_, ok := ev.(*TickEvent).Prices.First()
	assert.False(t, ok)
	assert.Nil(t, ev.(*TickEvent).Trade)
}

func TestParseStopped(t *testing.T) {
	tests := []struct {
		name       string
		msg        string
		wantStatus sim.Status
		wantEquity *float64
	}{
		{"completed", `{"type":"stopped","status":"completed","equity":101000,"cash":101000}`, sim.StatusCompleted, sim.Float(101000)},
		{"stopped", `{"type":"stopped","status":"stopped"}`, sim.StatusStopped, nil},
		{"error maps to stopped", `{"type":"stopped","status":"error"}`, sim.StatusStopped, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := ParseEvent([]byte(tt.msg))
			require.NoError(t, err)
			st, ok := ev.(*StoppedEvent)
			require.True(t, ok)
			assert.Equal(t, tt.wantStatus, st.Status)
			assert.Equal(t, tt.wantEquity, st.Equity)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name string
		msg  string
	}{
		{"not json", `tick 7`},
		{"unknown type", `{"type":"hello"}`},
		{"no type", `{"tick":1}`},
		{"tick without equity", `{"type":"tick","timestamp":"2024-01-05"}`},
		{"tick without timestamp", `{"type":"tick","equity":5}`},
		{"bad timestamp", `{"type":"tick","timestamp":"soon","equity":5}`},
		{"bad prices", `{"type":"tick","timestamp":"2024-01-05","equity":5,"prices":[1,2]}`},
		{"string equity", `{"type":"tick","timestamp":"2024-01-05","equity":"5"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEvent([]byte(tt.msg))
			assert.ErrorIs(t, err, errMalformed)
		})
	}
}

func TestControlMessages(t *testing.T) {
	assert.JSONEq(t, `{"type":"pause"}`, string(PauseMessage()))
	assert.JSONEq(t, `{"type":"resume"}`, string(ResumeMessage()))
	assert.JSONEq(t, `{"type":"set_speed","speed":10}`, string(SpeedMessage(10)))
	assert.JSONEq(t, `{"type":"set_speed","speed":50}`, string(SpeedMessage(80)))
	assert.JSONEq(t, `{"type":"set_speed","speed":1}`, string(SpeedMessage(0.2)))
}
