package backtest

import (
	"context"
	"testing"
	"time"

	"mtfBreakoutBot/internal/domain"
	"mtfBreakoutBot/internal/engine"
	"mtfBreakoutBot/internal/zones"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopLogger struct{}

func (noopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (noopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// stubData serves a fixed series per symbol.
type stubData struct {
	series map[string][]*domain.Candle
}

func (s *stubData) FetchCandles(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Candle, error) {
	return s.series[symbol], nil
}

func (s *stubData) TopSymbolsByQuoteVolume(ctx context.Context, n int) ([]string, error) {
	return nil, nil
}

// breakoutThenStop is a consolidation, an upside breakout and a reversal
// through the stop.
func breakoutThenStop() []*domain.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mk := func(i int, open, high, low, close float64) *domain.Candle {
		t := start.Add(time.Duration(i) * 5 * time.Minute)
		return &domain.Candle{
			OpenTime: t, CloseTime: t.Add(5 * time.Minute),
			Symbol: "TESTUSDT", Interval: "5m",
			Open: open, High: high, Low: low, Close: close,
		}
	}
	var bars []*domain.Candle
	for i := 0; i < 60; i++ {
		bars = append(bars, mk(i, 100, 100.2, 99.8, 100))
	}
	bars = append(bars, mk(60, 100, 100.6, 99.9, 100.5)) // breakout
	bars = append(bars, mk(61, 100.5, 100.5, 99.7, 99.7)) // stop sweep
	return bars
}

func testEngineConfig() engine.Config {
	return engine.Config{
		BarInterval:        5 * time.Minute,
		Zone:               zones.DefaultConfig(),
		MinDwellBars:       18,
		MinTouches:         3,
		RetestWindowBars:   8,
		CooldownBars:       10,
		BreakoutBufferFrac: 0.15,
	}
}

func TestBacktester_Run(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data := &stubData{series: map[string][]*domain.Candle{
		"TESTUSDT": breakoutThenStop(),
		// A symbol with no data is skipped, not fatal.
		"EMPTYUSDT": nil,
	}}

	bt, err := New(Config{
		Symbols:  []string{"TESTUSDT", "EMPTYUSDT"},
		Interval: "5m",
		Start:    start,
		End:      start.Add(24 * time.Hour),
		Engine:   testEngineConfig(),
	}, data, noopLogger{})
	require.NoError(t, err)

	result, err := bt.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)

	trade := result.Trades[0]
	assert.Equal(t, "TESTUSDT", trade.Symbol)
	assert.Equal(t, domain.SideLong, trade.Side)
	assert.Equal(t, 100.5, trade.EntryPrice)
	assert.Equal(t, 99.9, trade.StopPrice)
	assert.Equal(t, domain.ExitStopLoss, trade.ExitReason)
	assert.Equal(t, 99.9, trade.ExitPrice)
	assert.InDelta(t, -1.0, trade.RMultiple(), 1e-9)

	assert.Equal(t, 1, result.Summary.TradeCount)
	assert.Equal(t, 1, result.Summary.LosingTrades)
	assert.InDelta(t, -1.0, result.Summary.TotalR, 1e-9)
}

func TestBacktester_ForceClosesOpenPosition(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	// Drop the reversal bar so the position is still open at end of data.
	series := breakoutThenStop()
	series = series[:len(series)-1]
	data := &stubData{series: map[string][]*domain.Candle{"TESTUSDT": series}}

	bt, err := New(Config{
		Symbols:  []string{"TESTUSDT"},
		Interval: "5m",
		Start:    start,
		End:      start.Add(24 * time.Hour),
		Engine:   testEngineConfig(),
	}, data, noopLogger{})
	require.NoError(t, err)

	result, err := bt.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Trades, 1)
	assert.Equal(t, domain.ExitEndOfData, result.Trades[0].ExitReason)
	assert.Equal(t, 100.5, result.Trades[0].ExitPrice) // last close
}

func TestBacktester_Validation(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	data := &stubData{}

	_, err := New(Config{Symbols: nil, Start: start, End: start.Add(time.Hour)}, data, noopLogger{})
	assert.Error(t, err)

	_, err = New(Config{Symbols: []string{"X"}, Start: start, End: start}, data, noopLogger{})
	assert.Error(t, err)

	_, err = New(Config{Symbols: []string{"X"}, Start: start, End: start.Add(time.Hour)}, nil, noopLogger{})
	assert.Error(t, err)
}
