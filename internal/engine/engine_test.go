package engine

import (
	"context"
	"testing"
	"time"

	"mtfBreakoutBot/internal/domain"
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

var seriesStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func flatBar(i int) *domain.Candle {
	t := seriesStart.Add(time.Duration(i) * 5 * time.Minute)
	return &domain.Candle{
		OpenTime:  t,
		CloseTime: t.Add(5 * time.Minute),
		Symbol:    "TESTUSDT",
		Interval:  "5m",
		Open:      100,
		High:      100.2,
		Low:       99.8,
		Close:     100,
	}
}

func customBar(i int, open, high, low, close float64) *domain.Candle {
	b := flatBar(i)
	b.Open, b.High, b.Low, b.Close = open, high, low, close
	return b
}

// flatThenBreakout is 60 flat bars consolidating at 100 followed by a close
// clearly beyond the band plus buffer.
func flatThenBreakout() []*domain.Candle {
	var bars []*domain.Candle
	for i := 0; i < 60; i++ {
		bars = append(bars, flatBar(i))
	}
	bars = append(bars, customBar(60, 100, 100.6, 99.9, 100.5))
	return bars
}

func testConfig() Config {
	return Config{
		Symbol:             "TESTUSDT",
		BarInterval:        5 * time.Minute,
		Zone:               zones.DefaultConfig(),
		MinDwellBars:       18,
		MinTouches:         3,
		RetestWindowBars:   8,
		CooldownBars:       10,
		BreakoutBufferFrac: 0.15,
	}
}

// replay feeds the series bar-by-bar from the 51st bar onward and returns
// the last result.
func replay(t *testing.T, eng *Engine, bars []*domain.Candle) Result {
	t.Helper()
	var res Result
	for i := 50; i < len(bars); i++ {
		res = eng.OnBar(context.Background(), bars[:i+1])
	}
	return res
}

func TestEngine_DirectBreakoutEntry(t *testing.T) {
	eng := New(testConfig(), noopLogger{})
	bars := flatThenBreakout()

	res := replay(t, eng, bars)
	require.NotNil(t, res.Entered)
	assert.Equal(t, StateInPosition, eng.State())

	trade := res.Entered
	assert.Equal(t, domain.SideLong, trade.Side)
	assert.Equal(t, 100.5, trade.EntryPrice)  // breakout bar close
	assert.Equal(t, 99.9, trade.StopPrice)    // breakout bar low
	assert.Equal(t, bars[60].OpenTime, trade.EntryTime)
	assert.False(t, trade.TrendAligned) // ladder has too little history, permission NONE
	assert.True(t, trade.IsOpen())
	assert.Same(t, trade, eng.OpenTrade())
}

func TestEngine_NoEntryWithoutBreakout(t *testing.T) {
	eng := New(testConfig(), noopLogger{})
	var bars []*domain.Candle
	for i := 0; i < 70; i++ {
		bars = append(bars, flatBar(i))
	}

	res := replay(t, eng, bars)
	assert.Nil(t, res.Entered)
	assert.Equal(t, StateFlat, eng.State())
	assert.NotNil(t, res.Zone) // the candidate band is held, just never broken
}

func TestEngine_StopLossExitAndCooldown(t *testing.T) {
	eng := New(testConfig(), noopLogger{})
	bars := flatThenBreakout()
	replay(t, eng, bars)
	require.Equal(t, StateInPosition, eng.State())

	// Reversal bar sweeps the stop: filled at the stop level, not the low.
	bars = append(bars, customBar(61, 100.5, 100.5, 99.7, 99.7))
	res := eng.OnBar(context.Background(), bars)
	require.NotNil(t, res.Closed)

	trade := res.Closed
	assert.Equal(t, domain.ExitStopLoss, trade.ExitReason)
	assert.Equal(t, 99.9, trade.ExitPrice)
	assert.Equal(t, bars[61].OpenTime, trade.ExitTime)
	assert.InDelta(t, -1.0, trade.RMultiple(), 1e-9)
	// Risk is 0.6: highest high 100.6, lowest low 99.7
	assert.InDelta(t, 0.1/0.6, trade.MFE, 1e-9)
	assert.InDelta(t, 0.8/0.6, trade.MAE, 1e-9)

	// Cooldown suppresses detection for CooldownBars bars after the exit.
	assert.Equal(t, StateFlat, eng.State())
	assert.Nil(t, eng.OpenTrade())
	nextOpen := bars[61].OpenTime.Add(5 * time.Minute)
	assert.True(t, eng.CoolingDown(nextOpen))

	bars = append(bars, flatBar(62))
	res = eng.OnBar(context.Background(), bars)
	assert.Nil(t, res.Zone)
	assert.Nil(t, res.Entered)

	// Past the cooldown horizon detection resumes.
	assert.False(t, eng.CoolingDown(bars[61].OpenTime.Add(50*5*time.Minute)))
}

func TestEngine_TargetExit(t *testing.T) {
	eng := New(testConfig(), noopLogger{})
	bars := flatThenBreakout()
	replay(t, eng, bars)
	require.Equal(t, StateInPosition, eng.State())

	// No higher-timeframe target exists in this short history, so a rally
	// bar that never touches the stop keeps the position open.
	bars = append(bars, customBar(61, 100.5, 101.5, 100.4, 101.4))
	res := eng.OnBar(context.Background(), bars)
	assert.Nil(t, res.Closed)
	assert.Equal(t, StateInPosition, eng.State())
}

func TestEngine_RetestEntry(t *testing.T) {
	cfg := testConfig()
	cfg.MinDwellBars = 30 // dwell requirement not met, breakout must retest
	eng := New(cfg, noopLogger{})
	bars := flatThenBreakout()

	res := replay(t, eng, bars)
	assert.Nil(t, res.Entered)
	assert.Equal(t, StateAwaitingRetest, eng.State())

	// Pullback into the band that closes back beyond the boundary.
	bars = append(bars, customBar(61, 100.5, 100.5, 99.95, 100.4))
	res = eng.OnBar(context.Background(), bars)
	require.NotNil(t, res.Entered)
	assert.Equal(t, StateInPosition, eng.State())
	assert.Equal(t, domain.SideLong, res.Entered.Side)
	assert.Equal(t, 100.4, res.Entered.EntryPrice)
	assert.Equal(t, 99.95, res.Entered.StopPrice) // retest bar low
}

func TestEngine_RetestWindowExpires(t *testing.T) {
	cfg := testConfig()
	cfg.MinDwellBars = 30
	eng := New(cfg, noopLogger{})
	bars := flatThenBreakout()
	replay(t, eng, bars)
	require.Equal(t, StateAwaitingRetest, eng.State())

	// Price holds above the band without retesting until the window lapses.
	for i := 61; i <= 69; i++ {
		bars = append(bars, customBar(i, 100.4, 100.5, 100.3, 100.4))
		eng.OnBar(context.Background(), bars)
	}
	assert.Equal(t, StateFlat, eng.State())
	assert.Nil(t, eng.OpenTrade())
}

func TestEngine_AdmitGatesEntry(t *testing.T) {
	cfg := testConfig()
	cfg.Admit = func(ctx context.Context, trade *domain.Trade) bool { return false }
	eng := New(cfg, noopLogger{})

	res := replay(t, eng, flatThenBreakout())
	assert.Nil(t, res.Entered)
	assert.Equal(t, StateFlat, eng.State())
	assert.Nil(t, eng.OpenTrade())
}

func TestEngine_AdmitSetsQuantity(t *testing.T) {
	cfg := testConfig()
	cfg.Admit = func(ctx context.Context, trade *domain.Trade) bool {
		trade.Quantity = 2.5
		return true
	}
	eng := New(cfg, noopLogger{})

	res := replay(t, eng, flatThenBreakout())
	require.NotNil(t, res.Entered)
	assert.Equal(t, 2.5, res.Entered.Quantity)
}

func TestEngine_ForceClose(t *testing.T) {
	eng := New(testConfig(), noopLogger{})
	bars := flatThenBreakout()
	replay(t, eng, bars)
	require.Equal(t, StateInPosition, eng.State())

	last := customBar(61, 100.5, 100.5, 100.2, 100.3)
	trade := eng.ForceClose(context.Background(), last)
	require.NotNil(t, trade)
	assert.Equal(t, domain.ExitEndOfData, trade.ExitReason)
	assert.Equal(t, 100.3, trade.ExitPrice)
	assert.Equal(t, StateFlat, eng.State())

	// Force-closing while flat is a no-op.
	assert.Nil(t, eng.ForceClose(context.Background(), last))
}

func TestEngine_TrailingStopTightensOnly(t *testing.T) {
	eng := New(testConfig(), noopLogger{})
	bars := flatThenBreakout()
	replay(t, eng, bars)
	require.Equal(t, StateInPosition, eng.State())

	// Rising swing lows lift the effective stop above the entry stop.
	shape := []struct{ high, low, close float64 }{
		{100.8, 100.5, 100.7},
		{101.0, 100.6, 100.9},
		{100.9, 100.4, 100.6}, // local dip, becomes the swing low
		{101.2, 100.6, 101.1},
		{101.4, 100.8, 101.3}, // dip at 100.4 confirms here
		{101.6, 101.0, 101.5},
	}
	for i, s := range shape {
		bars = append(bars, customBar(61+i, s.close, s.high, s.low, s.close))
		res := eng.OnBar(context.Background(), bars)
		require.Nil(t, res.Closed)
	}

	// A drop to the confirmed swing low exits there, not at the entry stop.
	bars = append(bars, customBar(67, 101.5, 101.5, 100.35, 100.35))
	res := eng.OnBar(context.Background(), bars)
	require.NotNil(t, res.Closed)
	assert.Equal(t, domain.ExitStopLoss, res.Closed.ExitReason)
	assert.Equal(t, 100.4, res.Closed.ExitPrice)
}
