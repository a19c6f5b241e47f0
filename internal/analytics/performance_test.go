package analytics

import (
	"testing"
	"time"

	"mtfBreakoutBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// closedTrade builds a closed long with a 1.0 risk so the R multiple equals
// the price move.
func closedTrade(entry time.Time, hold time.Duration, r float64) *domain.Trade {
	return &domain.Trade{
		Symbol:     "TESTUSDT",
		Side:       domain.SideLong,
		EntryTime:  entry,
		EntryPrice: 100,
		StopPrice:  99,
		Quantity:   1,
		ExitTime:   entry.Add(hold),
		ExitPrice:  100 + r,
		ExitReason: domain.ExitTarget1,
	}
}

func TestCompute_Basic(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	trades := []*domain.Trade{
		closedTrade(start, time.Hour, 2),                  // +2R
		closedTrade(start.Add(2*time.Hour), time.Hour, -1), // -1R
		closedTrade(start.Add(4*time.Hour), 2*time.Hour, 3), // +3R
	}

	s := Compute(trades)
	assert.Equal(t, 3, s.TradeCount)
	assert.Equal(t, 2, s.WinningTrades)
	assert.Equal(t, 1, s.LosingTrades)
	assert.InDelta(t, 2.0/3.0, s.WinRate, 1e-9)
	assert.InDelta(t, 4.0, s.TotalR, 1e-9)
	assert.InDelta(t, 4.0/3.0, s.AvgR, 1e-9)
	assert.InDelta(t, s.AvgR, s.Expectancy, 1e-9)
	// Average win 2.5R against average loss 1R
	assert.InDelta(t, 2.5, s.ProfitFactor, 1e-9)
	assert.InDelta(t, 80.0, s.AvgHoldingMinutes, 1e-9)
	assert.NotZero(t, s.SharpeRatio)

	require.Len(t, s.EquityCurve, 3)
	assert.InDelta(t, 2.0, s.EquityCurve[0].Value, 1e-9)
	assert.InDelta(t, 1.0, s.EquityCurve[1].Value, 1e-9)
	assert.InDelta(t, 4.0, s.EquityCurve[2].Value, 1e-9)
	// Deepest dip: from the 2R peak down to 1R
	assert.InDelta(t, 1.0, s.MaxDrawdownR, 1e-9)
}

func TestCompute_SortsByExitTime(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	later := closedTrade(start.Add(10*time.Hour), time.Hour, 1)
	earlier := closedTrade(start, time.Hour, -1)

	s := Compute([]*domain.Trade{later, earlier})
	require.Len(t, s.EquityCurve, 2)
	assert.InDelta(t, -1.0, s.EquityCurve[0].Value, 1e-9)
	assert.InDelta(t, 0.0, s.EquityCurve[1].Value, 1e-9)
}

func TestCompute_IgnoresOpenTrades(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	open := &domain.Trade{
		Symbol: "TESTUSDT", Side: domain.SideLong,
		EntryTime: start, EntryPrice: 100, StopPrice: 99,
	}

	s := Compute([]*domain.Trade{open, closedTrade(start, time.Hour, 1)})
	assert.Equal(t, 1, s.TradeCount)
}

func TestCompute_Empty(t *testing.T) {
	s := Compute(nil)
	assert.Equal(t, Summary{}, s)
}
