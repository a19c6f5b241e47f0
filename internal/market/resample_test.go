package market

import (
	"testing"
	"time"

	"mtfBreakoutBot/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fiveMinSeries builds n sequential 5m bars starting at start, where bar i
// has open=i, high=i+2, low=i-2, close=i+1, volume=1.
func fiveMinSeries(start time.Time, n int) []*domain.Candle {
	out := make([]*domain.Candle, 0, n)
	for i := 0; i < n; i++ {
		f := float64(i)
		t := start.Add(time.Duration(i) * 5 * time.Minute)
		out = append(out, &domain.Candle{
			OpenTime:  t,
			CloseTime: t.Add(5 * time.Minute),
			Symbol:    "TESTUSDT",
			Interval:  TF5m,
			Open:      f,
			High:      f + 2,
			Low:       f - 2,
			Close:     f + 1,
			Volume:    1,
		})
	}
	return out
}

func TestResample_FoldsIntoHourBuckets(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	base := fiveMinSeries(start, 24) // exactly two hours

	hourly := Resample(base, TF1h)
	require.Len(t, hourly, 2)

	first := hourly[0]
	assert.Equal(t, start, first.OpenTime)
	assert.Equal(t, start.Add(time.Hour), first.CloseTime)
	assert.Equal(t, TF1h, first.Interval)
	assert.Equal(t, 0.0, first.Open)   // first bar's open
	assert.Equal(t, 13.0, first.High)  // bar 11: 11+2
	assert.Equal(t, -2.0, first.Low)   // bar 0: 0-2
	assert.Equal(t, 12.0, first.Close) // bar 11: 11+1
	assert.Equal(t, 12.0, first.Volume)

	second := hourly[1]
	assert.Equal(t, start.Add(2*time.Hour), second.CloseTime)
	assert.Equal(t, 12.0, second.Open)
	assert.Equal(t, 24.0, second.Close)
}

func TestResample_DropsIncompleteTrailingBucket(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	// 25 bars: the 25th opens the third hour but does not complete it.
	hourly := Resample(fiveMinSeries(start, 25), TF1h)
	require.Len(t, hourly, 2)

	// The trailing bucket is kept only when the last bar closes on the edge.
	hourly = Resample(fiveMinSeries(start, 36), TF1h)
	require.Len(t, hourly, 3)
}

func TestResample_CalendarTimeframes(t *testing.T) {
	// Monday 2024-01-01 through Sunday: one complete week.
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	base := fiveMinSeries(start, 7*24*12)

	weekly := Resample(base, TF1W)
	require.Len(t, weekly, 1)
	assert.Equal(t, start.AddDate(0, 0, 7), weekly[0].CloseTime)

	daily := Resample(base, TF1D)
	require.Len(t, daily, 7)
	assert.Equal(t, start.AddDate(0, 0, 1), daily[0].CloseTime)

	// January 2024 in full.
	monthly := Resample(fiveMinSeries(start, 31*24*12), TF1M)
	require.Len(t, monthly, 1)
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), monthly[0].CloseTime)
}

func TestResample_EmptyInput(t *testing.T) {
	assert.Nil(t, Resample(nil, TF1h))
}

func TestIntervalDuration(t *testing.T) {
	d, ok := IntervalDuration(TF5m)
	assert.True(t, ok)
	assert.Equal(t, 5*time.Minute, d)

	_, ok = IntervalDuration(TF1W)
	assert.False(t, ok)
	_, ok = IntervalDuration("7m")
	assert.False(t, ok)
}
