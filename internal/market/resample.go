package market

import (
	"time"

	"mtfBreakoutBot/internal/domain"
)

// Supported aggregation timeframes.
const (
	TF5m  = "5m"
	TF15m = "15m"
	TF30m = "30m"
	TF1h  = "1h"
	TF4h  = "4h"
	TF1D  = "1D"
	TF1W  = "1W"
	TF1M  = "1M"
)

var fixedRules = map[string]time.Duration{
	TF5m:  5 * time.Minute,
	TF15m: 15 * time.Minute,
	TF30m: 30 * time.Minute,
	TF1h:  time.Hour,
	TF4h:  4 * time.Hour,
	TF1D:  24 * time.Hour,
}

// IntervalDuration returns the bar spacing for a fixed-width timeframe.
// Calendar timeframes (1W, 1M) have no fixed width and report false.
func IntervalDuration(timeframe string) (time.Duration, bool) {
	d, ok := fixedRules[timeframe]
	return d, ok
}

// bucketRightEdge returns the right-closed bucket boundary the bar closing at
// t belongs to. A close exactly on a boundary belongs to that boundary.
func bucketRightEdge(t time.Time, timeframe string) time.Time {
	t = t.UTC()
	switch timeframe {
	case TF1W:
		// Weeks end Monday 00:00 UTC.
		daysIntoWeek := (int(t.Weekday()) + 6) % 7 // Monday = 0
		weekStart := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -daysIntoWeek)
		if t.Equal(weekStart) {
			return t
		}
		return weekStart.AddDate(0, 0, 7)
	case TF1M:
		monthStart := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
		if t.Equal(monthStart) {
			return t
		}
		return monthStart.AddDate(0, 1, 0)
	default:
		d := fixedRules[timeframe]
		if d == 0 {
			return t
		}
		edge := t.Truncate(d)
		if edge.Equal(t) {
			return t
		}
		return edge.Add(d)
	}
}

// Resample aggregates a base-interval candle series into the given coarser
// timeframe using right-closed, right-labeled buckets: open is the first open,
// high the max, low the min, close the last close, volume the sum. Buckets
// without contributing bars are absent and the incomplete trailing bucket is
// dropped. Pure function: the input series is never modified.
func Resample(candles []*domain.Candle, timeframe string) []*domain.Candle {
	if len(candles) == 0 {
		return nil
	}

	var out []*domain.Candle
	var cur *domain.Candle
	var curEdge time.Time

	for _, c := range candles {
		edge := bucketRightEdge(c.CloseTime, timeframe)
		if cur == nil || !edge.Equal(curEdge) {
			if cur != nil {
				out = append(out, cur)
			}
			curEdge = edge
			cur = &domain.Candle{
				OpenTime:  c.OpenTime,
				CloseTime: edge,
				Symbol:    c.Symbol,
				Interval:  timeframe,
				Open:      c.Open,
				High:      c.High,
				Low:       c.Low,
				Close:     c.Close,
				Volume:    c.Volume,
			}
			continue
		}
		if c.High > cur.High {
			cur.High = c.High
		}
		if c.Low < cur.Low {
			cur.Low = c.Low
		}
		cur.Close = c.Close
		cur.Volume += c.Volume
	}

	if cur != nil {
		// The trailing bucket is complete only when the last base bar closes
		// exactly on the bucket boundary.
		if candles[len(candles)-1].CloseTime.UTC().Equal(curEdge) {
			out = append(out, cur)
		}
	}
	return out
}
