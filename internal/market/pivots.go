package market

import (
	"time"

	"mtfBreakoutBot/internal/domain"
)

// Pivot is a confirmed swing point.
type Pivot struct {
	Time  time.Time
	Price float64
}

// SwingHighs returns the confirmed swing highs of the series, ordered by
// time. Bar i is a swing high iff its high equals the maximum high within
// [i-left, i+right]; confirmation therefore lags by `right` bars. The lag is
// identical in backtest and live use, so there is no lookahead beyond it.
func SwingHighs(candles []*domain.Candle, left, right int) []Pivot {
	var out []Pivot
	for i := left; i < len(candles)-right; i++ {
		h := candles[i].High
		isMax := true
		for j := i - left; j <= i+right; j++ {
			if candles[j].High > h {
				isMax = false
				break
			}
		}
		if isMax {
			out = append(out, Pivot{Time: candles[i].OpenTime, Price: h})
		}
	}
	return out
}

// SwingLows is the mirror of SwingHighs over bar lows.
func SwingLows(candles []*domain.Candle, left, right int) []Pivot {
	var out []Pivot
	for i := left; i < len(candles)-right; i++ {
		l := candles[i].Low
		isMin := true
		for j := i - left; j <= i+right; j++ {
			if candles[j].Low < l {
				isMin = false
				break
			}
		}
		if isMin {
			out = append(out, Pivot{Time: candles[i].OpenTime, Price: l})
		}
	}
	return out
}
