package market

import (
	"math"

	"mtfBreakoutBot/internal/domain"
)

// EMA computes an exponential moving average with smoothing 2/(period+1).
// Values before `period` observations are NaN, never zero; downstream logic
// must treat them as undefined.
func EMA(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if period <= 0 || len(values) == 0 {
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}

	k := 2.0 / float64(period+1)
	ema := values[0]
	for i, v := range values {
		if i > 0 {
			ema = (v-ema)*k + ema
		}
		if i < period-1 {
			out[i] = math.NaN()
		} else {
			out[i] = ema
		}
	}
	return out
}

// TrueRange computes the per-bar true range: the greatest of high-low,
// |high-prevClose| and |low-prevClose|. The first bar uses high-low.
func TrueRange(candles []*domain.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		hl := c.High - c.Low
		if i == 0 {
			out[i] = hl
			continue
		}
		prevClose := candles[i-1].Close
		hc := math.Abs(c.High - prevClose)
		lc := math.Abs(c.Low - prevClose)
		out[i] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// ATR computes the average true range via exponential smoothing of the true
// range over the given period (Wilder-style). Warm-up values are NaN.
func ATR(candles []*domain.Candle, period int) []float64 {
	return EMA(TrueRange(candles), period)
}

// Last returns the final value of a series and whether it is defined.
func Last(series []float64) (float64, bool) {
	if len(series) == 0 {
		return 0, false
	}
	v := series[len(series)-1]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
