package market

import (
	"mtfBreakoutBot/internal/domain"
)

const trendMinBars = 210 // EMA200 plus slope lookback

// DefaultLadder is the trend ladder evaluated coarsest-first.
var DefaultLadder = []string{TF1M, TF1W, TF1D, TF1h}

// LabelSeries classifies a single timeframe from EMA50/EMA200 ordering and
// slope: Bullish iff close > EMA50 > EMA200 with both EMAs rising, Bearish
// for the mirrored falling condition, Neutral otherwise or when fewer than
// 210 bars are available.
func LabelSeries(candles []*domain.Candle) domain.TrendState {
	if len(candles) < trendMinBars {
		return domain.TrendNeutral
	}
	closes := domain.Closes(candles)
	e50 := EMA(closes, 50)
	e200 := EMA(closes, 200)

	n := len(closes)
	close := closes[n-1]
	e50Now, e50Prev := e50[n-1], e50[n-2]
	e200Now, e200Prev := e200[n-1], e200[n-2]

	if close > e50Now && e50Now > e200Now && e50Now > e50Prev && e200Now > e200Prev {
		return domain.TrendBullish
	}
	if close < e50Now && e50Now < e200Now && e50Now < e50Prev && e200Now < e200Prev {
		return domain.TrendBearish
	}
	return domain.TrendNeutral
}

// LabelLadder resamples the base series to each ladder timeframe and labels it.
func LabelLadder(base []*domain.Candle, ladder []string) map[string]domain.TrendLabel {
	out := make(map[string]domain.TrendLabel, len(ladder))
	for _, tf := range ladder {
		series := base
		if tf != TF5m {
			series = Resample(base, tf)
		}
		out[tf] = domain.TrendLabel{Timeframe: tf, Label: LabelSeries(series)}
	}
	return out
}

// LadderPermission aggregates a ladder into a directional permission:
// LONG only when every timeframe is Bullish, SHORT only when every timeframe
// is Bearish, otherwise NONE. Unanimity, not majority. The permission tags a
// breakout as trend-aligned for position sizing; it never gates entries.
func LadderPermission(labels map[string]domain.TrendLabel) domain.Permission {
	if len(labels) == 0 {
		return domain.PermissionNone
	}
	allBull, allBear := true, true
	for _, l := range labels {
		if l.Label != domain.TrendBullish {
			allBull = false
		}
		if l.Label != domain.TrendBearish {
			allBear = false
		}
	}
	switch {
	case allBull:
		return domain.PermissionLong
	case allBear:
		return domain.PermissionShort
	default:
		return domain.PermissionNone
	}
}
