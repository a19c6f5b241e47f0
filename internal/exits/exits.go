package exits

import (
	"sort"

	"mtfBreakoutBot/internal/domain"
	"mtfBreakoutBot/internal/market"
)

const (
	pivotLeft  = 2
	pivotRight = 2
)

// Targets holds the nearest favorable swing levels selected at breakout time.
// They stay fixed for the life of the trade.
type Targets struct {
	T1, T2       float64
	HasT1, HasT2 bool
}

// NearestTargetsFromHTFs resamples the base series to 1h/4h/1D, collects the
// confirmed swing highs (LONG) or lows (SHORT) across all three timeframes,
// deduplicates, and returns the nearest level strictly beyond the latest
// close as T1 and the next-nearest as T2.
func NearestTargetsFromHTFs(base []*domain.Candle, side domain.Side) Targets {
	if len(base) == 0 {
		return Targets{}
	}
	lastClose := base[len(base)-1].Close

	seen := make(map[float64]struct{})
	var levels []float64
	for _, tf := range []string{market.TF1h, market.TF4h, market.TF1D} {
		htf := market.Resample(base, tf)
		var pivots []market.Pivot
		if side == domain.SideLong {
			pivots = market.SwingHighs(htf, pivotLeft, pivotRight)
		} else {
			pivots = market.SwingLows(htf, pivotLeft, pivotRight)
		}
		for _, p := range pivots {
			if _, dup := seen[p.Price]; dup {
				continue
			}
			seen[p.Price] = struct{}{}
			levels = append(levels, p.Price)
		}
	}

	if side == domain.SideLong {
		sort.Float64s(levels)
		for i, lvl := range levels {
			if lvl > lastClose {
				t := Targets{T1: lvl, HasT1: true}
				if i+1 < len(levels) {
					t.T2, t.HasT2 = levels[i+1], true
				}
				return t
			}
		}
		return Targets{}
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(levels)))
	for i, lvl := range levels {
		if lvl < lastClose {
			t := Targets{T1: lvl, HasT1: true}
			if i+1 < len(levels) {
				t.T2, t.HasT2 = levels[i+1], true
			}
			return t
		}
	}
	return Targets{}
}

// SwingTrailingStop returns the latest confirmed swing low (LONG) or swing
// high (SHORT) on the base-interval series. The second return is false when
// no swing has been confirmed yet. Monotonic tightening is the caller's job:
// a new value is accepted only if it is more favorable than the held one.
func SwingTrailingStop(base []*domain.Candle, side domain.Side) (float64, bool) {
	if len(base) == 0 {
		return 0, false
	}
	var pivots []market.Pivot
	if side == domain.SideLong {
		pivots = market.SwingLows(base, pivotLeft, pivotRight)
	} else {
		pivots = market.SwingHighs(base, pivotLeft, pivotRight)
	}
	if len(pivots) == 0 {
		return 0, false
	}
	return pivots[len(pivots)-1].Price, true
}

// Decision is the per-bar exit verdict.
type Decision struct {
	ExitNow bool
	Reason  domain.ExitReason
	Price   float64
}

// EvaluateExit decides whether the current bar closes the position. Priority:
// hard stop first (filled at the stop level, not the bar extreme), then T2
// before T1, then no exit.
func EvaluateExit(side domain.Side, bar *domain.Candle, stopPrice float64, targets Targets) Decision {
	if side == domain.SideLong {
		if bar.Low <= stopPrice {
			return Decision{ExitNow: true, Reason: domain.ExitStopLoss, Price: stopPrice}
		}
		if targets.HasT2 && bar.High >= targets.T2 {
			return Decision{ExitNow: true, Reason: domain.ExitTarget2, Price: targets.T2}
		}
		if targets.HasT1 && bar.High >= targets.T1 {
			return Decision{ExitNow: true, Reason: domain.ExitTarget1, Price: targets.T1}
		}
		return Decision{}
	}

	if bar.High >= stopPrice {
		return Decision{ExitNow: true, Reason: domain.ExitStopLoss, Price: stopPrice}
	}
	if targets.HasT2 && bar.Low <= targets.T2 {
		return Decision{ExitNow: true, Reason: domain.ExitTarget2, Price: targets.T2}
	}
	if targets.HasT1 && bar.Low <= targets.T1 {
		return Decision{ExitNow: true, Reason: domain.ExitTarget1, Price: targets.T1}
	}
	return Decision{}
}
