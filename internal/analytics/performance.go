package analytics

import (
	"math"
	"sort"
	"time"

	"mtfBreakoutBot/internal/domain"
)

// Summary holds aggregate performance statistics over closed trades,
// expressed in risk units (R) rather than account currency.
type Summary struct {
	TradeCount        int
	WinningTrades     int
	LosingTrades      int
	WinRate           float64
	ProfitFactor      float64
	AvgR              float64
	Expectancy        float64
	SharpeRatio       float64
	MaxDrawdownR      float64 // Deepest dip of the cumulative R equity curve
	TotalR            float64
	AvgHoldingMinutes float64
	EquityCurve       []EquityPoint
}

// EquityPoint is one point of the cumulative R equity curve.
type EquityPoint struct {
	Time  time.Time
	Value float64
}

// Compute derives a Summary from closed trades. Open trades (no exit reason)
// are ignored. Trades are processed in exit-time order.
func Compute(trades []*domain.Trade) Summary {
	closed := make([]*domain.Trade, 0, len(trades))
	for _, t := range trades {
		if !t.IsOpen() {
			closed = append(closed, t)
		}
	}
	if len(closed) == 0 {
		return Summary{}
	}
	sort.Slice(closed, func(i, j int) bool {
		return closed[i].ExitTime.Before(closed[j].ExitTime)
	})

	s := Summary{TradeCount: len(closed)}
	var winSum, lossSum, holdSum float64
	var equity, peak float64
	rVals := make([]float64, 0, len(closed))

	for _, t := range closed {
		r := t.RMultiple()
		rVals = append(rVals, r)
		s.TotalR += r
		if r > 0 {
			s.WinningTrades++
			winSum += r
		} else {
			s.LosingTrades++
			lossSum += -r
		}
		holdSum += t.ExitTime.Sub(t.EntryTime).Minutes()

		equity += r
		if equity > peak {
			peak = equity
		}
		if dd := peak - equity; dd > s.MaxDrawdownR {
			s.MaxDrawdownR = dd
		}
		s.EquityCurve = append(s.EquityCurve, EquityPoint{Time: t.ExitTime, Value: equity})
	}

	n := float64(len(closed))
	s.WinRate = float64(s.WinningTrades) / n
	s.AvgR = s.TotalR / n
	s.Expectancy = s.AvgR
	s.AvgHoldingMinutes = holdSum / n
	if s.WinningTrades > 0 && s.LosingTrades > 0 {
		s.ProfitFactor = (winSum / float64(s.WinningTrades)) / (lossSum / float64(s.LosingTrades))
	}
	s.SharpeRatio = sharpe(rVals)
	return s
}

// sharpe is an annualized Sharpe-like ratio over per-trade R values, with a
// zero risk-free rate.
func sharpe(rVals []float64) float64 {
	if len(rVals) < 2 {
		return 0
	}
	var sum float64
	for _, r := range rVals {
		sum += r
	}
	mean := sum / float64(len(rVals))

	var variance float64
	for _, r := range rVals {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(rVals) - 1)
	std := math.Sqrt(variance)
	if std == 0 {
		return 0
	}
	return mean / std * math.Sqrt(252)
}
