package risk

import (
	"context"
	"fmt"

	"mtfBreakoutBot/internal/ports"
)

// Config holds position sizing parameters.
type Config struct {
	PctTrendAligned     float64 // Percent of available balance risked on trend-aligned entries
	PctCounterTrend     float64 // Percent risked on counter-trend entries
	MinAvailableBalance float64
}

// Sizer computes order quantities from account balance and the entry-to-stop
// distance. Trend-aligned breakouts get the larger allocation.
type Sizer struct {
	cfg    Config
	exec   ports.ExecutionClient
	logger ports.Logger
}

// NewSizer creates a position sizer.
func NewSizer(cfg Config, exec ports.ExecutionClient, logger ports.Logger) (*Sizer, error) {
	if exec == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Sizer")
	}
	if cfg.PctTrendAligned <= 0 || cfg.PctCounterTrend <= 0 {
		return nil, fmt.Errorf("position size percentages must be positive")
	}
	return &Sizer{cfg: cfg, exec: exec, logger: logger}, nil
}

// PositionSize returns the quantity to trade for the given entry and stop.
// A zero or negative risk distance, or a computed quantity that is not
// positive, yields an error; the caller must abort the entry and leave no
// partial state.
func (s *Sizer) PositionSize(ctx context.Context, symbol string, entryPrice, stopPrice float64, trendAligned bool) (float64, error) {
	riskPerUnit := entryPrice - stopPrice
	if riskPerUnit < 0 {
		riskPerUnit = -riskPerUnit
	}
	if riskPerUnit == 0 {
		return 0, fmt.Errorf("zero risk distance for %s (entry %.8f == stop)", symbol, entryPrice)
	}

	balance, err := s.exec.AccountBalance(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching account balance: %w", err)
	}
	if balance < s.cfg.MinAvailableBalance {
		return 0, fmt.Errorf("available balance %.2f below minimum %.2f", balance, s.cfg.MinAvailableBalance)
	}

	pct := s.cfg.PctCounterTrend
	if trendAligned {
		pct = s.cfg.PctTrendAligned
	}
	quantity := balance * (pct / 100.0) / riskPerUnit
	if quantity <= 0 {
		return 0, fmt.Errorf("computed non-positive quantity %.8f for %s", quantity, symbol)
	}
	return quantity, nil
}
