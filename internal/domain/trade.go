package domain

import "time"

// Trade represents a single breakout trade through its whole lifecycle.
// It is created open on a confirmed breakout or retest and mutated bar-by-bar
// until the exit fields are set.
type Trade struct {
	ID           int64      // Unique identifier (usually from DB)
	Symbol       string     // Trading symbol (e.g., "BTCUSDT")
	Side         Side       // LONG or SHORT
	EntryTime    time.Time  // Timestamp of the entry bar
	EntryPrice   float64    // Entry fill price (breakout bar close)
	StopPrice    float64    // Initial hard stop (entry bar low/high)
	Quantity     float64    // Position size
	TrendAligned bool       // Whether the entry direction matched the ladder permission
	ExitTime     time.Time  // Zero value while open
	ExitPrice    float64    // 0 while open
	ExitReason   ExitReason // Empty while open
	MFE          float64    // Max favorable excursion, in R units
	MAE          float64    // Max adverse excursion, in R units
}

// IsOpen reports whether the trade has not been closed yet.
func (t *Trade) IsOpen() bool {
	return t.ExitReason == ""
}

// Risk returns the initial entry-to-stop distance.
func (t *Trade) Risk() float64 {
	d := t.EntryPrice - t.StopPrice
	if d < 0 {
		d = -d
	}
	return d
}

// RMultiple returns the closed trade's P&L expressed in risk units.
// Returns 0 while the trade is open or when the initial risk is zero.
func (t *Trade) RMultiple() float64 {
	if t.IsOpen() {
		return 0
	}
	risk := t.Risk()
	if risk == 0 {
		return 0
	}
	pnl := t.ExitPrice - t.EntryPrice
	if t.Side == SideShort {
		pnl = -pnl
	}
	return pnl / risk
}

// TradeUpdate enumerates the mutable fields of an already recorded trade.
// Nil fields are left unchanged.
type TradeUpdate struct {
	ExitTime      *time.Time
	ExitPrice     *float64
	ExitReason    *ExitReason
	PNL           *float64
	CurrentPrice  *float64
	UnrealizedPNL *float64
}

// Apply copies the non-nil fields of u onto t.
func (u TradeUpdate) Apply(t *Trade) {
	if u.ExitTime != nil {
		t.ExitTime = *u.ExitTime
	}
	if u.ExitPrice != nil {
		t.ExitPrice = *u.ExitPrice
	}
	if u.ExitReason != nil {
		t.ExitReason = *u.ExitReason
	}
}
