package engine

import (
	"context"
	"time"

	"mtfBreakoutBot/internal/domain"
	"mtfBreakoutBot/internal/exits"
	"mtfBreakoutBot/internal/market"
	"mtfBreakoutBot/internal/ports"
	"mtfBreakoutBot/internal/zones"
)

// State of the per-symbol trade lifecycle.
type State int

const (
	StateFlat State = iota
	StateAwaitingRetest
	StateInPosition
)

func (s State) String() string {
	switch s {
	case StateFlat:
		return "FLAT"
	case StateAwaitingRetest:
		return "AWAITING_RETEST"
	case StateInPosition:
		return "IN_POSITION"
	default:
		return "UNKNOWN"
	}
}

// Config holds the breakout state machine parameters for one symbol.
type Config struct {
	Symbol             string
	BarInterval        time.Duration // Bar spacing of the base series
	Zone               zones.Config
	MinDwellBars       int     // Minimum zone dwell for a direct (no-retest) entry
	MinTouches         int     // Minimum per-side touches for breakout eligibility
	RetestWindowBars   int     // Bars a no-dwell breakout may wait for its retest
	CooldownBars       int     // Bars after an exit before re-arming detection
	BreakoutBufferFrac float64 // Breakout buffer as a fraction of ATR
	Ladder             []string

	// Admit is consulted before an entry is committed. It may set the trade
	// quantity; returning false drops the signal without leaving any state
	// behind (position cap reached, invalid sizing). Nil admits everything.
	Admit func(ctx context.Context, trade *domain.Trade) bool
}

// Engine replays bars through zone detection, breakout/retest entry logic and
// exit management for a single symbol. It owns all path-dependent state:
// candidate zone, retest-wait window, cooldown, open trade, trailing stop and
// water marks. At most one position is open at a time; the state machine
// cannot reach a second entry while a trade is held.
//
// The same engine drives both the historical backtest and the live watcher,
// so warm-up handling, pivot confirmation lag and exit priority are identical
// in both paths.
type Engine struct {
	cfg    Config
	logger ports.Logger

	state     State
	candidate *domain.Zone

	retestSide     domain.Side
	retestDeadline time.Time

	cooldownUntil time.Time

	trade       *domain.Trade
	targets     exits.Targets
	trailing    float64
	hasTrailing bool
	highWater   float64
	lowWater    float64
}

// Result reports what happened on one bar.
type Result struct {
	Entered *domain.Trade // Newly opened trade, if any
	Closed  *domain.Trade // Newly closed trade, if any
	Zone    *domain.Zone  // Current candidate zone, nil when none
}

// New creates an engine in the FLAT state.
func New(cfg Config, logger ports.Logger) *Engine {
	if cfg.MinTouches <= 0 {
		cfg.MinTouches = 3
	}
	if len(cfg.Ladder) == 0 {
		cfg.Ladder = market.DefaultLadder
	}
	return &Engine{cfg: cfg, logger: logger, state: StateFlat}
}

// State returns the current lifecycle state.
func (e *Engine) State() State { return e.state }

// OpenTrade returns the currently open trade, or nil.
func (e *Engine) OpenTrade() *domain.Trade { return e.trade }

// Candidate returns the currently held candidate zone, or nil.
func (e *Engine) Candidate() *domain.Zone { return e.candidate }

// CoolingDown reports whether the post-exit cooldown is still active at t.
func (e *Engine) CoolingDown(t time.Time) bool {
	return !e.cooldownUntil.IsZero() && t.Before(e.cooldownUntil)
}

// OnBar advances the state machine by one bar. The series must end at the
// bar being evaluated and include its full history (or a sufficiently long
// trailing window in live use).
func (e *Engine) OnBar(ctx context.Context, candles []*domain.Candle) Result {
	if len(candles) == 0 {
		return Result{}
	}
	bar := candles[len(candles)-1]

	if e.state == StateInPosition {
		if closed := e.manageOpenPosition(ctx, candles, bar); closed != nil {
			return Result{Closed: closed, Zone: e.candidate}
		}
		return Result{Zone: e.candidate}
	}

	// Post-exit cooldown suppresses detection and entries.
	if !e.cooldownUntil.IsZero() && bar.OpenTime.Before(e.cooldownUntil) {
		return Result{Zone: e.candidate}
	}
	e.cooldownUntil = time.Time{}

	// The zone is built from the bars before the one being evaluated, so the
	// evaluation close is compared against a band it did not contribute to.
	if z := zones.Detect(candles[:len(candles)-1], e.cfg.Zone); z != nil {
		if !z.SameAs(e.candidate) {
			e.candidate = z
			e.logger.Debug(ctx, "candidate zone refresh", map[string]interface{}{
				"symbol": e.cfg.Symbol,
				"width":  z.Width,
				"top":    z.HighClose,
				"bottom": z.LowClose,
				"touches": map[string]int{
					"top": z.TouchesTop, "bottom": z.TouchesBottom, "total": z.TotalTouches,
				},
			})
		} else {
			e.candidate = z
		}
	} else if e.state != StateAwaitingRetest {
		// The retest check keeps using the breakout zone even after the band
		// stops validating.
		e.candidate = nil
	}

	if e.candidate == nil {
		return Result{}
	}

	atr, ok := market.Last(market.ATR(candles, 14))
	if !ok {
		return Result{Zone: e.candidate}
	}
	buf := e.cfg.BreakoutBufferFrac * atr

	switch e.state {
	case StateAwaitingRetest:
		if entered := e.checkRetest(ctx, candles, bar, buf); entered != nil {
			return Result{Entered: entered, Zone: e.candidate}
		}
	case StateFlat:
		if entered := e.checkBreakout(ctx, candles, bar, buf); entered != nil {
			return Result{Entered: entered, Zone: e.candidate}
		}
	}
	return Result{Zone: e.candidate}
}

// checkBreakout handles FLAT: a close beyond the band plus buffer with enough
// touches either enters directly (dwell satisfied) or arms the retest wait.
func (e *Engine) checkBreakout(ctx context.Context, candles []*domain.Candle, bar *domain.Candle, buf float64) *domain.Trade {
	z := e.candidate

	if bar.Close > z.HighClose+buf && z.TouchesTop >= e.cfg.MinTouches {
		if z.DwellBars >= e.cfg.MinDwellBars {
			return e.enter(ctx, candles, bar, domain.SideLong, bar.Low)
		}
		e.armRetest(ctx, bar, domain.SideLong)
		return nil
	}

	if bar.Close < z.LowClose-buf && z.TouchesBottom >= e.cfg.MinTouches {
		if z.DwellBars >= e.cfg.MinDwellBars {
			return e.enter(ctx, candles, bar, domain.SideShort, bar.High)
		}
		e.armRetest(ctx, bar, domain.SideShort)
		return nil
	}
	return nil
}

func (e *Engine) armRetest(ctx context.Context, bar *domain.Candle, side domain.Side) {
	e.state = StateAwaitingRetest
	e.retestSide = side
	e.retestDeadline = bar.OpenTime.Add(time.Duration(e.cfg.RetestWindowBars) * e.cfg.BarInterval)
	e.logger.Info(ctx, "no-dwell breakout, waiting for retest", map[string]interface{}{
		"symbol": e.cfg.Symbol,
		"side":   string(side),
		"window": e.cfg.RetestWindowBars,
	})
}

// checkRetest handles AWAITING_RETEST: the window expires back to FLAT, or
// price re-enters the band and closes back beyond the breakout boundary.
func (e *Engine) checkRetest(ctx context.Context, candles []*domain.Candle, bar *domain.Candle, buf float64) *domain.Trade {
	z := e.candidate

	if bar.OpenTime.After(e.retestDeadline) {
		e.logger.Info(ctx, "retest window expired", map[string]interface{}{
			"symbol": e.cfg.Symbol, "side": string(e.retestSide),
		})
		e.state = StateFlat
		e.retestSide = ""
		return nil
	}

	inBand := bar.Low <= z.HighClose && bar.High >= z.LowClose
	if !inBand {
		return nil
	}

	if e.retestSide == domain.SideLong && bar.Close > z.HighClose+buf {
		e.retestSide = ""
		return e.enter(ctx, candles, bar, domain.SideLong, bar.Low)
	}
	if e.retestSide == domain.SideShort && bar.Close < z.LowClose-buf {
		e.retestSide = ""
		return e.enter(ctx, candles, bar, domain.SideShort, bar.High)
	}
	return nil
}

// enter commits a new position unless the admission hook rejects it.
// Targets are selected once here and held fixed; the trailing stop is the
// only exit level recomputed later.
func (e *Engine) enter(ctx context.Context, candles []*domain.Candle, bar *domain.Candle, side domain.Side, stop float64) *domain.Trade {
	perm := market.LadderPermission(market.LabelLadder(candles, e.cfg.Ladder))
	aligned := (side == domain.SideLong && perm == domain.PermissionLong) ||
		(side == domain.SideShort && perm == domain.PermissionShort)

	trade := &domain.Trade{
		Symbol:       e.cfg.Symbol,
		Side:         side,
		EntryTime:    bar.OpenTime,
		EntryPrice:   bar.Close,
		StopPrice:    stop,
		TrendAligned: aligned,
	}

	if e.cfg.Admit != nil && !e.cfg.Admit(ctx, trade) {
		e.state = StateFlat
		return nil
	}

	e.trade = trade
	e.state = StateInPosition
	e.targets = exits.NearestTargetsFromHTFs(candles, side)
	e.trailing, e.hasTrailing = exits.SwingTrailingStop(candles, side)
	if side == domain.SideLong {
		e.highWater = bar.High
		e.lowWater = stop
	} else {
		e.lowWater = bar.Low
		e.highWater = stop
	}

	e.logger.Info(ctx, "range breakout entry", map[string]interface{}{
		"symbol":        e.cfg.Symbol,
		"side":          string(side),
		"entry":         trade.EntryPrice,
		"stop":          trade.StopPrice,
		"t1":            e.targets.T1,
		"t2":            e.targets.T2,
		"trend_aligned": aligned,
	})
	return trade
}

// manageOpenPosition updates water marks, tightens the trailing stop and
// evaluates the exit rules for the current bar.
func (e *Engine) manageOpenPosition(ctx context.Context, candles []*domain.Candle, bar *domain.Candle) *domain.Trade {
	if bar.High > e.highWater {
		e.highWater = bar.High
	}
	if bar.Low < e.lowWater {
		e.lowWater = bar.Low
	}

	// Trailing stop only ever tightens risk.
	if v, ok := exits.SwingTrailingStop(candles, e.trade.Side); ok {
		if !e.hasTrailing {
			e.trailing, e.hasTrailing = v, true
		} else if e.trade.Side == domain.SideLong && v > e.trailing {
			e.trailing = v
		} else if e.trade.Side == domain.SideShort && v < e.trailing {
			e.trailing = v
		}
	}

	decision := exits.EvaluateExit(e.trade.Side, bar, e.effectiveStop(), e.targets)
	if !decision.ExitNow {
		return nil
	}
	return e.close(ctx, bar.OpenTime, decision.Price, decision.Reason)
}

// effectiveStop is the more favorable of the fixed hard stop and the held
// trailing value.
func (e *Engine) effectiveStop() float64 {
	stop := e.trade.StopPrice
	if !e.hasTrailing {
		return stop
	}
	if e.trade.Side == domain.SideLong {
		if e.trailing > stop {
			return e.trailing
		}
		return stop
	}
	if e.trailing < stop {
		return e.trailing
	}
	return stop
}

// ForceClose closes any open position at the given bar's close (end of data
// or end of run). Returns nil when flat.
func (e *Engine) ForceClose(ctx context.Context, bar *domain.Candle) *domain.Trade {
	if e.state != StateInPosition {
		return nil
	}
	if bar.High > e.highWater {
		e.highWater = bar.High
	}
	if bar.Low < e.lowWater {
		e.lowWater = bar.Low
	}
	return e.close(ctx, bar.OpenTime, bar.Close, domain.ExitEndOfData)
}

func (e *Engine) close(ctx context.Context, at time.Time, price float64, reason domain.ExitReason) *domain.Trade {
	t := e.trade
	t.ExitTime = at
	t.ExitPrice = price
	t.ExitReason = reason

	if risk := t.Risk(); risk > 0 {
		if t.Side == domain.SideLong {
			t.MFE = (e.highWater - t.EntryPrice) / risk
			t.MAE = (t.EntryPrice - e.lowWater) / risk
		} else {
			t.MFE = (t.EntryPrice - e.lowWater) / risk
			t.MAE = (e.highWater - t.EntryPrice) / risk
		}
	}

	e.logger.Info(ctx, "position closed", map[string]interface{}{
		"symbol": e.cfg.Symbol,
		"side":   string(t.Side),
		"exit":   price,
		"reason": string(reason),
		"mfe_r":  t.MFE,
		"mae_r":  t.MAE,
	})

	e.trade = nil
	e.targets = exits.Targets{}
	e.trailing, e.hasTrailing = 0, false
	e.candidate = nil
	e.state = StateFlat
	if e.cfg.CooldownBars > 0 {
		e.cooldownUntil = at.Add(time.Duration(e.cfg.CooldownBars) * e.cfg.BarInterval)
	}
	return t
}
