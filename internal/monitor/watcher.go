package monitor

import (
	"context"
	"fmt"
	"time"

	"mtfBreakoutBot/internal/domain"
	"mtfBreakoutBot/internal/engine"
	"mtfBreakoutBot/internal/ports"
	"mtfBreakoutBot/internal/risk"
)

// WatcherConfig holds the per-symbol poll loop parameters.
type WatcherConfig struct {
	Symbol       string
	Interval     string
	BarInterval  time.Duration
	PollInterval time.Duration
	FetchBars    int // Trailing window fetched each tick
	Leverage     int // Set on the exchange before the first tick; 0 skips
	Engine       engine.Config
}

// Watcher runs the breakout state machine for one symbol against a polled
// live feed. It owns all mutable per-symbol state via its engine; the only
// shared state it touches is the position counter. A watcher ends on Stop,
// or organically once it is flat with no zone left to watch; the monitor's
// maintenance loop reaps it then.
type Watcher struct {
	cfg       WatcherConfig
	data      ports.MarketDataSource
	exec      ports.ExecutionClient
	sizer     *risk.Sizer
	reporting ports.ReportingSink
	trades    ports.TradeRepository
	logger    ports.Logger
	counter   *PositionCounter

	eng     *engine.Engine
	tradeID string // reporting ID of the currently open trade

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatcher wires a watcher; Run must be called exactly once.
func NewWatcher(
	cfg WatcherConfig,
	data ports.MarketDataSource,
	exec ports.ExecutionClient,
	sizer *risk.Sizer,
	reporting ports.ReportingSink,
	trades ports.TradeRepository,
	counter *PositionCounter,
	logger ports.Logger,
) *Watcher {
	w := &Watcher{
		cfg:       cfg,
		data:      data,
		exec:      exec,
		sizer:     sizer,
		reporting: reporting,
		trades:    trades,
		logger:    logger,
		counter:   counter,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}

	engCfg := cfg.Engine
	engCfg.Symbol = cfg.Symbol
	engCfg.BarInterval = cfg.BarInterval
	engCfg.Admit = w.admit
	w.eng = engine.New(engCfg, logger)
	return w
}

// Stop requests a cooperative stop; the watcher observes it at the top of
// the next poll iteration.
func (w *Watcher) Stop() {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
}

// Done is closed when the run loop has ended.
func (w *Watcher) Done() <-chan struct{} { return w.doneCh }

// Run is the poll loop: fetch recent window, advance the state machine,
// sleep. Any error or panic in one tick is logged and the loop continues;
// one symbol's failure never affects the others.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.doneCh)
	w.logger.Info(ctx, "watcher start", map[string]interface{}{
		"symbol": w.cfg.Symbol, "interval": w.cfg.Interval, "poll": w.cfg.PollInterval.String(),
	})

	if w.cfg.Leverage > 0 {
		if err := w.exec.SetLeverage(ctx, w.cfg.Symbol, w.cfg.Leverage); err != nil {
			w.logger.Error(ctx, err, "set leverage failed", map[string]interface{}{
				"symbol": w.cfg.Symbol, "leverage": w.cfg.Leverage,
			})
		}
	}

	for {
		select {
		case <-w.stopCh:
			w.logger.Info(ctx, "watcher stopped", map[string]interface{}{"symbol": w.cfg.Symbol})
			return
		case <-ctx.Done():
			return
		default:
		}

		if done := w.tick(ctx); done {
			w.logger.Info(ctx, "watcher exit: candidate zone vanished", map[string]interface{}{"symbol": w.cfg.Symbol})
			return
		}

		select {
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(w.cfg.PollInterval):
		}
	}
}

// tick runs one evaluation. Returns true when the watcher should end.
func (w *Watcher) tick(ctx context.Context) (done bool) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error(ctx, fmt.Errorf("panic: %v", r), "watcher tick panicked", map[string]interface{}{"symbol": w.cfg.Symbol})
			done = false
		}
	}()

	end := time.Now().UTC()
	start := end.Add(-time.Duration(w.cfg.FetchBars) * w.cfg.BarInterval)
	candles, err := w.data.FetchCandles(ctx, w.cfg.Symbol, w.cfg.Interval, start, end)
	if err != nil {
		w.logger.Error(ctx, err, "fetch failed, retrying next tick", map[string]interface{}{"symbol": w.cfg.Symbol})
		return false
	}
	if len(candles) == 0 {
		return false
	}

	res := w.eng.OnBar(ctx, candles)

	if res.Zone != nil {
		w.reporting.UpsertZone(zoneInfo(w.cfg.Symbol, res.Zone))
	} else {
		w.reporting.RemoveZone(w.cfg.Symbol)
	}

	if res.Entered != nil {
		w.onEntry(ctx, res.Entered)
	}
	if res.Closed != nil {
		w.onExit(ctx, res.Closed)
	}

	// End organically once there is nothing left to watch.
	now := candles[len(candles)-1].OpenTime
	if w.eng.State() == engine.StateFlat && res.Zone == nil && !w.eng.CoolingDown(now) {
		return true
	}
	return false
}

// admit is the engine's pre-commit entry gate: global position cap first,
// then sizing. Rejection leaves no partial state anywhere.
func (w *Watcher) admit(ctx context.Context, trade *domain.Trade) bool {
	if !w.counter.TryAcquire() {
		w.logger.Warn(ctx, "max positions reached, dropping entry", map[string]interface{}{
			"symbol": trade.Symbol, "side": string(trade.Side),
		})
		return false
	}

	qty, err := w.sizer.PositionSize(ctx, trade.Symbol, trade.EntryPrice, trade.StopPrice, trade.TrendAligned)
	if err != nil {
		w.counter.Release()
		w.logger.Warn(ctx, "entry aborted: invalid position size", map[string]interface{}{
			"symbol": trade.Symbol, "error": err.Error(),
		})
		return false
	}
	trade.Quantity = qty
	return true
}

func (w *Watcher) onEntry(ctx context.Context, trade *domain.Trade) {
	w.tradeID = w.reporting.RecordTrade(trade)

	if err := w.exec.PlaceMarketOrder(ctx, trade.Symbol, trade.Side, trade.Quantity); err != nil {
		w.logger.Error(ctx, err, "entry order failed", map[string]interface{}{"symbol": trade.Symbol})
		return
	}
	// Protective stop on the exchange; the trailing stop stays engine-side.
	stopSide := domain.SideShort
	if trade.Side == domain.SideShort {
		stopSide = domain.SideLong
	}
	if err := w.exec.PlaceStopOrder(ctx, trade.Symbol, stopSide, trade.Quantity, trade.StopPrice); err != nil {
		w.logger.Error(ctx, err, "stop order failed", map[string]interface{}{"symbol": trade.Symbol})
	}
}

func (w *Watcher) onExit(ctx context.Context, trade *domain.Trade) {
	w.counter.Release()

	if err := w.exec.ClosePosition(ctx, trade.Symbol, trade.Side, trade.Quantity); err != nil {
		w.logger.Error(ctx, err, "close order failed", map[string]interface{}{"symbol": trade.Symbol})
	}

	exitTime := trade.ExitTime
	exitPrice := trade.ExitPrice
	exitReason := trade.ExitReason
	pnl := trade.RMultiple()
	w.reporting.UpdateTrade(w.tradeID, domain.TradeUpdate{
		ExitTime:   &exitTime,
		ExitPrice:  &exitPrice,
		ExitReason: &exitReason,
		PNL:        &pnl,
	})
	w.tradeID = ""

	if w.trades != nil {
		if _, err := w.trades.CreateTrade(ctx, trade); err != nil {
			w.logger.Error(ctx, err, "persisting trade failed", map[string]interface{}{"symbol": trade.Symbol})
		}
	}
}

func zoneInfo(symbol string, z *domain.Zone) ports.ZoneInfo {
	return ports.ZoneInfo{
		Symbol:        symbol,
		HighClose:     z.HighClose,
		LowClose:      z.LowClose,
		Width:         z.Width,
		TouchesTop:    z.TouchesTop,
		TouchesBottom: z.TouchesBottom,
		TotalTouches:  z.TotalTouches,
		DwellBars:     z.DwellBars,
		PriorityScore: priorityScore(z),
		LastUpdated:   time.Now().UTC().Format(time.RFC3339),
	}
}

// priorityScore ranks candidates: more touches and a tighter band first.
func priorityScore(z *domain.Zone) float64 {
	touches := z.TouchesTop
	if z.TouchesBottom > touches {
		touches = z.TouchesBottom
	}
	return float64(touches) / (z.Width + 0.001)
}
