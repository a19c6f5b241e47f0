package backtest

import (
	"context"
	"fmt"
	"time"

	"mtfBreakoutBot/internal/analytics"
	"mtfBreakoutBot/internal/domain"
	"mtfBreakoutBot/internal/engine"
	"mtfBreakoutBot/internal/ports"
)

// warmupBars is the minimum history before any evaluation is attempted.
// Zone detection needs 50 bars; the trend ladder stays Neutral until its
// timeframes have 210, which the engine handles per bar.
const warmupBars = 50

// Config holds the backtest run parameters.
type Config struct {
	Symbols  []string
	Interval string
	Start    time.Time
	End      time.Time
	Engine   engine.Config // Symbol field is filled per run
}

// Result holds the closed trades and summary statistics of one run.
type Result struct {
	Trades  []*domain.Trade
	Summary analytics.Summary
}

// Backtester replays historical candles bar-by-bar through the shared
// breakout state machine. Fully single-threaded and deterministic: symbols
// are processed one after another, each with one upfront bulk fetch.
type Backtester struct {
	cfg    Config
	data   ports.MarketDataSource
	logger ports.Logger
}

// New creates a Backtester.
func New(cfg Config, data ports.MarketDataSource, logger ports.Logger) (*Backtester, error) {
	if data == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Backtester")
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("at least one symbol is required")
	}
	if !cfg.End.After(cfg.Start) {
		return nil, fmt.Errorf("end time must be after start time")
	}
	return &Backtester{cfg: cfg, data: data, logger: logger}, nil
}

// Run replays every configured symbol and returns the combined result.
// A symbol with no data is skipped, never fatal.
func (b *Backtester) Run(ctx context.Context) (*Result, error) {
	result := &Result{}
	for _, sym := range b.cfg.Symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		trades, err := b.runSymbol(ctx, sym)
		if err != nil {
			b.logger.Error(ctx, err, "symbol backtest failed, continuing", map[string]interface{}{"symbol": sym})
			continue
		}
		result.Trades = append(result.Trades, trades...)
	}
	result.Summary = analytics.Compute(result.Trades)
	return result, nil
}

// RunSeries replays an already fetched series. Used directly by tests and by
// Run after the bulk fetch.
func (b *Backtester) RunSeries(ctx context.Context, symbol string, candles []*domain.Candle) []*domain.Trade {
	engCfg := b.cfg.Engine
	engCfg.Symbol = symbol
	eng := engine.New(engCfg, b.logger)

	var trades []*domain.Trade
	for i := warmupBars; i < len(candles); i++ {
		res := eng.OnBar(ctx, candles[:i+1])
		if res.Closed != nil {
			trades = append(trades, res.Closed)
		}
	}

	// Force-close any open position at the last bar (mark to market).
	if len(candles) > 0 {
		if t := eng.ForceClose(ctx, candles[len(candles)-1]); t != nil {
			trades = append(trades, t)
		}
	}
	return trades
}

func (b *Backtester) runSymbol(ctx context.Context, symbol string) ([]*domain.Trade, error) {
	b.logger.Info(ctx, "backtesting symbol", map[string]interface{}{
		"symbol":   symbol,
		"interval": b.cfg.Interval,
		"start":    b.cfg.Start,
		"end":      b.cfg.End,
	})

	candles, err := b.data.FetchCandles(ctx, symbol, b.cfg.Interval, b.cfg.Start, b.cfg.End)
	if err != nil {
		return nil, fmt.Errorf("fetching candles for %s: %w", symbol, err)
	}
	if len(candles) == 0 {
		b.logger.Warn(ctx, "no data, skipping symbol", map[string]interface{}{"symbol": symbol})
		return nil, nil
	}
	return b.RunSeries(ctx, symbol, candles), nil
}
