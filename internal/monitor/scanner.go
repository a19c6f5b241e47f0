package monitor

import (
	"context"
	"fmt"
	"sort"
	"time"

	"mtfBreakoutBot/internal/ports"
	"mtfBreakoutBot/internal/zones"
)

// scanner touch threshold: looser than the breakout requirement so symbols
// building a zone are admitted before they become tradable.
const scannerMinTouches = 2

// ScannerConfig holds the global scan loop parameters.
type ScannerConfig struct {
	Symbols      []string
	Interval     string
	BarInterval  time.Duration
	ScanInterval time.Duration
	PoolSize     int // Top-N candidates admitted per sweep
	Zone         zones.Config
}

// candidate is one ranked scan hit.
type candidate struct {
	symbol string
	score  float64
}

// Scanner periodically sweeps the whole symbol universe, ranks zones by
// touch density and tightness, and hands the top candidates to the pool
// admission callback.
type Scanner struct {
	cfg    ScannerConfig
	data   ports.MarketDataSource
	logger ports.Logger
	admit  func(symbol string)

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewScanner creates a scanner; admit is invoked for each admitted symbol.
func NewScanner(cfg ScannerConfig, data ports.MarketDataSource, logger ports.Logger, admit func(symbol string)) *Scanner {
	return &Scanner{
		cfg:    cfg,
		data:   data,
		logger: logger,
		admit:  admit,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Stop requests a cooperative stop.
func (s *Scanner) Stop() {
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}
}

// Done is closed when the scan loop has ended.
func (s *Scanner) Done() <-chan struct{} { return s.doneCh }

// Run sweeps the universe until stopped. Errors in one sweep are logged and
// the loop continues after the normal interval.
func (s *Scanner) Run(ctx context.Context) {
	defer close(s.doneCh)
	s.logger.Info(ctx, "global scanner start", map[string]interface{}{
		"symbols": len(s.cfg.Symbols), "interval": s.cfg.Interval, "scan_every": s.cfg.ScanInterval.String(),
	})

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		s.sweep(ctx)

		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.ScanInterval):
		}
	}
}

func (s *Scanner) sweep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, fmt.Errorf("panic: %v", r), "scanner sweep panicked")
		}
	}()

	fetchBars := s.cfg.Zone.DwellBars + 20
	if fetchBars < 60 {
		fetchBars = 60
	}

	var candidates []candidate
	for _, sym := range s.cfg.Symbols {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		end := time.Now().UTC()
		start := end.Add(-time.Duration(fetchBars) * s.cfg.BarInterval)
		candles, err := s.data.FetchCandles(ctx, sym, s.cfg.Interval, start, end)
		if err != nil {
			s.logger.Warn(ctx, "scan fetch failed", map[string]interface{}{"symbol": sym, "error": err.Error()})
			continue
		}
		if len(candles) == 0 {
			continue
		}

		z := zones.Detect(candles, s.cfg.Zone)
		if z == nil {
			continue
		}
		if z.TouchesTop < scannerMinTouches && z.TouchesBottom < scannerMinTouches {
			continue
		}
		candidates = append(candidates, candidate{symbol: sym, score: priorityScore(z)})
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	n := len(candidates)
	if n > s.cfg.PoolSize {
		n = s.cfg.PoolSize
	}
	for _, c := range candidates[:n] {
		s.admit(c.symbol)
	}
}
