package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"mtfBreakoutBot/internal/engine"
	"mtfBreakoutBot/internal/ports"
	"mtfBreakoutBot/internal/risk"
)

const (
	reapInterval = 5 * time.Second
	joinTimeout  = 5 * time.Second
)

// Config holds the live monitor parameters.
type Config struct {
	Symbols      []string
	Interval     string
	BarInterval  time.Duration
	PollInterval time.Duration
	ScanInterval time.Duration
	FetchBars    int
	PoolSize     int
	MaxPositions int
	Leverage     int
	Engine       engine.Config
}

// Monitor owns the actively-watched pool: a global scanner admits the
// top-ranked symbols, one watcher goroutine runs per admitted symbol, and a
// maintenance loop reaps watchers whose run has ended. The watcher map and
// candidate set are the only shared mutable state, guarded by one mutex; the
// global open-position cap lives in its own lock-protected counter.
type Monitor struct {
	cfg       Config
	data      ports.MarketDataSource
	exec      ports.ExecutionClient
	sizer     *risk.Sizer
	reporting ports.ReportingSink
	trades    ports.TradeRepository
	logger    ports.Logger

	mu         sync.Mutex
	watchers   map[string]*Watcher
	candidates map[string]struct{}

	positions *PositionCounter
	scanner   *Scanner

	runCtx    context.Context
	runCancel context.CancelFunc
	reapDone  chan struct{}
}

// New wires a monitor.
func New(
	cfg Config,
	data ports.MarketDataSource,
	exec ports.ExecutionClient,
	sizer *risk.Sizer,
	reporting ports.ReportingSink,
	trades ports.TradeRepository,
	logger ports.Logger,
) (*Monitor, error) {
	if data == nil || exec == nil || sizer == nil || reporting == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for Monitor")
	}
	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("at least one symbol is required")
	}
	if cfg.MaxPositions <= 0 {
		return nil, fmt.Errorf("MaxPositions must be positive")
	}
	if cfg.FetchBars <= 0 {
		// Enough bars for zone detection plus indicator warm-up.
		cfg.FetchBars = 240
	}

	m := &Monitor{
		cfg:        cfg,
		data:       data,
		exec:       exec,
		sizer:      sizer,
		reporting:  reporting,
		trades:     trades,
		logger:     logger,
		watchers:   make(map[string]*Watcher),
		candidates: make(map[string]struct{}),
		positions:  NewPositionCounter(cfg.MaxPositions),
		reapDone:   make(chan struct{}),
	}

	m.scanner = NewScanner(ScannerConfig{
		Symbols:      cfg.Symbols,
		Interval:     cfg.Interval,
		BarInterval:  cfg.BarInterval,
		ScanInterval: cfg.ScanInterval,
		PoolSize:     cfg.PoolSize,
		Zone:         cfg.Engine.Zone,
	}, data, logger, m.onCandidate)

	return m, nil
}

// Start launches the scanner and the maintenance loop. Non-blocking.
func (m *Monitor) Start(ctx context.Context) {
	m.runCtx, m.runCancel = context.WithCancel(ctx)
	m.logger.Info(ctx, "monitor starting", map[string]interface{}{
		"universe":      len(m.cfg.Symbols),
		"pool_size":     m.cfg.PoolSize,
		"max_positions": m.cfg.MaxPositions,
	})
	m.sweepOrphans(ctx)
	go m.scanner.Run(m.runCtx)
	go m.maintenanceLoop()
}

// sweepOrphans checks the exchange for positions held before this process
// started. Orphans are not managed here, but they consume slots so the
// global cap reflects real exposure.
func (m *Monitor) sweepOrphans(ctx context.Context) {
	open, err := m.exec.OpenPositions(ctx)
	if err != nil {
		m.logger.Error(ctx, err, "orphan position sweep failed")
		return
	}
	for _, p := range open {
		m.logger.Warn(ctx, "unmanaged position on exchange, reserving a slot", map[string]interface{}{
			"symbol": p.Symbol, "quantity": p.Quantity, "entry_price": p.EntryPrice,
		})
		if !m.positions.TryAcquire() {
			m.logger.Warn(ctx, "position cap already consumed by unmanaged positions")
			break
		}
	}
}

// onCandidate admits a symbol into the watched pool unless already present.
func (m *Monitor) onCandidate(symbol string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, watching := m.watchers[symbol]; watching {
		return
	}
	if _, pending := m.candidates[symbol]; pending {
		return
	}
	m.logger.Info(m.runCtx, "admitting symbol to monitor pool", map[string]interface{}{"symbol": symbol})
	m.candidates[symbol] = struct{}{}

	w := NewWatcher(WatcherConfig{
		Symbol:       symbol,
		Interval:     m.cfg.Interval,
		BarInterval:  m.cfg.BarInterval,
		PollInterval: m.cfg.PollInterval,
		FetchBars:    m.cfg.FetchBars,
		Leverage:     m.cfg.Leverage,
		Engine:       m.cfg.Engine,
	}, m.data, m.exec, m.sizer, m.reporting, m.trades, m.positions, m.logger)
	m.watchers[symbol] = w
	go w.Run(m.runCtx)
}

// maintenanceLoop periodically removes watchers whose run has ended.
func (m *Monitor) maintenanceLoop() {
	defer close(m.reapDone)
	ticker := time.NewTicker(reapInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.runCtx.Done():
			return
		case <-ticker.C:
			m.reap()
		}
	}
}

func (m *Monitor) reap() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for sym, w := range m.watchers {
		select {
		case <-w.Done():
			m.logger.Info(m.runCtx, "removing symbol from monitor pool", map[string]interface{}{"symbol": sym})
			delete(m.watchers, sym)
			delete(m.candidates, sym)
			m.reporting.RemoveZone(sym)
		default:
		}
	}
}

// WatchedSymbols returns a snapshot of the currently watched symbols.
func (m *Monitor) WatchedSymbols() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.watchers))
	for sym := range m.watchers {
		out = append(out, sym)
	}
	return out
}

// Stop cooperatively stops the scanner and all watchers and joins them with
// a bounded timeout per component.
func (m *Monitor) Stop(ctx context.Context) {
	m.logger.Info(ctx, "monitor stopping")
	m.scanner.Stop()

	m.mu.Lock()
	ws := make([]*Watcher, 0, len(m.watchers))
	for _, w := range m.watchers {
		w.Stop()
		ws = append(ws, w)
	}
	m.mu.Unlock()

	join := func(done <-chan struct{}) {
		select {
		case <-done:
		case <-time.After(joinTimeout):
		}
	}
	join(m.scanner.Done())
	for _, w := range ws {
		join(w.Done())
	}

	if m.runCancel != nil {
		m.runCancel()
	}
	join(m.reapDone)
	m.logger.Info(ctx, "monitor stopped")
}
