package dashboard

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"mtfBreakoutBot/internal/analytics"
	"mtfBreakoutBot/internal/domain"
	"mtfBreakoutBot/internal/ports"

	"github.com/gorilla/mux"
)

// Server implements ports.ReportingSink and exposes the collected state over
// a small JSON API for a polling status page.
type Server struct {
	logger ports.Logger
	http   *http.Server

	mu       sync.RWMutex
	started  time.Time
	nextID   int
	trades   map[string]*tradeRecord
	order    []string // insertion order of trade IDs
	zones    map[string]ports.ZoneInfo
}

type tradeRecord struct {
	trade         domain.Trade
	pnl           float64
	currentPrice  float64
	unrealizedPNL float64
}

// New creates a dashboard server listening on addr (e.g. ":8080").
func New(addr string, logger ports.Logger) (*Server, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for dashboard server")
	}
	s := &Server{
		logger:  logger,
		started: time.Now(),
		trades:  make(map[string]*tradeRecord),
		zones:   make(map[string]ports.ZoneInfo),
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/trades", s.handleTrades).Methods(http.MethodGet)
	r.HandleFunc("/api/zones", s.handleZones).Methods(http.MethodGet)
	r.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet)

	s.http = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s, nil
}

// Start blocks serving HTTP until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.logger.Info(context.Background(), "Dashboard listening", map[string]interface{}{"addr": s.http.Addr})
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// --- ports.ReportingSink ---

// RecordTrade registers a newly opened trade and returns its reporting ID.
func (s *Server) RecordTrade(trade *domain.Trade) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := fmt.Sprintf("T-%d", s.nextID)
	s.trades[id] = &tradeRecord{trade: *trade, currentPrice: trade.EntryPrice}
	s.order = append(s.order, id)
	return id
}

// UpdateTrade applies a partial update to a previously recorded trade.
// Unknown IDs are ignored.
func (s *Server) UpdateTrade(id string, update domain.TradeUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.trades[id]
	if !ok {
		return
	}
	update.Apply(&rec.trade)
	if update.PNL != nil {
		rec.pnl = *update.PNL
	}
	if update.CurrentPrice != nil {
		rec.currentPrice = *update.CurrentPrice
	}
	if update.UnrealizedPNL != nil {
		rec.unrealizedPNL = *update.UnrealizedPNL
	}
}

// UpsertZone records the current candidate zone for a symbol.
func (s *Server) UpsertZone(zone ports.ZoneInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.zones[zone.Symbol] = zone
}

// RemoveZone drops the candidate zone for a symbol.
func (s *Server) RemoveZone(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.zones, symbol)
}

// --- handlers ---

type tradeView struct {
	ID            string  `json:"id"`
	Symbol        string  `json:"symbol"`
	Side          string  `json:"side"`
	EntryTime     string  `json:"entry_time"`
	EntryPrice    float64 `json:"entry_price"`
	StopPrice     float64 `json:"stop_price"`
	Quantity      float64 `json:"quantity"`
	TrendAligned  bool    `json:"trend_aligned"`
	Open          bool    `json:"open"`
	ExitTime      string  `json:"exit_time,omitempty"`
	ExitPrice     float64 `json:"exit_price,omitempty"`
	ExitReason    string  `json:"exit_reason,omitempty"`
	PNL           float64 `json:"pnl"`
	RMultiple     float64 `json:"r_multiple"`
	CurrentPrice  float64 `json:"current_price"`
	UnrealizedPNL float64 `json:"unrealized_pnl"`
	MFE           float64 `json:"mfe"`
	MAE           float64 `json:"mae"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	open := 0
	for _, rec := range s.trades {
		if rec.trade.IsOpen() {
			open++
		}
	}
	resp := map[string]interface{}{
		"status":         "running",
		"uptime_seconds": int(time.Since(s.started).Seconds()),
		"open_trades":    open,
		"total_trades":   len(s.trades),
		"watched_zones":  len(s.zones),
	}
	s.mu.RUnlock()
	writeJSON(w, s.logger, resp)
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	views := make([]tradeView, 0, len(s.order))
	for _, id := range s.order {
		rec := s.trades[id]
		tr := rec.trade
		v := tradeView{
			ID:            id,
			Symbol:        tr.Symbol,
			Side:          string(tr.Side),
			EntryTime:     tr.EntryTime.UTC().Format(time.RFC3339),
			EntryPrice:    tr.EntryPrice,
			StopPrice:     tr.StopPrice,
			Quantity:      tr.Quantity,
			TrendAligned:  tr.TrendAligned,
			Open:          tr.IsOpen(),
			PNL:           rec.pnl,
			RMultiple:     tr.RMultiple(),
			CurrentPrice:  rec.currentPrice,
			UnrealizedPNL: rec.unrealizedPNL,
			MFE:           tr.MFE,
			MAE:           tr.MAE,
		}
		if !tr.IsOpen() {
			v.ExitTime = tr.ExitTime.UTC().Format(time.RFC3339)
			v.ExitPrice = tr.ExitPrice
			v.ExitReason = string(tr.ExitReason)
		}
		views = append(views, v)
	}
	s.mu.RUnlock()
	writeJSON(w, s.logger, views)
}

func (s *Server) handleZones(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	zones := make([]ports.ZoneInfo, 0, len(s.zones))
	for _, z := range s.zones {
		zones = append(zones, z)
	}
	s.mu.RUnlock()
	// Strongest candidates first
	sort.Slice(zones, func(i, j int) bool { return zones[i].PriorityScore > zones[j].PriorityScore })
	writeJSON(w, s.logger, zones)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	closed := make([]*domain.Trade, 0, len(s.trades))
	for _, rec := range s.trades {
		if !rec.trade.IsOpen() {
			tr := rec.trade
			closed = append(closed, &tr)
		}
	}
	s.mu.RUnlock()
	writeJSON(w, s.logger, analytics.Compute(closed))
}

func writeJSON(w http.ResponseWriter, logger ports.Logger, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error(context.Background(), err, "failed to encode dashboard response")
	}
}
