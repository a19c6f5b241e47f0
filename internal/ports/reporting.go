package ports

import (
	"mtfBreakoutBot/internal/domain"
)

// ZoneInfo is the reporting view of a detected zone for one symbol.
type ZoneInfo struct {
	Symbol        string
	HighClose     float64
	LowClose      float64
	Width         float64
	TouchesTop    int
	TouchesBottom int
	TotalTouches  int
	DwellBars     int
	PriorityScore float64
	LastUpdated   string
}

// ReportingSink receives trade lifecycle events and zone updates and exposes
// the aggregate state for a polling status view. Implementations own their
// lifecycle; no process-wide singleton.
type ReportingSink interface {
	// RecordTrade registers a newly opened trade and returns its reporting ID.
	RecordTrade(trade *domain.Trade) string

	// UpdateTrade applies a typed partial update to a previously recorded trade.
	UpdateTrade(id string, update domain.TradeUpdate)

	// UpsertZone records the current candidate zone for a symbol.
	UpsertZone(zone ZoneInfo)

	// RemoveZone drops the candidate zone for a symbol.
	RemoveZone(symbol string)
}
