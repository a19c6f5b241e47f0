package ports

import (
	"context"

	"mtfBreakoutBot/internal/domain"
)

// TradeRepository defines the interface for storing and retrieving closed trades.
type TradeRepository interface {
	// CreateTrade saves a new trade record and returns its assigned ID.
	CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error)
	// FindBySymbol retrieves the most recent trades for a given symbol, up to a limit.
	FindBySymbol(ctx context.Context, symbol string, limit int) ([]*domain.Trade, error)
	// FindAll retrieves all trades, ordered by entry time descending.
	FindAll(ctx context.Context) ([]*domain.Trade, error)
}
