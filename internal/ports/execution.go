package ports

import (
	"context"

	"mtfBreakoutBot/internal/domain"
)

// OpenPosition describes a position currently held on the exchange.
type OpenPosition struct {
	Symbol     string
	Quantity   float64 // Positive for long, negative for short
	EntryPrice float64
	MarkPrice  float64
	Leverage   int
}

// ExecutionClient is the sink for orders produced by the live monitor.
// Implementations may run in dry-run mode, logging intent without touching
// the exchange.
type ExecutionClient interface {
	// PlaceMarketOrder opens or increases a position at market.
	PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity float64) error

	// PlaceStopOrder places a stop-market order protecting an open position.
	PlaceStopOrder(ctx context.Context, symbol string, side domain.Side, quantity, stopPrice float64) error

	// ClosePosition closes an open position at market.
	ClosePosition(ctx context.Context, symbol string, side domain.Side, quantity float64) error

	// AccountBalance returns the available balance of the quote asset.
	AccountBalance(ctx context.Context) (float64, error)

	// OpenPositions lists positions currently held on the exchange.
	OpenPositions(ctx context.Context) ([]OpenPosition, error)

	// SetLeverage sets the leverage for a symbol before trading it.
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}
