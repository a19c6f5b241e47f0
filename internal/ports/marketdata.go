package ports

import (
	"context"
	"time"

	"mtfBreakoutBot/internal/domain"
)

// MarketDataSource provides historical and recent candle series for symbols.
// Implementations may serve ranges from a local cache merged with freshly
// fetched data, deduplicated by open time (last write wins).
type MarketDataSource interface {
	// FetchCandles retrieves candles for the symbol/interval ordered by open
	// time, covering [start, end]. The result may be empty.
	FetchCandles(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Candle, error)

	// TopSymbolsByQuoteVolume returns up to n symbol identifiers ranked by
	// 24h quote volume, highest first.
	TopSymbolsByQuoteVolume(ctx context.Context, n int) ([]string, error)
}
