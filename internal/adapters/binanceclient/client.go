package binanceclient

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"mtfBreakoutBot/internal/domain"
	"mtfBreakoutBot/internal/ports"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	// Base URLs
	baseURLProduction = "https://fapi.binance.com"
	baseURLTestnet    = "https://testnet.binancefuture.com"

	maxKlineLimit = 1500
	quoteAsset    = "USDT"
)

// Client implements ports.MarketDataSource and ports.ExecutionClient using
// the go-binance futures API. Fetches are rate limited and retried with
// exponential backoff; candle ranges are merged into a local CSV cache per
// (symbol, interval), deduplicated by open time with last write winning.
type Client struct {
	futuresClient  *futures.Client
	logger         ports.Logger
	limiter        *rate.Limiter
	dataDir        string
	dryRun         bool
	maxRetryPeriod time.Duration
}

// Config holds configuration specific to the Binance client adapter.
type Config struct {
	APIKey         string
	SecretKey      string
	UseTestnet     bool
	DryRun         bool   // Log order intent instead of placing orders
	DataDir        string // Candle cache directory; empty disables the cache
	RequestsPerSec int    // REST rate limit, defaults to 5
	MaxRetryPeriod time.Duration
	Logger         ports.Logger
}

// New creates a new Binance client adapter.
func New(cfg Config) (*Client, error) {
	if cfg.Logger == nil {
		return nil, fmt.Errorf("logger is required for Binance client")
	}
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		cfg.Logger.Warn(context.Background(), "APIKey or SecretKey is empty. Client will only work for public endpoints.")
	}

	client := futures.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.UseTestnet {
		client.BaseURL = baseURLTestnet
	} else {
		client.BaseURL = baseURLProduction
	}
	cfg.Logger.Info(context.Background(), "Binance client configured", map[string]interface{}{
		"baseURL": client.BaseURL,
		"dry_run": cfg.DryRun,
	})

	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	retryPeriod := cfg.MaxRetryPeriod
	if retryPeriod <= 0 {
		retryPeriod = 30 * time.Second
	}

	return &Client{
		futuresClient:  client,
		logger:         cfg.Logger,
		limiter:        rate.NewLimiter(rate.Limit(rps), rps),
		dataDir:        cfg.DataDir,
		dryRun:         cfg.DryRun,
		maxRetryPeriod: retryPeriod,
	}, nil
}

// handleError translates common Binance API errors into standardized ports errors.
func (c *Client) handleError(ctx context.Context, err error, operation string) error {
	if err == nil {
		return nil
	}
	fields := map[string]interface{}{"operation": operation, "originalError": err.Error()}

	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		fields["apiErrorCode"] = apiErr.Code
		var mappedErr error
		switch apiErr.Code {
		case -1003:
			mappedErr = ports.ErrRateLimited
		case -1021:
			mappedErr = ports.ErrTimeout
		case -1022:
			mappedErr = ports.ErrAuthenticationFailed
		case -2010:
			mappedErr = ports.ErrOrderPlacementFailed
		case -2014, -2015:
			mappedErr = ports.ErrInvalidAPIKeys
		case -2019, -3005:
			mappedErr = ports.ErrInsufficientFunds
		default:
			mappedErr = ports.ErrUnknown
		}
		c.logger.Error(ctx, mappedErr, "Binance API error", fields)
		return fmt.Errorf("%s failed: %w (code %d: %s)", operation, mappedErr, apiErr.Code, apiErr.Message)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s failed: %w", operation, ports.ErrContextCanceled)
	}
	c.logger.Error(ctx, err, "Binance request error", fields)
	return fmt.Errorf("%s failed: %w", operation, err)
}

// withRetry runs op under the rate limiter with bounded exponential backoff.
func (c *Client) withRetry(ctx context.Context, op func() error) error {
	call := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return backoff.Permanent(err)
		}
		if err := op(); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}
	strategy := backoff.NewExponentialBackOff()
	strategy.MaxElapsedTime = c.maxRetryPeriod
	return backoff.Retry(call, backoff.WithContext(strategy, ctx))
}

// FetchCandles retrieves candles for [start, end], serving from and updating
// the local cache when one is configured.
func (c *Client) FetchCandles(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Candle, error) {
	fetched, err := c.fetchRange(ctx, symbol, interval, start, end)
	if err != nil {
		return nil, err
	}

	if c.dataDir == "" {
		return fetched, nil
	}

	cached, err := c.readCache(symbol, interval)
	if err != nil {
		c.logger.Warn(ctx, "candle cache unreadable, rebuilding", map[string]interface{}{
			"symbol": symbol, "interval": interval, "error": err.Error(),
		})
		cached = nil
	}
	merged := mergeCandles(cached, fetched)
	if err := c.writeCache(symbol, interval, merged); err != nil {
		c.logger.Warn(ctx, "candle cache write failed", map[string]interface{}{
			"symbol": symbol, "interval": interval, "error": err.Error(),
		})
	}

	return sliceRange(merged, start, end), nil
}

// fetchRange pages through the klines endpoint until the range is covered.
func (c *Client) fetchRange(ctx context.Context, symbol, interval string, start, end time.Time) ([]*domain.Candle, error) {
	op := "FetchCandles"
	var out []*domain.Candle
	from := start

	for {
		var klines []*futures.Kline
		err := c.withRetry(ctx, func() error {
			var innerErr error
			klines, innerErr = c.futuresClient.NewKlinesService().
				Symbol(symbol).
				Interval(interval).
				StartTime(from.UnixMilli()).
				EndTime(end.UnixMilli()).
				Limit(maxKlineLimit).
				Do(ctx)
			return innerErr
		})
		if err != nil {
			return nil, c.handleError(ctx, err, op)
		}
		if len(klines) == 0 {
			break
		}
		for _, bk := range klines {
			candle, err := translateKline(bk, symbol, interval)
			if err != nil {
				return nil, c.handleError(ctx, err, op)
			}
			out = append(out, candle)
		}
		last := klines[len(klines)-1]
		from = time.UnixMilli(last.CloseTime)
		if from.After(end) || len(klines) < maxKlineLimit {
			break
		}
	}
	return out, nil
}

// TopSymbolsByQuoteVolume returns the n USDT-quoted symbols with the highest
// 24h quote volume.
func (c *Client) TopSymbolsByQuoteVolume(ctx context.Context, n int) ([]string, error) {
	op := "TopSymbolsByQuoteVolume"
	var stats []*futures.PriceChangeStats
	err := c.withRetry(ctx, func() error {
		var innerErr error
		stats, innerErr = c.futuresClient.NewListPriceChangeStatsService().Do(ctx)
		return innerErr
	})
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}

	type ranked struct {
		symbol string
		volume float64
	}
	var filtered []ranked
	for _, s := range stats {
		if len(s.Symbol) <= len(quoteAsset) || s.Symbol[len(s.Symbol)-len(quoteAsset):] != quoteAsset {
			continue
		}
		qv, err := strconv.ParseFloat(s.QuoteVolume, 64)
		if err != nil {
			continue
		}
		filtered = append(filtered, ranked{symbol: s.Symbol, volume: qv})
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].volume > filtered[j].volume })

	if n > len(filtered) {
		n = len(filtered)
	}
	out := make([]string, 0, n)
	for _, r := range filtered[:n] {
		out = append(out, r.symbol)
	}
	c.logger.Info(ctx, "selected top symbols by quote volume", map[string]interface{}{"count": len(out)})
	return out, nil
}

// PlaceMarketOrder opens a position at market.
func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity float64) error {
	orderSide := futures.SideTypeBuy
	if side == domain.SideShort {
		orderSide = futures.SideTypeSell
	}
	if c.dryRun {
		c.logger.Info(ctx, "DRY-RUN: would place market order", map[string]interface{}{
			"symbol": symbol, "side": string(orderSide), "quantity": quantity,
		})
		return nil
	}
	_, err := c.futuresClient.NewCreateOrderService().
		Symbol(symbol).
		Side(orderSide).
		Type(futures.OrderTypeMarket).
		Quantity(formatQuantity(quantity)).
		Do(ctx)
	return c.handleError(ctx, err, "PlaceMarketOrder")
}

// PlaceStopOrder places a stop-market order at stopPrice.
func (c *Client) PlaceStopOrder(ctx context.Context, symbol string, side domain.Side, quantity, stopPrice float64) error {
	orderSide := futures.SideTypeBuy
	if side == domain.SideShort {
		orderSide = futures.SideTypeSell
	}
	if c.dryRun {
		c.logger.Info(ctx, "DRY-RUN: would place stop order", map[string]interface{}{
			"symbol": symbol, "side": string(orderSide), "quantity": quantity, "stopPrice": stopPrice,
		})
		return nil
	}
	_, err := c.futuresClient.NewCreateOrderService().
		Symbol(symbol).
		Side(orderSide).
		Type(futures.OrderTypeStopMarket).
		Quantity(formatQuantity(quantity)).
		StopPrice(strconv.FormatFloat(stopPrice, 'f', -1, 64)).
		Do(ctx)
	return c.handleError(ctx, err, "PlaceStopOrder")
}

// ClosePosition closes an open position with a reduce-only market order.
func (c *Client) ClosePosition(ctx context.Context, symbol string, side domain.Side, quantity float64) error {
	// Closing a LONG sells, closing a SHORT buys.
	orderSide := futures.SideTypeSell
	if side == domain.SideShort {
		orderSide = futures.SideTypeBuy
	}
	if c.dryRun {
		c.logger.Info(ctx, "DRY-RUN: would close position", map[string]interface{}{
			"symbol": symbol, "side": string(side), "quantity": quantity,
		})
		return nil
	}
	_, err := c.futuresClient.NewCreateOrderService().
		Symbol(symbol).
		Side(orderSide).
		Type(futures.OrderTypeMarket).
		Quantity(formatQuantity(quantity)).
		ReduceOnly(true).
		Do(ctx)
	return c.handleError(ctx, err, "ClosePosition")
}

// AccountBalance returns the available USDT balance.
func (c *Client) AccountBalance(ctx context.Context) (float64, error) {
	op := "AccountBalance"
	account, err := c.futuresClient.NewGetAccountService().Do(ctx)
	if err != nil {
		return 0, c.handleError(ctx, err, op)
	}
	for _, asset := range account.Assets {
		if asset.Asset == quoteAsset {
			balance, err := strconv.ParseFloat(asset.AvailableBalance, 64)
			if err != nil {
				return 0, c.handleError(ctx, fmt.Errorf("parsing balance '%s': %w", asset.AvailableBalance, err), op)
			}
			return balance, nil
		}
	}
	return 0, c.handleError(ctx, fmt.Errorf("asset %s not found in account", quoteAsset), op)
}

// OpenPositions lists the positions currently held on the exchange.
func (c *Client) OpenPositions(ctx context.Context) ([]ports.OpenPosition, error) {
	op := "OpenPositions"
	risks, err := c.futuresClient.NewGetPositionRiskService().Do(ctx)
	if err != nil {
		return nil, c.handleError(ctx, err, op)
	}
	var out []ports.OpenPosition
	for _, r := range risks {
		qty, err := strconv.ParseFloat(r.PositionAmt, 64)
		if err != nil || qty == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(r.EntryPrice, 64)
		mark, _ := strconv.ParseFloat(r.MarkPrice, 64)
		leverage, _ := strconv.Atoi(r.Leverage)
		out = append(out, ports.OpenPosition{
			Symbol:     r.Symbol,
			Quantity:   qty,
			EntryPrice: entry,
			MarkPrice:  mark,
			Leverage:   leverage,
		})
	}
	return out, nil
}

// SetLeverage sets the leverage for a symbol.
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	if c.dryRun {
		c.logger.Info(ctx, "DRY-RUN: would set leverage", map[string]interface{}{
			"symbol": symbol, "leverage": leverage,
		})
		return nil
	}
	_, err := c.futuresClient.NewChangeLeverageService().
		Symbol(symbol).
		Leverage(leverage).
		Do(ctx)
	return c.handleError(ctx, err, "SetLeverage")
}

// --- candle cache ---

func (c *Client) cachePath(symbol, interval string) string {
	return filepath.Join(c.dataDir, fmt.Sprintf("%s_%s.csv", symbol, interval))
}

func (c *Client) readCache(symbol, interval string) ([]*domain.Candle, error) {
	file, err := os.Open(c.cachePath(symbol, interval))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	var out []*domain.Candle
	for i, rec := range records {
		if i == 0 || len(rec) < 7 {
			continue // header
		}
		openTime, err := time.Parse(time.RFC3339, rec[0])
		if err != nil {
			return nil, fmt.Errorf("parsing cache row %d: %w", i, err)
		}
		closeTime, err := time.Parse(time.RFC3339, rec[1])
		if err != nil {
			return nil, fmt.Errorf("parsing cache row %d: %w", i, err)
		}
		vals := make([]float64, 5)
		for j := 0; j < 5; j++ {
			vals[j], err = strconv.ParseFloat(rec[2+j], 64)
			if err != nil {
				return nil, fmt.Errorf("parsing cache row %d: %w", i, err)
			}
		}
		out = append(out, &domain.Candle{
			OpenTime:  openTime,
			CloseTime: closeTime,
			Symbol:    symbol,
			Interval:  interval,
			Open:      vals[0],
			High:      vals[1],
			Low:       vals[2],
			Close:     vals[3],
			Volume:    vals[4],
		})
	}
	return out, nil
}

func (c *Client) writeCache(symbol, interval string, candles []*domain.Candle) error {
	if err := os.MkdirAll(c.dataDir, 0o755); err != nil {
		return err
	}
	file, err := os.Create(c.cachePath(symbol, interval))
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	defer w.Flush()
	w.Write([]string{"open_time", "close_time", "open", "high", "low", "close", "volume"})
	for _, cd := range candles {
		w.Write([]string{
			cd.OpenTime.UTC().Format(time.RFC3339),
			cd.CloseTime.UTC().Format(time.RFC3339),
			strconv.FormatFloat(cd.Open, 'f', -1, 64),
			strconv.FormatFloat(cd.High, 'f', -1, 64),
			strconv.FormatFloat(cd.Low, 'f', -1, 64),
			strconv.FormatFloat(cd.Close, 'f', -1, 64),
			strconv.FormatFloat(cd.Volume, 'f', -1, 64),
		})
	}
	return w.Error()
}

// mergeCandles overlays fresh candles on cached ones, deduplicating by open
// time with the fresh copy winning, and returns the union sorted by time.
func mergeCandles(cached, fresh []*domain.Candle) []*domain.Candle {
	byTime := make(map[int64]*domain.Candle, len(cached)+len(fresh))
	for _, c := range cached {
		byTime[c.OpenTime.UnixMilli()] = c
	}
	for _, c := range fresh {
		byTime[c.OpenTime.UnixMilli()] = c
	}
	out := make([]*domain.Candle, 0, len(byTime))
	for _, c := range byTime {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })
	return out
}

func sliceRange(candles []*domain.Candle, start, end time.Time) []*domain.Candle {
	var out []*domain.Candle
	for _, c := range candles {
		if c.OpenTime.Before(start) || c.OpenTime.After(end) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func translateKline(bk *futures.Kline, symbol, interval string) (*domain.Candle, error) {
	if bk == nil {
		return nil, errors.New("received nil kline")
	}
	open, err := strconv.ParseFloat(bk.Open, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing open price '%s': %w", bk.Open, err)
	}
	high, err := strconv.ParseFloat(bk.High, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing high price '%s': %w", bk.High, err)
	}
	low, err := strconv.ParseFloat(bk.Low, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing low price '%s': %w", bk.Low, err)
	}
	cls, err := strconv.ParseFloat(bk.Close, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing close price '%s': %w", bk.Close, err)
	}
	vol, err := strconv.ParseFloat(bk.Volume, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing volume '%s': %w", bk.Volume, err)
	}
	return &domain.Candle{
		OpenTime: time.UnixMilli(bk.OpenTime),
		// Binance reports closeTime as openTime+interval-1ms. Normalize to
		// the exact interval edge so resampled buckets close on time and the
		// CSV cache round-trips at second precision without loss.
		CloseTime: time.UnixMilli(bk.CloseTime + 1),
		Symbol:    symbol,
		Interval:  interval,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     cls,
		Volume:    vol,
	}, nil
}

func formatQuantity(q float64) string {
	return strconv.FormatFloat(q, 'f', 3, 64)
}
