package risk

import (
	"context"
	"errors"
	"testing"

	"mtfBreakoutBot/internal/domain"
	"mtfBreakoutBot/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopLogger struct{}

func (noopLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (noopLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (noopLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// stubExec only answers balance queries.
type stubExec struct {
	balance float64
	err     error
}

func (s *stubExec) PlaceMarketOrder(ctx context.Context, symbol string, side domain.Side, quantity float64) error {
	return nil
}
func (s *stubExec) PlaceStopOrder(ctx context.Context, symbol string, side domain.Side, quantity, stopPrice float64) error {
	return nil
}
func (s *stubExec) ClosePosition(ctx context.Context, symbol string, side domain.Side, quantity float64) error {
	return nil
}
func (s *stubExec) AccountBalance(ctx context.Context) (float64, error) { return s.balance, s.err }
func (s *stubExec) OpenPositions(ctx context.Context) ([]ports.OpenPosition, error) {
	return nil, nil
}
func (s *stubExec) SetLeverage(ctx context.Context, symbol string, leverage int) error { return nil }

func testSizerConfig() Config {
	return Config{
		PctTrendAligned:     5,
		PctCounterTrend:     3,
		MinAvailableBalance: 100,
	}
}

func TestSizer_PositionSize(t *testing.T) {
	sizer, err := NewSizer(testSizerConfig(), &stubExec{balance: 1000}, noopLogger{})
	require.NoError(t, err)
	ctx := context.Background()

	// Trend-aligned: 5% of 1000 over a 0.5 risk distance
	qty, err := sizer.PositionSize(ctx, "ETHUSDT", 100.5, 100.0, true)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, qty, 1e-9)

	// Counter-trend gets the smaller allocation
	qty, err = sizer.PositionSize(ctx, "ETHUSDT", 100.5, 100.0, false)
	require.NoError(t, err)
	assert.InDelta(t, 60.0, qty, 1e-9)

	// Short entries have the stop above the entry
	qty, err = sizer.PositionSize(ctx, "ETHUSDT", 100.0, 100.5, true)
	require.NoError(t, err)
	assert.InDelta(t, 100.0, qty, 1e-9)
}

func TestSizer_Rejections(t *testing.T) {
	ctx := context.Background()

	sizer, err := NewSizer(testSizerConfig(), &stubExec{balance: 1000}, noopLogger{})
	require.NoError(t, err)

	_, err = sizer.PositionSize(ctx, "ETHUSDT", 100, 100, true)
	assert.Error(t, err, "zero risk distance")

	low, err := NewSizer(testSizerConfig(), &stubExec{balance: 50}, noopLogger{})
	require.NoError(t, err)
	_, err = low.PositionSize(ctx, "ETHUSDT", 100.5, 100, true)
	assert.Error(t, err, "balance below minimum")

	failing, err := NewSizer(testSizerConfig(), &stubExec{err: errors.New("api down")}, noopLogger{})
	require.NoError(t, err)
	_, err = failing.PositionSize(ctx, "ETHUSDT", 100.5, 100, true)
	assert.Error(t, err)
}

func TestNewSizer_Validation(t *testing.T) {
	_, err := NewSizer(testSizerConfig(), nil, noopLogger{})
	assert.Error(t, err)

	cfg := testSizerConfig()
	cfg.PctTrendAligned = 0
	_, err = NewSizer(cfg, &stubExec{}, noopLogger{})
	assert.Error(t, err)
}
