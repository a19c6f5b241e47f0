package zones

import (
	"mtfBreakoutBot/internal/domain"
	"mtfBreakoutBot/internal/market"
)

const (
	minSeriesLen = 50
	atrPeriod    = 14
)

// Config holds the zone detection parameters.
type Config struct {
	DwellBars           int     // Trailing window length, in bars
	TouchSeparationBars int     // Debounce separation between counted touches of a side
	TouchBufferFrac     float64 // Touch buffer as a fraction of ATR
	ATRTightMult        float64 // Max band width as a multiple of ATR
}

// DefaultConfig mirrors the production strategy defaults.
func DefaultConfig() Config {
	return Config{
		DwellBars:           18,
		TouchSeparationBars: 3,
		TouchBufferFrac:     0.15,
		ATRTightMult:        0.55,
	}
}

// Detect recomputes the consolidation zone over the trailing DwellBars window
// of the series. Returns nil when no valid zone exists: fewer than 50 bars,
// ATR still in warm-up, or a band wider than ATRTightMult x ATR.
//
// Touch counting: per-side counts use independent debounce clocks, while
// TotalTouches debounces across both sides jointly (a counted touch of either
// boundary restarts the shared clock and increments the total once). The
// detector applies no touch-count thresholds; callers do.
func Detect(candles []*domain.Candle, cfg Config) *domain.Zone {
	if len(candles) < minSeriesLen || cfg.DwellBars <= 0 || len(candles) < cfg.DwellBars {
		return nil
	}

	// ATR over the full series, not just the window.
	atr, ok := market.Last(market.ATR(candles, atrPeriod))
	if !ok {
		return nil
	}

	window := candles[len(candles)-cfg.DwellBars:]
	lowClose := window[0].Close
	highClose := window[0].Close
	for _, c := range window[1:] {
		if c.Close < lowClose {
			lowClose = c.Close
		}
		if c.Close > highClose {
			highClose = c.Close
		}
	}
	width := highClose - lowClose
	if width > cfg.ATRTightMult*atr {
		return nil
	}

	buf := cfg.TouchBufferFrac * atr
	touchesTop, touchesBottom, totalTouches := 0, 0, 0
	lastTop, lastBottom, lastAny := -1<<30, -1<<30, -1<<30

	for i, c := range window {
		top := c.High >= highClose-buf
		bottom := c.Low <= lowClose+buf
		if top && i-lastTop >= cfg.TouchSeparationBars {
			touchesTop++
			lastTop = i
		}
		if bottom && i-lastBottom >= cfg.TouchSeparationBars {
			touchesBottom++
			lastBottom = i
		}
		if (top || bottom) && i-lastAny >= cfg.TouchSeparationBars {
			totalTouches++
			lastAny = i
		}
	}

	return &domain.Zone{
		StartIdx:      len(candles) - cfg.DwellBars,
		EndIdx:        len(candles) - 1,
		LowClose:      lowClose,
		HighClose:     highClose,
		Width:         width,
		TouchesTop:    touchesTop,
		TouchesBottom: touchesBottom,
		TotalTouches:  totalTouches,
		ATR:           atr,
		DwellBars:     cfg.DwellBars,
	}
}
