package domain

import "time"

// Candle represents a single OHLCV bar.
type Candle struct {
	OpenTime  time.Time // Start time of the interval (UTC)
	CloseTime time.Time // End time of the interval (UTC)
	Symbol    string    // Trading symbol
	Interval  string    // Bar interval (e.g., "5m", "1h")
	Open      float64   // Opening price
	High      float64   // Highest price
	Low       float64   // Lowest price
	Close     float64   // Closing price
	Volume    float64   // Traded volume
}

// Closes extracts the closing prices of a candle series.
func Closes(candles []*Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}
