package utils

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"mtfBreakoutBot/internal/domain"
)

func WriteCandlesToCSV(candles []*domain.Candle, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	writer.Write([]string{"open_time", "close_time", "symbol", "interval", "open", "high", "low", "close", "volume"})

	for _, c := range candles {
		writer.Write([]string{
			c.OpenTime.Format(time.RFC3339),
			c.CloseTime.Format(time.RFC3339),
			c.Symbol,
			c.Interval,
			strconv.FormatFloat(c.Open, 'f', -1, 64),
			strconv.FormatFloat(c.High, 'f', -1, 64),
			strconv.FormatFloat(c.Low, 'f', -1, 64),
			strconv.FormatFloat(c.Close, 'f', -1, 64),
			strconv.FormatFloat(c.Volume, 'f', -1, 64),
		})
	}
	return writer.Error()
}

func WriteTradesToCSV(trades []*domain.Trade, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	writer.Write([]string{"symbol", "side", "entry_time", "entry_price", "stop_price", "quantity",
		"trend_aligned", "exit_time", "exit_price", "exit_reason", "r_multiple", "mfe", "mae"})

	for _, t := range trades {
		exitTime := ""
		if !t.ExitTime.IsZero() {
			exitTime = t.ExitTime.Format(time.RFC3339)
		}
		writer.Write([]string{
			t.Symbol,
			string(t.Side),
			t.EntryTime.Format(time.RFC3339),
			strconv.FormatFloat(t.EntryPrice, 'f', -1, 64),
			strconv.FormatFloat(t.StopPrice, 'f', -1, 64),
			strconv.FormatFloat(t.Quantity, 'f', -1, 64),
			strconv.FormatBool(t.TrendAligned),
			exitTime,
			strconv.FormatFloat(t.ExitPrice, 'f', -1, 64),
			string(t.ExitReason),
			strconv.FormatFloat(t.RMultiple(), 'f', 4, 64),
			strconv.FormatFloat(t.MFE, 'f', 4, 64),
			strconv.FormatFloat(t.MAE, 'f', 4, 64),
		})
	}
	return writer.Error()
}
