package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"mtfBreakoutBot/config"
	"mtfBreakoutBot/internal/adapters/binanceclient"
	"mtfBreakoutBot/internal/adapters/logger"
	"mtfBreakoutBot/internal/utils"
)

func main() {
	symbol := flag.String("symbol", "ETHUSDT", "symbol to fetch")
	interval := flag.String("interval", "5m", "kline interval")
	months := flag.Int("months", 3, "how many months back to fetch")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	appLogger := logger.New(cfg.LogLevel)
	ctx := context.Background()

	client, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		DataDir:    cfg.DataDir,
		Logger:     appLogger,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	end := time.Now()
	start := end.AddDate(0, -*months, 0)

	appLogger.Info(ctx, "Fetching candles", map[string]interface{}{
		"symbol": *symbol, "interval": *interval, "start": start, "end": end,
	})
	candles, err := client.FetchCandles(ctx, *symbol, *interval, start, end)
	if err != nil {
		appLogger.Error(ctx, err, "Error fetching candles")
		log.Fatalf("Error fetching candles: %v", err)
	}
	appLogger.Info(ctx, "Fetched candles", map[string]interface{}{"count": len(candles)})

	if err := os.MkdirAll(cfg.ExportDir, 0o755); err != nil {
		log.Fatalf("Error creating export dir: %v", err)
	}
	filename := filepath.Join(cfg.ExportDir, fmt.Sprintf("%s_%s_%s_to_%s.csv",
		*symbol, *interval, start.Format("20060102"), end.Format("20060102")))
	if err := utils.WriteCandlesToCSV(candles, filename); err != nil {
		appLogger.Error(ctx, err, "Error writing CSV")
		log.Fatalf("Error writing CSV: %v", err)
	}
	appLogger.Info(ctx, "Saved candles", map[string]interface{}{"filename": filename})
}
