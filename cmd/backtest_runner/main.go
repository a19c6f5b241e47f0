package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mtfBreakoutBot/config"
	"mtfBreakoutBot/internal/adapters/binanceclient"
	"mtfBreakoutBot/internal/adapters/logger"
	"mtfBreakoutBot/internal/backtest"
	"mtfBreakoutBot/internal/engine"
	"mtfBreakoutBot/internal/market"
	"mtfBreakoutBot/internal/utils"
	"mtfBreakoutBot/internal/zones"
)

func main() {
	symbolsFlag := flag.String("symbols", "", "comma separated symbols, default: configured universe")
	months := flag.Int("months", 6, "how many months back to replay")
	export := flag.Bool("export", true, "write trades CSV to the export directory")
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

	symbols := cfg.Universe
	if *symbolsFlag != "" {
		symbols = nil
		for _, s := range strings.Split(*symbolsFlag, ",") {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				symbols = append(symbols, strings.ToUpper(strings.ReplaceAll(trimmed, "/", "")))
			}
		}
	}

	barDuration, ok := market.IntervalDuration(cfg.BarInterval)
	if !ok {
		log.Fatalf("FATAL: BAR_INTERVAL %q is not a fixed-width interval", cfg.BarInterval)
	}

	end := time.Now()
	start := end.AddDate(0, -*months, 0)

	bt, err := backtest.New(backtest.Config{
		Symbols:  symbols,
		Interval: cfg.BarInterval,
		Start:    start,
		End:      end,
		Engine: engine.Config{
			BarInterval: barDuration,
			Zone: zones.Config{
				DwellBars:           cfg.DwellBars,
				TouchSeparationBars: cfg.TouchSeparationBars,
				TouchBufferFrac:     cfg.TouchBufferFrac,
				ATRTightMult:        cfg.ATRTightMult,
			},
			MinDwellBars:       cfg.MinDwellBars,
			MinTouches:         cfg.MinTouches,
			RetestWindowBars:   cfg.RetestWindowBars,
			CooldownBars:       cfg.CooldownBars,
			BreakoutBufferFrac: cfg.BreakoutBufferFrac,
		},
	}, client, appLogger)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize backtester: %v", err)
	}

	result, err := bt.Run(ctx)
	if err != nil {
		appLogger.Error(ctx, err, "Backtest run failed")
		log.Fatalf("Backtest run failed: %v", err)
	}

	s := result.Summary
	fmt.Printf("\n=== Backtest %s to %s (%d symbols) ===\n",
		start.Format("2006-01-02"), end.Format("2006-01-02"), len(symbols))
	fmt.Printf("Trades:        %d (%d wins / %d losses)\n", s.TradeCount, s.WinningTrades, s.LosingTrades)
	fmt.Printf("Win rate:      %.1f%%\n", s.WinRate*100)
	fmt.Printf("Profit factor: %.2f\n", s.ProfitFactor)
	fmt.Printf("Avg R:         %.2f\n", s.AvgR)
	fmt.Printf("Expectancy:    %.2f R\n", s.Expectancy)
	fmt.Printf("Sharpe:        %.2f\n", s.SharpeRatio)
	fmt.Printf("Max drawdown:  %.2f R\n", s.MaxDrawdownR)
	fmt.Printf("Total:         %.2f R\n", s.TotalR)
	fmt.Printf("Avg holding:   %.0f min\n", s.AvgHoldingMinutes)

	if *export && len(result.Trades) > 0 {
		if err := os.MkdirAll(cfg.ExportDir, 0o755); err != nil {
			log.Fatalf("Error creating export dir: %v", err)
		}
		filename := filepath.Join(cfg.ExportDir,
			fmt.Sprintf("backtest_trades_%s.csv", end.Format("20060102_150405")))
		if err := utils.WriteTradesToCSV(result.Trades, filename); err != nil {
			appLogger.Error(ctx, err, "Error writing trades CSV")
			log.Fatalf("Error writing trades CSV: %v", err)
		}
		appLogger.Info(ctx, "Trades exported", map[string]interface{}{"filename": filename})
	}
}
