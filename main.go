package main

import (
	"context"
	"fmt"
	"log" // Use standard log only for initial fatal errors before logger is set up
	"os"
	"os/signal"
	"syscall"
	"time"

	"mtfBreakoutBot/config"
	"mtfBreakoutBot/internal/adapters/binanceclient"
	"mtfBreakoutBot/internal/adapters/dashboard"
	"mtfBreakoutBot/internal/adapters/logger"
	"mtfBreakoutBot/internal/adapters/sqlite"
	"mtfBreakoutBot/internal/engine"
	"mtfBreakoutBot/internal/market"
	"mtfBreakoutBot/internal/monitor"
	"mtfBreakoutBot/internal/risk"
	"mtfBreakoutBot/internal/zones"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	// 2. Initialize Logger
	appLogger := logger.New(cfg.LogLevel)
	ctx := context.Background()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	repo, err := sqlite.NewRepository(sqlite.Config{
		DBPath: cfg.DBPath,
		Logger: appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
		log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
	}
	defer func() {
		if err := repo.Close(); err != nil {
			appLogger.Error(ctx, err, "Error closing database repository")
		}
	}()

	// 4. Initialize Exchange Client (Binance Adapter)
	client, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		DryRun:     cfg.DryRun,
		DataDir:    cfg.DataDir,
		Logger:     appLogger,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}

	// 5. Initialize Dashboard (Reporting Adapter)
	board, err := dashboard.New(fmt.Sprintf(":%d", cfg.DashboardPort), appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize dashboard")
		log.Fatalf("FATAL: Failed to initialize dashboard: %v", err)
	}
	go func() {
		if err := board.Start(); err != nil {
			appLogger.Error(ctx, err, "Dashboard server exited with error")
		}
	}()

	// 6. Resolve the symbol universe
	symbols := cfg.Universe
	if cfg.UniverseN > 0 {
		top, err := client.TopSymbolsByQuoteVolume(ctx, cfg.UniverseN)
		if err != nil {
			appLogger.Error(ctx, err, "Top-volume universe fetch failed; falling back to configured universe")
		} else {
			symbols = top
		}
	}
	appLogger.Info(ctx, "Symbol universe resolved", map[string]interface{}{"count": len(symbols)})

	// 7. Initialize Position Sizer
	sizer, err := risk.NewSizer(risk.Config{
		PctTrendAligned:     cfg.PositionSizePctTrendAligned,
		PctCounterTrend:     cfg.PositionSizePctCounterTrend,
		MinAvailableBalance: cfg.MinAvailableBalance,
	}, client, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize position sizer")
		log.Fatalf("FATAL: Failed to initialize position sizer: %v", err)
	}

	// 8. Initialize the Monitor
	barDuration, ok := market.IntervalDuration(cfg.BarInterval)
	if !ok {
		log.Fatalf("FATAL: BAR_INTERVAL %q is not a fixed-width interval", cfg.BarInterval)
	}
	mon, err := monitor.New(monitor.Config{
		Symbols:      symbols,
		Interval:     cfg.BarInterval,
		BarInterval:  barDuration,
		PollInterval: cfg.MonitorInterval,
		ScanInterval: cfg.GlobalScanInterval,
		PoolSize:     cfg.MaxMonitorPoolSize,
		MaxPositions: cfg.MaxPositions,
		Leverage:     cfg.Leverage,
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
	}, client, client, sizer, board, repo, appLogger)
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize monitor")
		log.Fatalf("FATAL: Failed to initialize monitor: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	mon.Start(runCtx)
	appLogger.Info(ctx, "Monitor started", map[string]interface{}{
		"pool_size":     cfg.MaxMonitorPoolSize,
		"max_positions": cfg.MaxPositions,
		"dry_run":       cfg.DryRun,
	})

	// 9. Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	appLogger.Info(ctx, "Shutdown signal received", map[string]interface{}{"signal": sig.String()})

	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()
	mon.Stop(shutdownCtx)
	if err := board.Shutdown(shutdownCtx); err != nil {
		appLogger.Error(ctx, err, "Dashboard shutdown error")
	}
	appLogger.Info(ctx, "Application finished gracefully.")
}
