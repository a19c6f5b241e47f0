package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"mtfBreakoutBot/internal/adapters/logger"
)

// defaultUniverse is the symbol set scanned when UNIVERSE is not configured.
var defaultUniverse = []string{
	"BTC/USDT", "ETH/USDT", "BNB/USDT", "SOL/USDT", "XRP/USDT",
	"ADA/USDT", "DOGE/USDT", "AVAX/USDT", "DOT/USDT", "LINK/USDT",
	"MATIC/USDT", "LTC/USDT", "ATOM/USDT", "UNI/USDT", "NEAR/USDT",
	"APT/USDT", "ARB/USDT", "OP/USDT", "FIL/USDT", "INJ/USDT",
}

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool
	DryRun    bool

	// Universe
	Universe  []string // Normalized symbols, e.g. "BTCUSDT"
	UniverseN int      // When > 0, pick top-N by quote volume instead of Universe

	// Zone detection
	DwellBars           int
	TouchSeparationBars int
	TouchBufferFrac     float64
	ATRTightMult        float64

	// Breakout / retest engine
	BreakoutBufferFrac float64
	RetestWindowBars   int
	CooldownBars       int
	MinTouches         int
	MinDwellBars       int

	// Live monitor
	BarInterval        string
	MonitorInterval    time.Duration
	GlobalScanInterval time.Duration
	MaxMonitorPoolSize int
	MaxPositions       int

	// Risk
	Leverage                    int
	PositionSizePctTrendAligned float64
	PositionSizePctCounterTrend float64
	MinAvailableBalance         float64

	// Paths
	DBPath    string
	DataDir   string
	ExportDir string

	// Dashboard
	DashboardPort int

	// Logging
	LogLevel zerolog.Level
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety
	cfg.DryRun = getEnvAsBool("DRY_RUN", true)

	if !cfg.DryRun {
		if cfg.APIKey == "" {
			errs = append(errs, "BINANCE_API_KEY must be set when DRY_RUN=false")
		}
		if cfg.SecretKey == "" {
			errs = append(errs, "BINANCE_API_SECRET must be set when DRY_RUN=false")
		}
	}

	// Universe
	cfg.Universe = normalizeSymbols(getEnvAsSlice("UNIVERSE", defaultUniverse))
	if len(cfg.Universe) == 0 {
		errs = append(errs, "UNIVERSE must contain at least one symbol")
	}
	cfg.UniverseN = getEnvAsInt("UNIVERSE_N", 0)
	if cfg.UniverseN < 0 {
		errs = append(errs, "UNIVERSE_N cannot be negative")
	}

	// Zone detection
	cfg.DwellBars, err = getEnvAsIntRequired("DWELL_BARS", 18)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid DWELL_BARS: %v", err))
	} else if cfg.DwellBars < 2 {
		errs = append(errs, "DWELL_BARS must be at least 2")
	}

	cfg.TouchSeparationBars, err = getEnvAsIntRequired("TOUCH_SEPARATION_BARS", 3)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TOUCH_SEPARATION_BARS: %v", err))
	} else if cfg.TouchSeparationBars < 1 {
		errs = append(errs, "TOUCH_SEPARATION_BARS must be positive")
	}

	cfg.TouchBufferFrac, err = getEnvAsFloatRequired("TOUCH_BUFFER_FRAC", 0.15)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TOUCH_BUFFER_FRAC: %v", err))
	} else if cfg.TouchBufferFrac < 0 {
		errs = append(errs, "TOUCH_BUFFER_FRAC cannot be negative")
	}

	cfg.ATRTightMult, err = getEnvAsFloatRequired("ATR_TIGHT_MULT", 0.55)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid ATR_TIGHT_MULT: %v", err))
	} else if cfg.ATRTightMult <= 0 {
		errs = append(errs, "ATR_TIGHT_MULT must be positive")
	}

	// Breakout / retest engine
	cfg.BreakoutBufferFrac, err = getEnvAsFloatRequired("BREAKOUT_BUFFER_FRAC", 0.15)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid BREAKOUT_BUFFER_FRAC: %v", err))
	} else if cfg.BreakoutBufferFrac < 0 {
		errs = append(errs, "BREAKOUT_BUFFER_FRAC cannot be negative")
	}

	cfg.RetestWindowBars, err = getEnvAsIntRequired("RETEST_WINDOW_BARS", 8)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RETEST_WINDOW_BARS: %v", err))
	} else if cfg.RetestWindowBars < 1 {
		errs = append(errs, "RETEST_WINDOW_BARS must be positive")
	}

	cfg.CooldownBars, err = getEnvAsIntRequired("COOLDOWN_BARS", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid COOLDOWN_BARS: %v", err))
	} else if cfg.CooldownBars < 0 {
		errs = append(errs, "COOLDOWN_BARS cannot be negative")
	}

	cfg.MinTouches = getEnvAsInt("MIN_TOUCHES", 3)
	if cfg.MinTouches < 1 {
		errs = append(errs, "MIN_TOUCHES must be positive")
	}
	cfg.MinDwellBars = getEnvAsInt("MIN_DWELL_BARS", cfg.DwellBars)
	if cfg.MinDwellBars < 0 {
		errs = append(errs, "MIN_DWELL_BARS cannot be negative")
	}

	// Live monitor
	cfg.BarInterval = getEnv("BAR_INTERVAL", "5m")
	if cfg.BarInterval == "" {
		errs = append(errs, "BAR_INTERVAL must be set")
	}

	monitorSeconds := getEnvAsInt("MONITOR_INTERVAL_SECONDS", 15)
	if monitorSeconds <= 0 {
		errs = append(errs, "MONITOR_INTERVAL_SECONDS must be positive")
	}
	cfg.MonitorInterval = time.Duration(monitorSeconds) * time.Second

	scanSeconds := getEnvAsInt("GLOBAL_SCAN_INTERVAL_SECONDS", 30)
	if scanSeconds <= 0 {
		errs = append(errs, "GLOBAL_SCAN_INTERVAL_SECONDS must be positive")
	}
	cfg.GlobalScanInterval = time.Duration(scanSeconds) * time.Second

	cfg.MaxMonitorPoolSize = getEnvAsInt("MAX_MONITOR_POOL_SIZE", 8)
	if cfg.MaxMonitorPoolSize <= 0 {
		errs = append(errs, "MAX_MONITOR_POOL_SIZE must be positive")
	}
	cfg.MaxPositions = getEnvAsInt("MAX_POSITIONS", 3)
	if cfg.MaxPositions <= 0 {
		errs = append(errs, "MAX_POSITIONS must be positive")
	}

	// Risk
	cfg.Leverage, err = getEnvAsIntRequired("LEVERAGE", 10)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LEVERAGE: %v", err))
	} else if cfg.Leverage <= 0 {
		errs = append(errs, "LEVERAGE must be positive")
	}

	cfg.PositionSizePctTrendAligned, err = getEnvAsFloatRequired("POSITION_SIZE_PCT_TREND_ALIGNED", 5.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid POSITION_SIZE_PCT_TREND_ALIGNED: %v", err))
	} else if cfg.PositionSizePctTrendAligned <= 0 || cfg.PositionSizePctTrendAligned > 100 {
		errs = append(errs, "POSITION_SIZE_PCT_TREND_ALIGNED must be between 0 and 100")
	}

	cfg.PositionSizePctCounterTrend, err = getEnvAsFloatRequired("POSITION_SIZE_PCT_COUNTER_TREND", 3.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid POSITION_SIZE_PCT_COUNTER_TREND: %v", err))
	} else if cfg.PositionSizePctCounterTrend <= 0 || cfg.PositionSizePctCounterTrend > 100 {
		errs = append(errs, "POSITION_SIZE_PCT_COUNTER_TREND must be between 0 and 100")
	}

	cfg.MinAvailableBalance, err = getEnvAsFloatRequired("MIN_AVAILABLE_BALANCE", 100.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_AVAILABLE_BALANCE: %v", err))
	} else if cfg.MinAvailableBalance < 0 {
		errs = append(errs, "MIN_AVAILABLE_BALANCE cannot be negative")
	}

	// Paths
	cfg.DBPath = getEnv("DB_PATH", "./data/mtf_breakout.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}
	cfg.DataDir = getEnv("DATA_DIR", "./data/candles")
	cfg.ExportDir = getEnv("EXPORT_DIR", "./exports")

	// Dashboard
	cfg.DashboardPort = getEnvAsInt("DASHBOARD_PORT", 8080)
	if cfg.DashboardPort <= 0 || cfg.DashboardPort > 65535 {
		errs = append(errs, "DASHBOARD_PORT must be a valid port number")
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// normalizeSymbols converts "BTC/USDT" style pairs into exchange symbols
// like "BTCUSDT" and deduplicates while preserving order.
func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]bool, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "/", ""))
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		out = append(out, normalized)
	}
	return out
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
