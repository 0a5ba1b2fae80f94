package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the execution core.
type Config struct {
	Port string

	// Database
	DBPath string

	// Global kill switch for live-mode order creation. Read once at startup
	// and threaded into the risk gate; never consulted from the environment
	// at call time.
	LiveTradingKillSwitch bool

	// Paper execution defaults
	SlippagePercent float64
	FeePercent      float64

	// Backtest gate thresholds
	BacktestMinTotalReturn float64
	BacktestMaxDrawdown    float64

	// Tier entitlement table (YAML); empty uses built-in defaults.
	TiersPath string

	// Auth
	JWTSecret string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// Ignore error so the app still starts when .env is missing.
	_ = godotenv.Load()

	return &Config{
		Port:                   getEnv("PORT", "8080"),
		DBPath:                 getEnv("DB_PATH", "./data/execution.db"),
		LiveTradingKillSwitch:  getEnv("LIVE_TRADING_KILL_SWITCH", "false") == "true",
		SlippagePercent:        getEnvFloat("PAPER_SLIPPAGE_PERCENT", 0.1),
		FeePercent:             getEnvFloat("PAPER_FEE_PERCENT", 0.1),
		BacktestMinTotalReturn: getEnvFloat("BACKTEST_MIN_TOTAL_RETURN", 0),
		BacktestMaxDrawdown:    getEnvFloat("BACKTEST_MAX_DRAWDOWN", 30),
		TiersPath:              getEnv("TIERS_PATH", ""),
		JWTSecret:              getEnv("JWT_SECRET", "dev-secret"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
