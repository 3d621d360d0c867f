package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"optionDesk/internal/adapters/logger"
)

// Config holds all application configuration.
type Config struct {
	// Server
	HTTPAddr string
	GinMode  string

	// Market simulation
	InstrumentsFile  string
	Instruments      []Instrument
	DefaultSymbol    string
	PriceTick        time.Duration
	PriceHistorySize int
	RandomSeed       int64 // 0 seeds from the clock

	// Trade resolution
	StartingBalance  decimal.Decimal
	PayoutRate       decimal.Decimal // profit fraction of stake on a win, e.g. 0.86
	WinThreshold     float64         // a draw strictly above this wins
	ClosePriceOffset float64         // cosmetic close price offset from entry, e.g. 0.01
	ResolveInterval  time.Duration
	ExpiryMinutes    []int

	// Guards
	MinStake         decimal.Decimal
	MaxStake         decimal.Decimal
	MaxStakeFraction decimal.Decimal // stake may not exceed this fraction of balance
	MaxDailyLoss     decimal.Decimal // 0 disables
	TradeCooldown    time.Duration   // 0 disables

	// Sessions and chart
	SessionTTL   time.Duration
	MarkerWindow time.Duration
	MarkerLimit  int

	// Database
	DBPath string

	// Logging
	LogLevel  logger.LogLevel
	LogFormat string // "text" or "json"
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string

	// Server
	cfg.HTTPAddr = getEnv("HTTP_ADDR", ":8080")
	cfg.GinMode = getEnv("GIN_MODE", "release")

	// Market simulation
	cfg.InstrumentsFile = getEnv("INSTRUMENTS_FILE", "")
	cfg.Instruments = DefaultInstruments()
	if cfg.InstrumentsFile != "" {
		cfg.Instruments, err = LoadInstruments(cfg.InstrumentsFile)
		if err != nil {
			errs = append(errs, fmt.Sprintf("invalid INSTRUMENTS_FILE: %v", err))
		}
	}
	cfg.DefaultSymbol = getEnv("DEFAULT_SYMBOL", "BTC/USD")
	if cfg.DefaultSymbol == "" {
		errs = append(errs, "DEFAULT_SYMBOL must be set")
	} else if len(cfg.Instruments) > 0 && !hasSymbol(cfg.Instruments, cfg.DefaultSymbol) {
		errs = append(errs, fmt.Sprintf("DEFAULT_SYMBOL %q is not in the instrument catalog", cfg.DefaultSymbol))
	}

	priceTickMs := getEnvAsInt("PRICE_TICK_MS", 2000)
	if priceTickMs <= 0 {
		errs = append(errs, "PRICE_TICK_MS must be positive")
	}
	cfg.PriceTick = time.Duration(priceTickMs) * time.Millisecond

	cfg.PriceHistorySize = getEnvAsInt("PRICE_HISTORY_SIZE", 500)
	if cfg.PriceHistorySize <= 0 {
		errs = append(errs, "PRICE_HISTORY_SIZE must be positive")
	}

	seed, err := getEnvAsIntRequired("RANDOM_SEED", 0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RANDOM_SEED: %v", err))
	}
	cfg.RandomSeed = int64(seed)

	// Trade resolution
	cfg.StartingBalance, err = getEnvAsDecimalRequired("STARTING_BALANCE", "10000")
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STARTING_BALANCE: %v", err))
	} else if cfg.StartingBalance.IsNegative() {
		errs = append(errs, "STARTING_BALANCE cannot be negative")
	}

	cfg.PayoutRate, err = getEnvAsDecimalRequired("PAYOUT_RATE", "0.86")
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PAYOUT_RATE: %v", err))
	} else if !cfg.PayoutRate.IsPositive() {
		errs = append(errs, "PAYOUT_RATE must be positive")
	}

	cfg.WinThreshold, err = getEnvAsFloatRequired("WIN_THRESHOLD", 0.5)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid WIN_THRESHOLD: %v", err))
	} else if cfg.WinThreshold < 0 || cfg.WinThreshold >= 1 {
		errs = append(errs, "WIN_THRESHOLD must be in [0, 1)")
	}

	cfg.ClosePriceOffset, err = getEnvAsFloatRequired("CLOSE_PRICE_OFFSET", 0.01)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CLOSE_PRICE_OFFSET: %v", err))
	} else if cfg.ClosePriceOffset < 0 || cfg.ClosePriceOffset >= 1 {
		errs = append(errs, "CLOSE_PRICE_OFFSET must be in [0, 1)")
	}

	resolveMs := getEnvAsInt("RESOLVE_INTERVAL_MS", 1000)
	if resolveMs <= 0 {
		errs = append(errs, "RESOLVE_INTERVAL_MS must be positive")
	}
	cfg.ResolveInterval = time.Duration(resolveMs) * time.Millisecond

	cfg.ExpiryMinutes, err = getEnvAsIntList("EXPIRY_MINUTES", []int{1, 5, 15})
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid EXPIRY_MINUTES: %v", err))
	} else if len(cfg.ExpiryMinutes) == 0 {
		errs = append(errs, "EXPIRY_MINUTES must list at least one duration")
	} else {
		for _, m := range cfg.ExpiryMinutes {
			if m <= 0 {
				errs = append(errs, "EXPIRY_MINUTES entries must be positive")
				break
			}
		}
	}

	// Guards
	cfg.MinStake, err = getEnvAsDecimalRequired("MIN_STAKE", "10")
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MIN_STAKE: %v", err))
	} else if !cfg.MinStake.IsPositive() {
		errs = append(errs, "MIN_STAKE must be positive")
	}

	cfg.MaxStake, err = getEnvAsDecimalRequired("MAX_STAKE", "5000")
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_STAKE: %v", err))
	} else if cfg.MaxStake.LessThan(cfg.MinStake) {
		errs = append(errs, "MAX_STAKE must be greater than or equal to MIN_STAKE")
	}

	cfg.MaxStakeFraction, err = getEnvAsDecimalRequired("MAX_STAKE_FRACTION", "0.5")
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_STAKE_FRACTION: %v", err))
	} else if !cfg.MaxStakeFraction.IsPositive() || cfg.MaxStakeFraction.GreaterThan(decimal.NewFromInt(1)) {
		errs = append(errs, "MAX_STAKE_FRACTION must be in (0, 1]")
	}

	cfg.MaxDailyLoss, err = getEnvAsDecimalRequired("MAX_DAILY_LOSS", "2500")
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_DAILY_LOSS: %v", err))
	} else if cfg.MaxDailyLoss.IsNegative() {
		errs = append(errs, "MAX_DAILY_LOSS cannot be negative")
	}

	cooldownSeconds := getEnvAsInt("TRADE_COOLDOWN_SECONDS", 2)
	if cooldownSeconds < 0 {
		errs = append(errs, "TRADE_COOLDOWN_SECONDS cannot be negative")
	}
	cfg.TradeCooldown = time.Duration(cooldownSeconds) * time.Second

	// Sessions and chart
	sessionHours := getEnvAsInt("SESSION_TTL_HOURS", 24)
	if sessionHours <= 0 {
		errs = append(errs, "SESSION_TTL_HOURS must be positive")
	}
	cfg.SessionTTL = time.Duration(sessionHours) * time.Hour

	markerHours := getEnvAsInt("MARKER_WINDOW_HOURS", 24)
	if markerHours <= 0 {
		errs = append(errs, "MARKER_WINDOW_HOURS must be positive")
	}
	cfg.MarkerWindow = time.Duration(markerHours) * time.Hour

	cfg.MarkerLimit = getEnvAsInt("MARKER_LIMIT", 10)
	if cfg.MarkerLimit <= 0 {
		errs = append(errs, "MARKER_LIMIT must be positive")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/optiondesk.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	cfg.LogLevel = logger.ParseLevel(getEnv("LOG_LEVEL", "INFO"))
	cfg.LogFormat = strings.ToLower(getEnv("LOG_FORMAT", logger.FormatText))
	if cfg.LogFormat != logger.FormatText && cfg.LogFormat != logger.FormatJSON {
		errs = append(errs, "LOG_FORMAT must be 'text' or 'json'")
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// IsAllowedExpiry reports whether minutes is one of the configured expiry durations.
func (c *Config) IsAllowedExpiry(minutes int) bool {
	for _, m := range c.ExpiryMinutes {
		if m == minutes {
			return true
		}
	}
	return false
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

func getEnvAsDecimalRequired(key string, defaultValue string) (decimal.Decimal, error) {
	valueStr := getEnv(key, defaultValue)
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsIntList(key string, defaultValue []int) ([]int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	parts := strings.Split(valueStr, ",")
	values := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("invalid integer '%s' in %s: %w", p, key, err)
		}
		values = append(values, v)
	}
	return values, nil
}
