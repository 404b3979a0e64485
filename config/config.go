package config

import (
	"log"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Broker credentials
	BrokerAPIKey     string
	BrokerClientCode string
	BrokerPassword   string
	BrokerTOTPSecret string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	JournalPath   string
	MetricsAddr   string

	// Notifications (optional)
	TelegramBotToken string
	TelegramChatID   string
	WebhookURL       string

	// Symbols
	IndexSymbol string // regime index
	BullSymbol  string // traded when the index is bullish
	BearSymbol  string // traded when the index is bearish

	// Signal
	VWMAFast  int
	VWMASlow  int
	ADXPeriod int
	MinADX    float64

	// Trading
	Mode              string // "spread" or "single"
	MinDTE            int
	MaxDTE            int
	WidthCents        int64
	MaxConcurrent     int
	TotalAllocation   float64 // of equity across all positions
	ProfitFraction    float64
	SingleTargetCents int64
	RollDTE           int
	StopMultiplier    float64
	EntryIntervalSecs int

	// Risk guards
	MaxDailyLossCents int64
	MaxDrawdownPct    float64
}

// Load reads configuration from environment variables with sensible defaults.
// Broker credentials are validated by the live binary, not here, so the
// paper binary can run without them.
func Load() *Config {
	return &Config{
		BrokerAPIKey:     getEnv("BROKER_API_KEY", ""),
		BrokerClientCode: getEnv("BROKER_CLIENT_CODE", ""),
		BrokerPassword:   getEnv("BROKER_PASSWORD", ""),
		BrokerTOTPSecret: getEnv("BROKER_TOTP_SECRET", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		JournalPath:   getEnv("JOURNAL_PATH", "data/spreads.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		IndexSymbol: getEnv("INDEX_SYMBOL", "SOXX"),
		BullSymbol:  getEnv("BULL_SYMBOL", "SOXL"),
		BearSymbol:  getEnv("BEAR_SYMBOL", "SOXS"),

		VWMAFast:  getEnvInt("VWMA_FAST", 8),
		VWMASlow:  getEnvInt("VWMA_SLOW", 21),
		ADXPeriod: getEnvInt("ADX_PERIOD", 14),
		MinADX:    getEnvFloat("MIN_ADX", 20),

		Mode:              getEnv("ENTRY_MODE", "spread"),
		MinDTE:            getEnvInt("MIN_DTE", 7),
		MaxDTE:            getEnvInt("MAX_DTE", 14),
		WidthCents:        int64(getEnvInt("SPREAD_WIDTH_CENTS", 200)),
		MaxConcurrent:     getEnvInt("MAX_CONCURRENT", 10),
		TotalAllocation:   getEnvFloat("TOTAL_ALLOCATION", 1.0),
		ProfitFraction:    getEnvFloat("PROFIT_FRACTION", 0.95),
		SingleTargetCents: int64(getEnvInt("SINGLE_TARGET_CENTS", 10)),
		RollDTE:           getEnvInt("ROLL_DTE", 3),
		StopMultiplier:    getEnvFloat("STOP_MULTIPLIER", 1.5),
		EntryIntervalSecs: getEnvInt("ENTRY_INTERVAL_SECS", 3600),

		MaxDailyLossCents: int64(getEnvInt("MAX_DAILY_LOSS_CENTS", 200_000)),
		MaxDrawdownPct:    getEnvFloat("MAX_DRAWDOWN_PCT", 10),
	}
}

// TelegramEnabled reports whether Telegram alerting is configured.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != ""
}

// AllocPerPosition splits the total allocation evenly across capacity.
func (c *Config) AllocPerPosition() float64 {
	if c.MaxConcurrent < 1 {
		return 0
	}
	return c.TotalAllocation / float64(c.MaxConcurrent)
}

// EntryInterval returns the throttle as a duration.
func (c *Config) EntryInterval() time.Duration {
	return time.Duration(c.EntryIntervalSecs) * time.Second
}

// MustBrokerCreds aborts unless all broker credentials are present.
func (c *Config) MustBrokerCreds() {
	for k, v := range map[string]string{
		"BROKER_API_KEY":     c.BrokerAPIKey,
		"BROKER_CLIENT_CODE": c.BrokerClientCode,
		"BROKER_PASSWORD":    c.BrokerPassword,
		"BROKER_TOTP_SECRET": c.BrokerTOTPSecret,
	} {
		if v == "" {
			log.Fatalf("[config] required env var %s not set", k)
		}
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %f", key, v, fallback)
		return fallback
	}
	return f
}
