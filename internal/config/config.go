package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DatabaseURL string

	// Ledger gateway (token service, ownership registry, payments).
	GatewayURL            string
	GatewayRetryMax       int
	GatewayRetryBaseDelay time.Duration

	// Price feed.
	RateFeedURL      string
	RatePollInterval time.Duration

	// Sale parameters. The price is in stable-token minor units.
	FixedPriceStable int64
	StableTokenID    string
	TreasuryAccount  string
	AdminAccount     string
	ClassMetadata    string

	// Decimal scaling. The quote factor is derived from these three values;
	// a differently-scaled stable token only needs a config change.
	StableDecimals int
	NativeDecimals int
	RateDecimals   int

	HTTPPort    string
	AdminAPIKey string

	// Audit report export.
	ReportInterval        time.Duration
	SheetsSpreadsheetID   string
	SheetsCredentialsJSON string
	XLSXPath              string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		DatabaseURL:           envOrDefaultWarn("DATABASE_URL", ""),
		GatewayURL:            envOrDefault("GATEWAY_URL", "http://localhost:8090"),
		GatewayRetryMax:       envOrDefaultInt("GATEWAY_RETRY_MAX", 3),
		GatewayRetryBaseDelay: envOrDefaultDuration("GATEWAY_RETRY_BASE_DELAY", 500*time.Millisecond),
		RateFeedURL:           envOrDefault("RATE_FEED_URL", "http://localhost:8091"),
		RatePollInterval:      envOrDefaultDuration("RATE_POLL_INTERVAL", 1*time.Minute),
		FixedPriceStable:      envOrDefaultInt64("FIXED_PRICE_STABLE", 100_000_000),
		StableTokenID:         envOrDefaultWarn("STABLE_TOKEN_ID", ""),
		TreasuryAccount:       envOrDefaultWarn("TREASURY_ACCOUNT", ""),
		AdminAccount:          envOrDefaultWarn("ADMIN_ACCOUNT", ""),
		ClassMetadata:         envOrDefault("CLASS_METADATA", ""),
		StableDecimals:        envOrDefaultInt("STABLE_DECIMALS", 6),
		NativeDecimals:        envOrDefaultInt("NATIVE_DECIMALS", 8),
		RateDecimals:          envOrDefaultInt("RATE_DECIMALS", 8),
		HTTPPort:              envOrDefault("HTTP_PORT", "8080"),
		AdminAPIKey:           envOrDefault("ADMIN_API_KEY", ""),
		ReportInterval:        envOrDefaultDuration("REPORT_INTERVAL", 24*time.Hour),
		SheetsSpreadsheetID:   envOrDefault("SHEETS_SPREADSHEET_ID", ""),
		SheetsCredentialsJSON: envOrDefault("SHEETS_CREDENTIALS_JSON", ""),
		XLSXPath:              envOrDefault("XLSX_PATH", ""),
	}
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultWarn(key, defaultVal string) string {
	v := envOrDefault(key, defaultVal)
	if v == "" {
		slog.Warn("required env var not set", "key", key)
	}
	return v
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}
