package config

import (
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Broker backends.
const (
	BrokerStockflow = "stockflow"
	BrokerAlpaca    = "alpaca"
)

// Config holds the runtime settings. Values come from the process environment,
// optionally seeded from a .env file.
type Config struct {
	Version string

	Broker       string
	APIBaseURL   string
	APIRateLimit int
	APITimeout   time.Duration

	OrderTimeout       time.Duration
	PollInterval       time.Duration
	ConfirmationTTLSec int

	StateFile   string
	CatalogFile string
	Watchlist   []string

	LogLevel      string
	LogFile       string
	MaxLogSizeMB  int64
	MaxLogBackups int

	TelegramBotToken string
	TelegramChatID   int64

	GeminiAPIKey    string
	GeminiModel     string
	AnalyzeCooldown time.Duration

	StreamEnabled bool
}

// secretVars are masked when the .env file is echoed.
var secretVars = map[string]bool{
	"APCA_API_KEY_ID":     true,
	"APCA_API_SECRET_KEY": true,
	"TELEGRAM_BOT_TOKEN":  true,
	"GEMINI_API_KEY":      true,
	"STOCKFLOW_PASSWORD":  true,
}

// Load initializes the configuration.
// It tries to read a .env file and checks for the variables the selected broker needs.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: No .env file found, using system environment variables")
	}

	cfg := &Config{
		Broker:       strings.ToLower(getEnv("STOCKFLOW_BROKER", BrokerStockflow)),
		APIBaseURL:   strings.TrimRight(os.Getenv("STOCKFLOW_API_BASE_URL"), "/"),
		APIRateLimit: getEnvAsInt("STOCKFLOW_API_RATE_LIMIT", 5),
		APITimeout:   getEnvAsSeconds("STOCKFLOW_API_TIMEOUT_SEC", 30),

		OrderTimeout:       getEnvAsSeconds("ORDER_TIMEOUT_SEC", 15),
		PollInterval:       getEnvAsSeconds("POLL_INTERVAL_SEC", 300),
		ConfirmationTTLSec: getEnvAsInt("CONFIRMATION_TTL_SEC", 120),

		StateFile:   getEnv("STATE_FILE", "stockflow_state.json"),
		CatalogFile: os.Getenv("CATALOG_FILE"),
		Watchlist:   getEnvAsList("WATCHLIST"),

		LogLevel:      strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFile:       getEnv("LOG_FILE", "stockflow.log"),
		MaxLogSizeMB:  int64(getEnvAsInt("MAX_LOG_SIZE_MB", 10)),
		MaxLogBackups: getEnvAsInt("MAX_LOG_BACKUPS", 3),

		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramChatID:   int64(getEnvAsInt("TELEGRAM_CHAT_ID", 0)),

		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		AnalyzeCooldown: getEnvAsSeconds("ANALYZE_COOLDOWN_SEC", 600),

		StreamEnabled: getEnvAsBool("STREAM_ENABLED", false),
	}

	if missing := cfg.missingRequired(); len(missing) > 0 {
		log.Fatalf("CRITICAL: Missing required environment variables: %v", missing)
	}

	echoDotEnv()
	return cfg
}

// missingRequired lists the variables the selected broker cannot run without.
func (c *Config) missingRequired() []string {
	var required []string
	switch c.Broker {
	case BrokerAlpaca:
		required = []string{"APCA_API_KEY_ID", "APCA_API_SECRET_KEY", "APCA_API_BASE_URL"}
	default:
		required = []string{"STOCKFLOW_API_BASE_URL"}
	}

	var missing []string
	for _, key := range required {
		if os.Getenv(key) == "" {
			missing = append(missing, key)
		}
	}
	return missing
}

// TelegramEnabled reports whether both bot credentials are set.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramBotToken != "" && c.TelegramChatID != 0
}

// echoDotEnv prints variables defined in the .env file, secrets masked.
func echoDotEnv() {
	envMap, err := godotenv.Read()
	if err != nil {
		return
	}

	keys := make([]string, 0, len(envMap))
	for key := range envMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	log.Println("--- .env File Variables ---")
	for _, key := range keys {
		log.Printf("%s=%s", key, maskValue(key, envMap[key]))
	}
	log.Println("---------------------------")
}

// maskValue shows only the last 4 chars of secret values.
func maskValue(key, val string) string {
	if !secretVars[key] {
		return val
	}
	if len(val) > 4 {
		return "***" + val[len(val)-4:]
	}
	return "***"
}
