package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port             string
	AuthEnabled      bool
	JWTSecret        string
	JWTClientExpiry  time.Duration
	PrintClientToken bool

	// Mail source
	MailSource         string // "gmail" or "imap"
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRefreshToken string
	IMAPAddr           string
	IMAPUsername       string
	IMAPPassword       string
	IMAPMailbox        string
	DueKeywords        []string
	SuccessKeywords    []string
	ScanWindow         time.Duration

	// Gmail push notifications
	GoogleProjectID   string
	GooglePubSubTopic string
	GoogleCredentials string

	// Notifications
	FirebaseCredentials string
	FCMDeviceTokens     []string
	ReminderWindow      time.Duration

	// Completion engine
	AIProvider          string
	OllamaBaseURL       string
	OllamaModel         string
	GeminiApiKey        string
	GeminiModel         string
	OpenAIAPIKey        string
	OpenAIBaseURL       string
	OpenAIModel         string
	EngineReadyAttempts int
	EngineReadyInterval time.Duration
	ParserCutMarkers    []string

	// Storage
	DBDriver    string
	DatabaseURL string
	SQLitePath  string

	// Scheduler
	Timezone            string
	DueScanSchedule     string
	SweepSchedule       string
	SuccessScanSchedule string
	KeepAliveSchedule   string
}

// Load reads configuration from the environment (and .env when present)
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Port:             getEnv("PORT", "8080"),
		AuthEnabled:      getBool("AUTH_ENABLED", true),
		JWTSecret:        getEnv("JWT_SECRET", "your-secret-key-change-in-production"),
		JWTClientExpiry:  getDuration("JWT_CLIENT_EXPIRY", 720*time.Hour),
		PrintClientToken: getBool("PRINT_CLIENT_TOKEN", false),

		MailSource:         getEnv("MAIL_SOURCE", "gmail"),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRefreshToken: getEnv("GOOGLE_REFRESH_TOKEN", ""),
		IMAPAddr:           getEnv("IMAP_ADDR", "imap.gmail.com:993"),
		IMAPUsername:       getEnv("IMAP_USERNAME", ""),
		IMAPPassword:       getEnv("IMAP_PASSWORD", ""),
		IMAPMailbox:        getEnv("IMAP_MAILBOX", "INBOX"),
		DueKeywords:        getList("DUE_KEYWORDS", "credit card statement,card statement,statement summary"),
		SuccessKeywords:    getList("SUCCESS_KEYWORDS", "payment received,payment successful,thank you for your payment"),
		ScanWindow:         getDuration("SCAN_WINDOW", 0),

		GoogleProjectID:   getEnv("GOOGLE_PROJECT_ID", ""),
		GooglePubSubTopic: getEnv("GOOGLE_PUBSUB_TOPIC", ""),
		GoogleCredentials: getEnv("GOOGLE_APPLICATION_CREDENTIALS", ""),

		FirebaseCredentials: getEnv("FIREBASE_CREDENTIALS", ""),
		FCMDeviceTokens:     getList("FCM_DEVICE_TOKENS", ""),
		ReminderWindow:      getDuration("REMINDER_WINDOW", 72*time.Hour),

		AIProvider:          getEnv("AI_PROVIDER", "auto"),
		OllamaBaseURL:       getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:         getEnv("OLLAMA_MODEL", "llama3"),
		GeminiApiKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:       getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", ""),
		EngineReadyAttempts: getInt("ENGINE_READY_ATTEMPTS", 10),
		EngineReadyInterval: getDuration("ENGINE_READY_INTERVAL", time.Second),
		ParserCutMarkers:    getList("PARSER_CUT_MARKERS", "This JSON format is provided for you"),

		DBDriver:    getEnv("DB_DRIVER", "postgres"),
		DatabaseURL: getEnv("DATABASE_URL", "host=localhost user=postgres password=postgres dbname=billwatch port=5432 sslmode=disable"),
		SQLitePath:  getEnv("SQLITE_PATH", "billwatch.db"),

		Timezone:            getEnv("TIMEZONE", "Local"),
		DueScanSchedule:     getEnv("DUE_SCAN_SCHEDULE", "@every 5m"),
		SweepSchedule:       getEnv("SWEEP_SCHEDULE", "@every 12h"),
		SuccessScanSchedule: getEnv("SUCCESS_SCAN_SCHEDULE", "@every 10m"),
		KeepAliveSchedule:   getEnv("KEEP_ALIVE_SCHEDULE", "@every 1m"),
	}

	if cfg.MailSource != "gmail" && cfg.MailSource != "imap" {
		return nil, fmt.Errorf("MAIL_SOURCE must be gmail or imap, got %q", cfg.MailSource)
	}
	if len(cfg.DueKeywords) == 0 {
		return nil, fmt.Errorf("DUE_KEYWORDS must contain at least one phrase")
	}
	if len(cfg.SuccessKeywords) == 0 {
		return nil, fmt.Errorf("SUCCESS_KEYWORDS must contain at least one phrase")
	}
	if cfg.EngineReadyAttempts <= 0 {
		return nil, fmt.Errorf("ENGINE_READY_ATTEMPTS must be positive")
	}
	if cfg.EngineReadyInterval < 0 {
		return nil, fmt.Errorf("ENGINE_READY_INTERVAL cannot be negative")
	}
	if cfg.ScanWindow < 0 {
		return nil, fmt.Errorf("SCAN_WINDOW cannot be negative")
	}
	if cfg.ReminderWindow < 0 {
		return nil, fmt.Errorf("REMINDER_WINDOW cannot be negative")
	}
	if cfg.AuthEnabled && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required when AUTH_ENABLED is true")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getList(key, defaultValue string) []string {
	raw := getEnv(key, defaultValue)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
