package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr      string
	DBPath          string
	DocsPath        string
	LogLevel        string
	LogFile         string
	SessionSecret   string
	SessionTTL      time.Duration
	CookieSecure    bool
	PublicBaseURL   string
	PublicRateLimit float64
	PublicRateBurst int
	// Location is the property's time zone. Booking code expiry times
	// are entered and shown in it.
	Location *time.Location
}

// Load reads configuration from the environment. Values in a .env file in
// the working directory are applied first without overriding real variables.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("failed to load .env file", "error", err)
	}

	return &Config{
		ListenAddr:      getEnv("LISTEN_ADDR", ":8080"),
		DBPath:          getEnv("DB_PATH", "/data/staydesk.db"),
		DocsPath:        getEnv("DOCS_PATH", "/data/documents"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFile:         getEnv("LOG_FILE", ""),
		SessionSecret:   getEnv("SESSION_SECRET", ""),
		SessionTTL:      getDuration("SESSION_TTL", 12*time.Hour),
		CookieSecure:    getEnv("COOKIE_SECURE", "true") != "false",
		PublicBaseURL:   getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
		PublicRateLimit: getFloat("PUBLIC_RATE_LIMIT", 2),
		PublicRateBurst: getInt("PUBLIC_RATE_BURST", 10),
		Location:        getLocation("PROPERTY_TZ"),
	}
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}

func getDuration(key string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

func getFloat(key string, defaultVal float64) float64 {
	f, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil || f <= 0 {
		return defaultVal
	}
	return f
}

func getInt(key string, defaultVal int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil || n <= 0 {
		return defaultVal
	}
	return n
}

func getLocation(key string) *time.Location {
	name := getEnv(key, "UTC")
	loc, err := time.LoadLocation(name)
	if err != nil {
		slog.Warn("unknown time zone, using UTC", "key", key, "value", name, "error", err)
		return time.UTC
	}
	return loc
}
