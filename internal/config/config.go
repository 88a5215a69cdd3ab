package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// JWT
	JWTSecret        string
	JWTAccessExpiry  time.Duration
	JWTRefreshExpiry time.Duration

	// Admin
	AdminEmails  string
	AdminUserIDs string
	AdminToken   string

	// Server
	Port        string
	CORSOrigins string
	LogLevel    string

	// Rate limiter storage. Empty host keeps limits in memory.
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Gateway webhook secrets
	GatewaysConfigPath string

	// Background work
	BatchStepSize           int
	BatchAutoRun            bool
	BatchInterval           time.Duration
	ExpirationCheckInterval time.Duration
	LogRetentionDays        int

	// CSV import/export
	ImportDir string
	ExportDir string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "membership_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		JWTSecret:        getEnv("JWT_SECRET", ""),
		JWTAccessExpiry:  parseDuration(getEnv("JWT_ACCESS_EXPIRY", "15m"), 15*time.Minute),
		JWTRefreshExpiry: parseDuration(getEnv("JWT_REFRESH_EXPIRY", "168h"), 168*time.Hour),

		AdminEmails:  getEnv("ADMIN_EMAILS", ""),
		AdminUserIDs: getEnv("ADMIN_USER_IDS", ""),
		AdminToken:   getEnv("ADMIN_TOKEN", ""),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		RedisHost:     getEnv("REDIS_HOST", ""),
		RedisPort:     parseInt(getEnv("REDIS_PORT", "6379"), 6379),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       parseInt(getEnv("REDIS_DB", "0"), 0),

		GatewaysConfigPath: getEnv("GATEWAYS_CONFIG_PATH", "gateways.json"),

		BatchStepSize:           parseInt(getEnv("BATCH_STEP_SIZE", "100"), 100),
		BatchAutoRun:            parseBool(getEnv("BATCH_AUTORUN", "true")),
		BatchInterval:           parseDuration(getEnv("BATCH_INTERVAL", "5s"), 5*time.Second),
		ExpirationCheckInterval: parseDuration(getEnv("EXPIRATION_CHECK_INTERVAL", "1h"), time.Hour),
		LogRetentionDays:        parseInt(getEnv("LOG_RETENTION_DAYS", "30"), 30),

		ImportDir: getEnv("IMPORT_DIR", "data/imports"),
		ExportDir: getEnv("EXPORT_DIR", "data/exports"),
	}
}

func (c *Config) DSN() string {
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
