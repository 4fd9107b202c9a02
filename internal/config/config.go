package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"membership-admin/internal/core/domain"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	AppMode    string
	Port       string
	Timezone   *time.Location
	Storage    StorageConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Admin      AdminConfig
	JWT        JWTConfig
	Cookie     CookieConfig
	Upload     UploadConfig
	Membership MembershipConfig
	Jobs       JobsConfig
}

// StorageConfig selects the member store backend
type StorageConfig struct {
	Driver     string // mysql, postgres, sqlite, jsonfile, mongo
	SQLitePath string
	JSONPath   string
	MongoURI   string
	MongoDB    string
}

// DatabaseConfig holds SQL database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig enables the shared allocation lock when Addr is set
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// AdminConfig is the single admin credential
type AdminConfig struct {
	Username     string
	PasswordHash string // bcrypt
	Password     string // plain, hashed at startup when PasswordHash is empty
}

// JWTConfig holds access token configuration
type JWTConfig struct {
	Secret          string
	AccessTokenMins int
}

// CookieConfig holds cookie configuration
type CookieConfig struct {
	Secure   bool
	SameSite string
	Domain   string
}

// UploadConfig holds logo/signature upload settings
type UploadConfig struct {
	Dir      string
	MaxBytes int64
}

// MembershipConfig holds membership ID format settings
type MembershipConfig struct {
	IDPrefix string
	IDWidth  int
}

// JobsConfig holds background job settings
type JobsConfig struct {
	StatusRefreshCron string
	DashboardCacheTTL time.Duration
	SeedDemo          bool // dev only
}

// Global config instance
var AppConfig *Config

var storageDrivers = map[string]bool{
	"mysql":    true,
	"postgres": true,
	"sqlite":   true,
	"jsonfile": true,
	"mongo":    true,
}

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	cfg, err := FromEnv()
	if err != nil {
		return nil, err
	}

	// Set global config
	AppConfig = cfg

	log.Printf("✅ Configuration loaded successfully [MODE: %s, STORAGE: %s]", cfg.AppMode, cfg.Storage.Driver)
	return cfg, nil
}

// FromEnv builds a Config from the current environment without touching .env
func FromEnv() (*Config, error) {
	// Trim spaces for Windows compatibility
	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	storage := loadStorageConfig()
	if !storageDrivers[storage.Driver] {
		return nil, fmt.Errorf("invalid STORAGE_DRIVER: '%s'", storage.Driver)
	}

	loc, err := time.LoadLocation(getEnv("APP_TIMEZONE", "Local"))
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE: %w", err)
	}

	membership := MembershipConfig{
		IDPrefix: strings.ToUpper(strings.TrimSpace(getEnv("MEMBERSHIP_ID_PREFIX", "MEM"))),
		IDWidth:  getEnvInt("MEMBERSHIP_ID_WIDTH", 4),
	}
	if membership.IDWidth < domain.DefaultIDWidth || membership.IDWidth > domain.MaxIDWidth {
		return nil, fmt.Errorf("invalid MEMBERSHIP_ID_WIDTH: %d (must be %d to %d)", membership.IDWidth, domain.DefaultIDWidth, domain.MaxIDWidth)
	}
	if membership.IDPrefix == "" || strings.Contains(membership.IDPrefix, "-") {
		return nil, fmt.Errorf("invalid MEMBERSHIP_ID_PREFIX: '%s'", membership.IDPrefix)
	}

	admin := AdminConfig{
		Username:     getEnv("ADMIN_USERNAME", "admin"),
		PasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		Password:     os.Getenv("ADMIN_PASSWORD"),
	}
	if admin.PasswordHash == "" && admin.Password == "" {
		if appMode == "prod" {
			return nil, fmt.Errorf("ADMIN_PASSWORD_HASH or ADMIN_PASSWORD is required in prod")
		}
		admin.Password = "admin123"
		log.Println("⚠️ Using default admin password (dev only)")
	}

	return &Config{
		AppMode:    appMode,
		Port:       getEnv("PORT", "3000"),
		Timezone:   loc,
		Storage:    storage,
		Database:   loadDatabaseConfig(appMode),
		Redis:      loadRedisConfig(),
		Admin:      admin,
		JWT:        loadJWTConfig(appMode),
		Cookie:     loadCookieConfig(appMode),
		Upload:     loadUploadConfig(),
		Membership: membership,
		Jobs: JobsConfig{
			StatusRefreshCron: getEnv("STATUS_REFRESH_CRON", "5 0 * * *"),
			DashboardCacheTTL: time.Duration(getEnvInt("DASHBOARD_CACHE_SECONDS", 30)) * time.Second,
			SeedDemo:          appMode == "dev" && getEnv("SEED_DEMO", "false") == "true",
		},
	}, nil
}

func loadStorageConfig() StorageConfig {
	return StorageConfig{
		Driver:     strings.ToLower(strings.TrimSpace(getEnv("STORAGE_DRIVER", "mysql"))),
		SQLitePath: getEnv("SQLITE_PATH", "data/members.db"),
		JSONPath:   getEnv("JSON_STORE_PATH", "data/members.json"),
		MongoURI:   getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:    getEnv("MONGO_DB", "memberships"),
	}
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) DatabaseConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	return DatabaseConfig{
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", "3306"),
		User:     getEnv(prefix+"DB_USER", "root"),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "memberships"),
		SSLMode:  getEnv(prefix+"DB_SSLMODE", "disable"),
	}
}

func loadRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	return JWTConfig{
		Secret:          getEnv(prefix+"JWT_SECRET", "default_secret"),
		AccessTokenMins: getEnvInt("ACCESS_TOKEN_MINUTES", 480),
	}
}

// loadCookieConfig loads cookie config based on mode
func loadCookieConfig(mode string) CookieConfig {
	prefix := "DEV_"
	if mode == "prod" {
		prefix = "PROD_"
	}

	secure, _ := strconv.ParseBool(getEnv(prefix+"COOKIE_SECURE", "false"))

	return CookieConfig{
		Secure:   secure,
		SameSite: getEnv("COOKIE_SAMESITE", "lax"),
		Domain:   getEnv("COOKIE_DOMAIN", ""),
	}
}

func loadUploadConfig() UploadConfig {
	return UploadConfig{
		Dir:      getEnv("UPLOAD_DIR", "uploads"),
		MaxBytes: int64(getEnvInt("UPLOAD_MAX_MB", 5)) << 20,
	}
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	n, err := strconv.Atoi(strings.TrimSpace(getEnv(key, strconv.Itoa(defaultValue))))
	if err != nil {
		log.Printf("⚠️ Invalid %s, using %d", key, defaultValue)
		return defaultValue
	}
	return n
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		return "http://localhost:" + c.Port
	}
	return origins
}
