package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreRedis    = "redis"
)

// DefaultRosterURL is the static feed published for the CTPI enrollees.
const DefaultRosterURL = "https://raw.githubusercontent.com/CesarMCuellarCha/apis/refs/heads/main/SENA-CTPI.matriculados.json"

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database DatabaseConfig
	Redis    RedisConfig
	CORS     CORSConfig
	Log      LogConfig
	Roster   RosterConfig
	Auth     AuthConfig
	Viewer   ViewerConfig
	Storage  StorageConfig
	Exports  ExportsConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// RosterConfig describes the upstream feed and its cache.
type RosterConfig struct {
	URL          string
	FetchTimeout time.Duration
	CacheEnabled bool
	CacheTTL     time.Duration
}

// AuthConfig holds the shared secret and client cookie settings.
type AuthConfig struct {
	SharedPassword     string
	SharedPasswordHash string
	ClientTokenSecret  string
	ClientCookieTTL    time.Duration
}

// ViewerConfig tunes the per-tab view coordinators.
type ViewerConfig struct {
	SearchDebounce     time.Duration
	SearchMinChars     int
	SearchHistoryLimit int
	IdleTTL            time.Duration
}

// StorageConfig selects the key-value backends behind the persistence adapter.
type StorageConfig struct {
	Durable    string
	Session    string
	SessionTTL time.Duration
}

// ExportsConfig controls cohort table downloads.
type ExportsConfig struct {
	Enabled         bool
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Roster = RosterConfig{
		URL:          v.GetString("ROSTER_URL"),
		FetchTimeout: parseDuration(v.GetString("ROSTER_FETCH_TIMEOUT"), 15*time.Second),
		CacheEnabled: v.GetBool("ROSTER_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("ROSTER_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Auth = AuthConfig{
		SharedPassword:     v.GetString("SHARED_PASSWORD"),
		SharedPasswordHash: v.GetString("SHARED_PASSWORD_HASH"),
		ClientTokenSecret:  v.GetString("CLIENT_TOKEN_SECRET"),
		ClientCookieTTL:    parseDuration(v.GetString("CLIENT_COOKIE_TTL"), 365*24*time.Hour),
	}

	cfg.Viewer = ViewerConfig{
		SearchDebounce:     parseDuration(v.GetString("SEARCH_DEBOUNCE"), 500*time.Millisecond),
		SearchMinChars:     positiveOr(v.GetInt("SEARCH_MIN_CHARS"), 2),
		SearchHistoryLimit: positiveOr(v.GetInt("SEARCH_HISTORY_LIMIT"), 10),
		IdleTTL:            parseDuration(v.GetString("VIEWER_IDLE_TTL"), 2*time.Hour),
	}

	cfg.Storage = StorageConfig{
		Durable:    strings.ToLower(v.GetString("DURABLE_STORE")),
		Session:    strings.ToLower(v.GetString("SESSION_STORE")),
		SessionTTL: parseDuration(v.GetString("SESSION_STORE_TTL"), 12*time.Hour),
	}

	cfg.Exports = ExportsConfig{
		Enabled:         v.GetBool("ENABLE_EXPORTS"),
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), 30*time.Minute),
		CleanupInterval: parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Durable {
	case StoreMemory, StorePostgres:
	default:
		return errors.New("DURABLE_STORE must be one of memory, postgres")
	}
	switch c.Storage.Session {
	case StoreMemory, StoreRedis:
	default:
		return errors.New("SESSION_STORE must be one of memory, redis")
	}
	if c.Roster.URL == "" {
		return errors.New("ROSTER_URL is required")
	}
	if c.Env == EnvProduction && c.Auth.ClientTokenSecret == "dev_client_secret" {
		return errors.New("CLIENT_TOKEN_SECRET must be set in production")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "aprendices_roster")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ROSTER_URL", DefaultRosterURL)
	v.SetDefault("ROSTER_FETCH_TIMEOUT", "15s")
	v.SetDefault("ROSTER_CACHE_ENABLED", false)
	v.SetDefault("ROSTER_CACHE_TTL", "5m")

	v.SetDefault("SHARED_PASSWORD", "adso3064975")
	v.SetDefault("SHARED_PASSWORD_HASH", "")
	v.SetDefault("CLIENT_TOKEN_SECRET", "dev_client_secret")
	v.SetDefault("CLIENT_COOKIE_TTL", "8760h")

	v.SetDefault("SEARCH_DEBOUNCE", "500ms")
	v.SetDefault("SEARCH_MIN_CHARS", 2)
	v.SetDefault("SEARCH_HISTORY_LIMIT", 10)
	v.SetDefault("VIEWER_IDLE_TTL", "2h")

	v.SetDefault("DURABLE_STORE", StoreMemory)
	v.SetDefault("SESSION_STORE", StoreMemory)
	v.SetDefault("SESSION_STORE_TTL", "12h")

	v.SetDefault("ENABLE_EXPORTS", false)
	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "30m")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func positiveOr(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
