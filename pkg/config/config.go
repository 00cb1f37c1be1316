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

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	CORS      CORSConfig
	Log       LogConfig
	Cache     CacheConfig
	Scheduler SchedulerConfig
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
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// JWTConfig holds the shared secret used to verify bearer tokens issued by the auth service.
type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig governs directory caching and the invalidation worker.
type CacheConfig struct {
	DirectoryTTL      time.Duration
	InvalidateWorkers int
	InvalidateRetries int
}

// SchedulerConfig shapes the calendar grid and the collaborator link used by calendar sessions.
type SchedulerConfig struct {
	GridStartHour          int
	GridEndHour            int
	RowHeightPx            int
	DefaultDurationMinutes int
	CollaboratorURL        string
	CollaboratorTimeout    time.Duration
	SessionTTL             time.Duration
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

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
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
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret: v.GetString("JWT_SECRET"),
		Issuer: v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		DirectoryTTL:      parseDuration(v.GetString("DIRECTORY_CACHE_TTL"), 5*time.Minute),
		InvalidateWorkers: v.GetInt("CACHE_INVALIDATE_WORKERS"),
		InvalidateRetries: v.GetInt("CACHE_INVALIDATE_RETRIES"),
	}

	cfg.Scheduler = SchedulerConfig{
		GridStartHour:          v.GetInt("SCHEDULER_GRID_START_HOUR"),
		GridEndHour:            v.GetInt("SCHEDULER_GRID_END_HOUR"),
		RowHeightPx:            v.GetInt("SCHEDULER_ROW_HEIGHT_PX"),
		DefaultDurationMinutes: v.GetInt("SCHEDULER_DEFAULT_DURATION_MINUTES"),
		CollaboratorURL:        strings.TrimRight(v.GetString("SCHEDULER_COLLABORATOR_URL"), "/"),
		CollaboratorTimeout:    parseDuration(v.GetString("SCHEDULER_COLLABORATOR_TIMEOUT"), 10*time.Second),
		SessionTTL:             parseDuration(v.GetString("SCHEDULER_SESSION_TTL"), 2*time.Hour),
	}

	if cfg.Scheduler.GridStartHour < 0 || cfg.Scheduler.GridEndHour > 24 || cfg.Scheduler.GridStartHour >= cfg.Scheduler.GridEndHour {
		return nil, errors.New("scheduler grid hours must satisfy 0 <= start < end <= 24")
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "sma_scheduler")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DIRECTORY_CACHE_TTL", "5m")
	v.SetDefault("CACHE_INVALIDATE_WORKERS", 1)
	v.SetDefault("CACHE_INVALIDATE_RETRIES", 3)

	v.SetDefault("SCHEDULER_GRID_START_HOUR", 7)
	v.SetDefault("SCHEDULER_GRID_END_HOUR", 21)
	v.SetDefault("SCHEDULER_ROW_HEIGHT_PX", 60)
	v.SetDefault("SCHEDULER_DEFAULT_DURATION_MINUTES", 60)
	v.SetDefault("SCHEDULER_COLLABORATOR_URL", "")
	v.SetDefault("SCHEDULER_COLLABORATOR_TIMEOUT", "10s")
	v.SetDefault("SCHEDULER_SESSION_TTL", "2h")
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
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
