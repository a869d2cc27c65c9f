package config

import (
	"errors"
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

	Database      DatabaseConfig
	Redis         RedisConfig
	JWT           JWTConfig
	CORS          CORSConfig
	Log           LogConfig
	LLM           LLMConfig
	Transcription TranscriptionConfig
	Identify      IdentifyConfig
	Uploads       UploadsConfig
	Jobs          JobsConfig
	Dashboard     DashboardConfig
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

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// LLMConfig points the identification engine at a chat-completion endpoint.
// An empty APIKey disables the primary pathway entirely.
type LLMConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// TranscriptionConfig configures the external speech-to-text provider.
type TranscriptionConfig struct {
	Enabled      bool
	BaseURL      string
	APIKey       string
	PollInterval time.Duration
}

// IdentifyConfig carries the acceptance threshold and the two named
// fallback confidence policies.
type IdentifyConfig struct {
	AcceptThreshold float64

	NoCredentialsFullName float64
	NoCredentialsNickname float64
	NoCredentialsLastName float64

	ProviderErrorFullName float64
	ProviderErrorNickname float64
	ProviderErrorLastName float64
}

// UploadsConfig controls video upload storage and signed playback URLs.
type UploadsConfig struct {
	StorageDir       string
	MaxFileSizeBytes int64
	AllowedMIMEs     []string
	SignedURLSecret  string
	SignedURLTTL     time.Duration
}

// JobsConfig tunes the background worker pool.
type JobsConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// DashboardConfig governs dashboard cache tuning.
type DashboardConfig struct {
	CacheTTL time.Duration
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
		if !errors.As(err, &notFound) {
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

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.LLM = LLMConfig{
		APIKey:  v.GetString("LLM_API_KEY"),
		BaseURL: v.GetString("LLM_BASE_URL"),
		Model:   v.GetString("LLM_MODEL"),
		Timeout: parseDuration(v.GetString("LLM_TIMEOUT"), 30*time.Second),
	}

	cfg.Transcription = TranscriptionConfig{
		Enabled:      v.GetBool("TRANSCRIPTION_ENABLED"),
		BaseURL:      v.GetString("TRANSCRIPTION_BASE_URL"),
		APIKey:       v.GetString("TRANSCRIPTION_API_KEY"),
		PollInterval: parseDuration(v.GetString("TRANSCRIPTION_POLL_INTERVAL"), 15*time.Second),
	}

	cfg.Identify = IdentifyConfig{
		AcceptThreshold:       v.GetFloat64("IDENTIFY_ACCEPT_THRESHOLD"),
		NoCredentialsFullName: v.GetFloat64("IDENTIFY_NOCRED_FULL_NAME"),
		NoCredentialsNickname: v.GetFloat64("IDENTIFY_NOCRED_NICKNAME"),
		NoCredentialsLastName: v.GetFloat64("IDENTIFY_NOCRED_LAST_NAME"),
		ProviderErrorFullName: v.GetFloat64("IDENTIFY_PROVERR_FULL_NAME"),
		ProviderErrorNickname: v.GetFloat64("IDENTIFY_PROVERR_NICKNAME"),
		ProviderErrorLastName: v.GetFloat64("IDENTIFY_PROVERR_LAST_NAME"),
	}

	maxUploadSize := v.GetInt64("UPLOADS_MAX_FILE_SIZE")
	if maxUploadSize <= 0 {
		maxUploadSize = 2 * 1024 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		StorageDir:       v.GetString("UPLOADS_STORAGE_DIR"),
		MaxFileSizeBytes: maxUploadSize,
		AllowedMIMEs:     splitAndTrim(v.GetString("UPLOADS_ALLOWED_MIME_TYPES")),
		SignedURLSecret:  v.GetString("UPLOADS_SIGNED_URL_SECRET"),
		SignedURLTTL:     parseDuration(v.GetString("UPLOADS_SIGNED_URL_TTL"), time.Hour),
	}

	cfg.Jobs = JobsConfig{
		Workers:    v.GetInt("JOBS_WORKERS"),
		BufferSize: v.GetInt("JOBS_BUFFER_SIZE"),
		MaxRetries: v.GetInt("JOBS_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("JOBS_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Dashboard = DashboardConfig{
		CacheTTL: parseDuration(v.GetString("DASHBOARD_CACHE_TTL"), 5*time.Minute),
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
	v.SetDefault("DB_NAME", "clipflow")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("LLM_API_KEY", "")
	v.SetDefault("LLM_BASE_URL", "https://openrouter.ai/api/v1/chat/completions")
	v.SetDefault("LLM_MODEL", "openai/gpt-4o-mini")
	v.SetDefault("LLM_TIMEOUT", "30s")

	v.SetDefault("TRANSCRIPTION_ENABLED", false)
	v.SetDefault("TRANSCRIPTION_BASE_URL", "")
	v.SetDefault("TRANSCRIPTION_API_KEY", "")
	v.SetDefault("TRANSCRIPTION_POLL_INTERVAL", "15s")

	v.SetDefault("IDENTIFY_ACCEPT_THRESHOLD", 70)
	v.SetDefault("IDENTIFY_NOCRED_FULL_NAME", 90)
	v.SetDefault("IDENTIFY_NOCRED_NICKNAME", 85)
	v.SetDefault("IDENTIFY_NOCRED_LAST_NAME", 75)
	v.SetDefault("IDENTIFY_PROVERR_FULL_NAME", 70)
	v.SetDefault("IDENTIFY_PROVERR_NICKNAME", 65)
	v.SetDefault("IDENTIFY_PROVERR_LAST_NAME", 75)

	v.SetDefault("UPLOADS_STORAGE_DIR", "./videos")
	v.SetDefault("UPLOADS_MAX_FILE_SIZE", 2*1024*1024*1024)
	v.SetDefault("UPLOADS_ALLOWED_MIME_TYPES", "video/mp4,video/quicktime,video/x-matroska,video/webm")
	v.SetDefault("UPLOADS_SIGNED_URL_SECRET", "dev_uploads_secret")
	v.SetDefault("UPLOADS_SIGNED_URL_TTL", "1h")

	v.SetDefault("JOBS_WORKERS", 2)
	v.SetDefault("JOBS_BUFFER_SIZE", 16)
	v.SetDefault("JOBS_MAX_RETRIES", 3)
	v.SetDefault("JOBS_RETRY_DELAY", "5s")

	v.SetDefault("DASHBOARD_CACHE_TTL", "5m")
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
