package config

import (
	"os"
	"strings"

	"github.com/spf13/viper"
)

// readSecret reads a Docker secret from a file path specified by an env var
// with _FILE suffix. If FOO is already set directly, the file is skipped.
// If FOO_FILE is set, reads the file content and sets FOO.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	fileKey := envKey + "_FILE"
	filePath := os.Getenv(fileKey)
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	val := strings.TrimSpace(string(data))
	os.Setenv(envKey, val)
}

type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Session   SessionConfig
	RateLimit RateLimitConfig
	OpenAI    OpenAIConfig
	TTS       TTSConfig
	R2        R2Config
	Station   StationConfig
}

type ServerConfig struct {
	Port      string
	Env       string
	LogLevel  string
	ApiDomain string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SessionConfig signs the per-station listener tokens.
type SessionConfig struct {
	Secret     string
	Expiration int // hours
}

type RateLimitConfig struct {
	StationsPerHour int
	ExtendPerHour   int
}

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	DraftModel  string // creative playlist/commentary drafting
	CoerceModel string // cheap structured coercion
}

type TTSConfig struct {
	Model  string
	Voice  string            // default voice
	Voices map[string]string // per-language voice overrides, keyed by language code
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	PublicURL       string
}

// StationConfig tunes the extension pipeline.
type StationConfig struct {
	ExtendBatchSize int     // songs requested per extension pass
	SearchResults   int     // raw hits considered per candidate
	MatchThreshold  float64 // minimum similarity to accept a resolved song
	LockTTLMinutes  int     // stale isExtending locks older than this may be retaken
	SongURLCacheTTL int     // minutes a resolved stream URL stays cached
}

func Load() (*Config, error) {
	// Read Docker Swarm secrets from _FILE env vars before Viper binds
	readSecret("REDIS_PASSWORD")
	readSecret("OPENAI_API_KEY")
	readSecret("SESSION_SECRET")
	readSecret("R2_ACCOUNT_ID")
	readSecret("R2_ACCESS_KEY_ID")
	readSecret("R2_SECRET_ACCESS_KEY")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Environment variables
	viper.AutomaticEnv()

	// Bind environment variables with underscores to nested config keys
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.env", "SERVER_ENV")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.api_domain", "API_DOMAIN")
	_ = viper.BindEnv("redis.addr", "REDIS_ADDR")
	_ = viper.BindEnv("redis.password", "REDIS_PASSWORD")
	_ = viper.BindEnv("redis.db", "REDIS_DB")
	_ = viper.BindEnv("session.secret", "SESSION_SECRET")
	_ = viper.BindEnv("session.expiration", "SESSION_EXPIRATION")
	_ = viper.BindEnv("openai.api_key", "OPENAI_API_KEY")
	_ = viper.BindEnv("openai.base_url", "OPENAI_BASE_URL")
	_ = viper.BindEnv("openai.draft_model", "OPENAI_DRAFT_MODEL")
	_ = viper.BindEnv("openai.coerce_model", "OPENAI_COERCE_MODEL")
	_ = viper.BindEnv("tts.model", "TTS_MODEL")
	_ = viper.BindEnv("tts.voice", "TTS_VOICE")
	_ = viper.BindEnv("r2.account_id", "R2_ACCOUNT_ID")
	_ = viper.BindEnv("r2.access_key_id", "R2_ACCESS_KEY_ID")
	_ = viper.BindEnv("r2.secret_access_key", "R2_SECRET_ACCESS_KEY")
	_ = viper.BindEnv("r2.bucket_name", "R2_BUCKET_NAME")
	_ = viper.BindEnv("r2.public_url", "R2_PUBLIC_URL")
	_ = viper.BindEnv("station.extend_batch_size", "STATION_EXTEND_BATCH_SIZE")
	_ = viper.BindEnv("station.lock_ttl_minutes", "STATION_LOCK_TTL_MINUTES")

	// Defaults
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("session.secret", "change-me-in-production")
	viper.SetDefault("session.expiration", 24)
	viper.SetDefault("ratelimit.stations_per_hour", 10)
	viper.SetDefault("ratelimit.extend_per_hour", 60)

	// OpenAI defaults
	viper.SetDefault("openai.base_url", "https://api.openai.com/v1")
	viper.SetDefault("openai.draft_model", "gpt-4o")
	viper.SetDefault("openai.coerce_model", "gpt-4o-mini")

	// TTS defaults
	viper.SetDefault("tts.model", "tts-1")
	viper.SetDefault("tts.voice", "alloy")

	// Pipeline defaults
	viper.SetDefault("station.extend_batch_size", 12)
	viper.SetDefault("station.search_results", 5)
	viper.SetDefault("station.match_threshold", 0.5)
	viper.SetDefault("station.lock_ttl_minutes", 10)
	viper.SetDefault("station.song_url_cache_ttl", 300)

	// Try to read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Port:      viper.GetString("server.port"),
			Env:       viper.GetString("server.env"),
			LogLevel:  viper.GetString("server.log_level"),
			ApiDomain: viper.GetString("server.api_domain"),
		},
		Redis: RedisConfig{
			Addr:     viper.GetString("redis.addr"),
			Password: viper.GetString("redis.password"),
			DB:       viper.GetInt("redis.db"),
		},
		Session: SessionConfig{
			Secret:     viper.GetString("session.secret"),
			Expiration: viper.GetInt("session.expiration"),
		},
		RateLimit: RateLimitConfig{
			StationsPerHour: viper.GetInt("ratelimit.stations_per_hour"),
			ExtendPerHour:   viper.GetInt("ratelimit.extend_per_hour"),
		},
		OpenAI: OpenAIConfig{
			APIKey:      viper.GetString("openai.api_key"),
			BaseURL:     viper.GetString("openai.base_url"),
			DraftModel:  viper.GetString("openai.draft_model"),
			CoerceModel: viper.GetString("openai.coerce_model"),
		},
		TTS: TTSConfig{
			Model:  viper.GetString("tts.model"),
			Voice:  viper.GetString("tts.voice"),
			Voices: viper.GetStringMapString("tts.voices"),
		},
		R2: R2Config{
			AccountID:       viper.GetString("r2.account_id"),
			AccessKeyID:     viper.GetString("r2.access_key_id"),
			SecretAccessKey: viper.GetString("r2.secret_access_key"),
			BucketName:      viper.GetString("r2.bucket_name"),
			PublicURL:       viper.GetString("r2.public_url"),
		},
		Station: StationConfig{
			ExtendBatchSize: viper.GetInt("station.extend_batch_size"),
			SearchResults:   viper.GetInt("station.search_results"),
			MatchThreshold:  viper.GetFloat64("station.match_threshold"),
			LockTTLMinutes:  viper.GetInt("station.lock_ttl_minutes"),
			SongURLCacheTTL: viper.GetInt("station.song_url_cache_ttl"),
		},
	}

	return cfg, nil
}
