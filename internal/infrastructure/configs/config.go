package configs

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/sdv1812/sprintlet/internal/infrastructure/env"
)

type Config struct {
	HTTP        HTTPConfig        `koanf:"http"`
	RateLimiter RateLimiterConfig `koanf:"rateLimiter"`
	Store       StoreConfig       `koanf:"store"`
	Room        RoomConfig        `koanf:"room"`
	Stream      StreamConfig      `koanf:"stream"`
}

type HTTPConfig struct {
	Host           string        `koanf:"host"`
	Port           uint16        `koanf:"port"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
	AllowedHeaders []string      `koanf:"allowed_headers"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
}

type RateLimiterConfig struct {
	MaxRatePerSecond int           `koanf:"maxRatePerSecond"`
	MaxBurst         int           `koanf:"maxBurst"`
	CacheTTL         time.Duration `koanf:"cacheTTL"`
	SourceHeaderKey  string        `koanf:"sourceHeaderKey"`
}

// StoreConfig selects the key-value backend. Backend is "redis" or "memory";
// memory is single-process only and meant for local development.
type StoreConfig struct {
	Backend       string `koanf:"backend"`
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`
}

type RoomConfig struct {
	TTL                 time.Duration `koanf:"ttl"`
	InactivityThreshold time.Duration `koanf:"inactivity_threshold"`
}

type StreamConfig struct {
	KeepAliveInterval time.Duration `koanf:"keepalive_interval"`
	SendBuffer        int           `koanf:"send_buffer"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Load from YAML file if it exists
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			// Only return error if file was explicitly provided but failed to load
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// Apply defaults and environment variable overrides
	applyDefaults(k)
	applyEnvOverrides(k)

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(k *koanf.Koanf) {
	// HTTP defaults
	setDefault(k, "http.host", "0.0.0.0")
	setDefault(k, "http.port", 8080)
	setDefault(k, "http.read_timeout", 10*time.Second)
	setDefault(k, "http.write_timeout", 30*time.Second)
	setDefault(k, "http.allowed_origins", []string{"*"})
	setDefault(k, "http.allowed_headers", []string{"Content-Type", "Authorization"})

	// Rate limiter defaults
	setDefault(k, "rateLimiter.maxRatePerSecond", 10)
	setDefault(k, "rateLimiter.maxBurst", 20)
	setDefault(k, "rateLimiter.cacheTTL", 5*time.Minute)
	setDefault(k, "rateLimiter.sourceHeaderKey", "X-Forwarded-For")

	// Store defaults
	setDefault(k, "store.backend", "redis")
	setDefault(k, "store.redis_addr", "localhost:6379")
	setDefault(k, "store.redis_db", 0)

	// Room lifecycle defaults
	setDefault(k, "room.ttl", 8*time.Hour)
	setDefault(k, "room.inactivity_threshold", 5*time.Minute)

	// Stream defaults
	setDefault(k, "stream.keepalive_interval", 30*time.Second)
	setDefault(k, "stream.send_buffer", 64)
}

func applyEnvOverrides(k *koanf.Koanf) {
	// HTTP config from env
	if host := env.GetString("HTTP_HOST", ""); host != "" {
		k.Set("http.host", host)
	}
	if port := env.GetInt("HTTP_PORT", 0); port > 0 {
		k.Set("http.port", port)
	}
	if readTimeout := env.GetInt("HTTP_READ_TIMEOUT_SECONDS", 0); readTimeout > 0 {
		k.Set("http.read_timeout", time.Duration(readTimeout)*time.Second)
	}
	if writeTimeout := env.GetInt("HTTP_WRITE_TIMEOUT_SECONDS", 0); writeTimeout > 0 {
		k.Set("http.write_timeout", time.Duration(writeTimeout)*time.Second)
	}

	// Rate limiter config from env
	if maxRate := env.GetInt("RATE_LIMIT_MAX_RATE_PER_SECOND", 0); maxRate > 0 {
		k.Set("rateLimiter.maxRatePerSecond", maxRate)
	}
	if maxBurst := env.GetInt("RATE_LIMIT_MAX_BURST", 0); maxBurst > 0 {
		k.Set("rateLimiter.maxBurst", maxBurst)
	}

	// Store config from env
	if backend := env.GetString("STORE_BACKEND", ""); backend != "" {
		k.Set("store.backend", backend)
	}
	if addr := env.GetString("REDIS_ADDR", ""); addr != "" {
		k.Set("store.redis_addr", addr)
	}
	if password := env.GetString("REDIS_PASSWORD", ""); password != "" {
		k.Set("store.redis_password", password)
	}
	if db := env.GetInt("REDIS_DB", 0); db > 0 {
		k.Set("store.redis_db", db)
	}

	// Room lifecycle from env
	if ttl := env.GetInt("ROOM_TTL_HOURS", 0); ttl > 0 {
		k.Set("room.ttl", time.Duration(ttl)*time.Hour)
	}
	if threshold := env.GetInt("ROOM_INACTIVITY_THRESHOLD_MINUTES", 0); threshold > 0 {
		k.Set("room.inactivity_threshold", time.Duration(threshold)*time.Minute)
	}
}

// setDefault only sets the value if the key doesn't already exist
func setDefault(k *koanf.Koanf, key string, value interface{}) {
	if !k.Exists(key) {
		k.Set(key, value)
	}
}
