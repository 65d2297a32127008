package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"nightmap/internal/domain/venues"
	"nightmap/internal/ratelimiter"
	"nightmap/internal/sources"
)

type config struct {
	addr        string
	env         string
	apiURL      string
	logLevel    string
	db          dbConfig
	redis       redisConfig
	auth        authConfig
	providers   providerConfig
	sync        syncConfig
	push        pushConfig
	rateLimiter ratelimiter.Config
}

type dbConfig struct {
	addr        string
	maxConns    int32
	maxIdleTime string
}

type redisConfig struct {
	addr string
	db   int
	ttl  time.Duration
}

type authConfig struct {
	basic basicConfig
	token tokenConfig
}

type tokenConfig struct {
	secret string
	aud    string
	iss    string
}

type basicConfig struct {
	user string
	pass string
}

type providerConfig struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	rps        float64
	maxRetries uint64
}

type syncConfig struct {
	enabled  bool
	interval time.Duration
	location string
	keyword  string
	region   venues.Region
}

type pushConfig struct {
	accessToken string
}

// envString returns the value of key or fallback when unset or blank.
func envString(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
		fmt.Printf("Invalid %s, defaulting to %d\n", key, fallback)
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
		fmt.Printf("Invalid %s, defaulting to %v\n", key, fallback)
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
		fmt.Printf("Invalid %s, defaulting to %v\n", key, fallback)
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
		fmt.Printf("Invalid %s, defaulting to %s\n", key, fallback)
	}
	return fallback
}

// LoadRateLimiterConfig retrieves rate limiter settings from environment variables
func LoadRateLimiterConfig() ratelimiter.Config {
	return ratelimiter.Config{
		RequestsPerTimeFrame: envInt("RATELIMITER_REQUESTS_COUNT", 20),
		TimeFrame:            envDuration("RATELIMITER_TIME_FRAME", time.Minute),
		Enabled:              envBool("RATE_LIMITER_ENABLED", true),
	}
}

func loadConfig() (config, error) {
	cfg := config{
		addr:     envString("ADDR", ":8080"),
		env:      envString("ENV", "development"),
		apiURL:   envString("EXTERNAL_URL", "localhost:8080"),
		logLevel: envString("LOG_LEVEL", "info"),
		db: dbConfig{
			addr:        os.Getenv("DB_ADDR"),
			maxConns:    int32(envInt("DB_MAX_CONNS", 10)),
			maxIdleTime: envString("DB_MAX_IDLE_TIME", "15m"),
		},
		redis: redisConfig{
			addr: envString("REDIS_ADDR", "localhost:6379"),
			db:   envInt("REDIS_DB", 0),
			ttl:  envDuration("CATALOG_CACHE_TTL", time.Hour),
		},
		auth: authConfig{
			basic: basicConfig{
				user: os.Getenv("AUTH_BASIC_USER"),
				pass: os.Getenv("AUTH_BASIC_PASS"),
			},
			token: tokenConfig{
				secret: os.Getenv("AUTH_TOKEN_SECRET"),
				aud:    envString("AUTH_TOKEN_AUDIENCE", "authenticated"),
				iss:    envString("AUTH_TOKEN_ISSUER", "nightmap"),
			},
		},
		providers: providerConfig{
			baseURL:    os.Getenv("PROVIDER_PROXY_URL"),
			apiKey:     os.Getenv("PROVIDER_API_KEY"),
			timeout:    envDuration("PROVIDER_TIMEOUT", 10*time.Second),
			rps:        envFloat("PROVIDER_RPS", 5),
			maxRetries: uint64(envInt("PROVIDER_MAX_RETRIES", sources.DefaultMaxRetries)),
		},
		sync: syncConfig{
			enabled:  envBool("SYNC_ENABLED", false),
			interval: envDuration("SYNC_INTERVAL", 6*time.Hour),
			location: envString("SYNC_LOCATION", sources.DefaultLocation),
			keyword:  envString("SYNC_KEYWORD", sources.DefaultKeyword),
			region: venues.Region{
				North: envFloat("REGION_NORTH", venues.DaytonRegion.North),
				South: envFloat("REGION_SOUTH", venues.DaytonRegion.South),
				East:  envFloat("REGION_EAST", venues.DaytonRegion.East),
				West:  envFloat("REGION_WEST", venues.DaytonRegion.West),
			},
		},
		push: pushConfig{
			accessToken: os.Getenv("EXPO_ACCESS_TOKEN"),
		},
		rateLimiter: LoadRateLimiterConfig(),
	}

	if cfg.db.addr == "" {
		return cfg, fmt.Errorf("DB_ADDR is required")
	}
	if cfg.auth.token.secret == "" {
		return cfg, fmt.Errorf("AUTH_TOKEN_SECRET is required")
	}
	if cfg.providers.baseURL == "" {
		return cfg, fmt.Errorf("PROVIDER_PROXY_URL is required")
	}
	if err := Validate.Struct(cfg.sync.region); err != nil {
		return cfg, fmt.Errorf("invalid catalog region: %w", err)
	}
	if cfg.sync.interval < time.Minute {
		return cfg, fmt.Errorf("SYNC_INTERVAL must be at least 1m")
	}
	return cfg, nil
}
