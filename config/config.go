// Package config reads the server's environment surface into one typed
// struct. Every knob has a default; unset or malformed values fall back
// rather than fail, except the port which must parse.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the full environment surface.
type Config struct {
	Port        int
	CORSOrigins []string

	JWTSecret string
	JWTExpiry time.Duration

	MongoURI string
	RedisURL string

	FlushInterval   time.Duration
	StateCacheTTL   time.Duration
	MoveLogTTL      time.Duration
	MoveLogMaxItems int

	EngagementDiceEnabled bool

	TauntsEnabled   bool
	TauntCooldown   time.Duration
	TauntPerMinute  int
	TauntBurstLimit int
}

// DevSecret is the fallback JWT secret. Anything signed with it is
// worthless outside local development; main logs loudly when it is in use.
const DevSecret = "dev-secret"

// Load builds a Config from the process environment.
func Load() (*Config, error) {
	port, err := envInt("PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	cfg := &Config{
		Port:        port,
		CORSOrigins: splitCSV(os.Getenv("CORS_ORIGIN")),

		JWTSecret: envString("JWT_SECRET", DevSecret),
		JWTExpiry: envDuration("JWT_EXPIRY", 24*time.Hour),

		MongoURI: os.Getenv("MONGODB_URI"),
		RedisURL: os.Getenv("REDIS_URL"),

		FlushInterval:   envMillis("GAME_STATE_FLUSH_INTERVAL_MS", 2000),
		StateCacheTTL:   envSeconds("GAME_STATE_CACHE_TTL_SECONDS", 3600),
		MoveLogTTL:      envSeconds("GAME_MOVE_LOG_TTL_SECONDS", 86400),
		MoveLogMaxItems: envIntDefault("GAME_MOVE_LOG_MAX_ITEMS", 300),

		EngagementDiceEnabled: envBool("ENGAGEMENT_DICE_ENABLED", true),

		TauntsEnabled:   envBool("TAUNT_SYSTEM_ENABLED", true),
		TauntCooldown:   envMillis("TAUNT_COOLDOWN_MS", 5000),
		TauntPerMinute:  envIntDefault("TAUNT_LIMIT_PER_MIN", 6),
		TauntBurstLimit: envIntDefault("TAUNT_AUTO_BURST_LIMIT", 2),
	}
	return cfg, nil
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return n, nil
}

// envIntDefault is envInt for knobs where a malformed value should fall
// back instead of failing boot.
func envIntDefault(key string, fallback int) int {
	n, err := envInt(key, fallback)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envBool(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func envMillis(key string, fallback int) time.Duration {
	return time.Duration(envIntDefault(key, fallback)) * time.Millisecond
}

func envSeconds(key string, fallback int) time.Duration {
	return time.Duration(envIntDefault(key, fallback)) * time.Second
}

// envDuration parses Go duration syntax ("24h", "30m").
func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
