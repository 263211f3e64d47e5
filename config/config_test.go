package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "CORS_ORIGIN", "JWT_SECRET", "JWT_EXPIRY", "MONGODB_URI",
		"REDIS_URL", "GAME_STATE_FLUSH_INTERVAL_MS", "GAME_STATE_CACHE_TTL_SECONDS",
		"GAME_MOVE_LOG_TTL_SECONDS", "GAME_MOVE_LOG_MAX_ITEMS",
		"ENGAGEMENT_DICE_ENABLED", "TAUNT_SYSTEM_ENABLED", "TAUNT_COOLDOWN_MS",
		"TAUNT_LIMIT_PER_MIN", "TAUNT_AUTO_BURST_LIMIT",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.JWTSecret != DevSecret {
		t.Errorf("JWTSecret = %q", cfg.JWTSecret)
	}
	if cfg.JWTExpiry != 24*time.Hour {
		t.Errorf("JWTExpiry = %v", cfg.JWTExpiry)
	}
	if cfg.FlushInterval != 2*time.Second {
		t.Errorf("FlushInterval = %v", cfg.FlushInterval)
	}
	if cfg.StateCacheTTL != time.Hour {
		t.Errorf("StateCacheTTL = %v", cfg.StateCacheTTL)
	}
	if cfg.MoveLogTTL != 24*time.Hour {
		t.Errorf("MoveLogTTL = %v", cfg.MoveLogTTL)
	}
	if cfg.MoveLogMaxItems != 300 {
		t.Errorf("MoveLogMaxItems = %d", cfg.MoveLogMaxItems)
	}
	if !cfg.EngagementDiceEnabled || !cfg.TauntsEnabled {
		t.Error("feature defaults should be enabled")
	}
	if cfg.TauntCooldown != 5*time.Second || cfg.TauntPerMinute != 6 || cfg.TauntBurstLimit != 2 {
		t.Errorf("taunt limits = %v %d %d", cfg.TauntCooldown, cfg.TauntPerMinute, cfg.TauntBurstLimit)
	}
	if cfg.CORSOrigins != nil {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CORS_ORIGIN", "https://a.example.com, https://b.example.com,")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("JWT_EXPIRY", "30m")
	t.Setenv("GAME_STATE_FLUSH_INTERVAL_MS", "500")
	t.Setenv("ENGAGEMENT_DICE_ENABLED", "false")
	t.Setenv("TAUNT_LIMIT_PER_MIN", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d", cfg.Port)
	}
	want := []string{"https://a.example.com", "https://b.example.com"}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != want[0] || cfg.CORSOrigins[1] != want[1] {
		t.Errorf("CORSOrigins = %v", cfg.CORSOrigins)
	}
	if cfg.JWTSecret != "s3cret" || cfg.JWTExpiry != 30*time.Minute {
		t.Errorf("jwt = %q %v", cfg.JWTSecret, cfg.JWTExpiry)
	}
	if cfg.FlushInterval != 500*time.Millisecond {
		t.Errorf("FlushInterval = %v", cfg.FlushInterval)
	}
	if cfg.EngagementDiceEnabled {
		t.Error("engagement dice should be off")
	}
	if cfg.TauntPerMinute != 10 {
		t.Errorf("TauntPerMinute = %d", cfg.TauntPerMinute)
	}
}

func TestLoadBadPortFails(t *testing.T) {
	t.Setenv("PORT", "not-a-port")
	if _, err := Load(); err == nil {
		t.Error("bad PORT accepted")
	}
}

func TestLoadMalformedKnobsFallBack(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("GAME_MOVE_LOG_MAX_ITEMS", "banana")
	t.Setenv("JWT_EXPIRY", "yesterday")
	t.Setenv("TAUNT_COOLDOWN_MS", "-5")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MoveLogMaxItems != 300 {
		t.Errorf("MoveLogMaxItems = %d", cfg.MoveLogMaxItems)
	}
	if cfg.JWTExpiry != 24*time.Hour {
		t.Errorf("JWTExpiry = %v", cfg.JWTExpiry)
	}
	if cfg.TauntCooldown != 5*time.Second {
		t.Errorf("TauntCooldown = %v", cfg.TauntCooldown)
	}
}
