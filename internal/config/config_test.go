package config

import (
	"reflect"
	"testing"
	"time"
)

// --- MustLoad ---

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("LOG_LEVEL", "verbose") // invalid -> Load() error
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

// --- Load success + normalization + parsing ---

func TestLoad_Success_DefaultsAndOverrides(t *testing.T) {
	// Server timeouts / sizes (valid)
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("READ_HEADER_TIMEOUT", "1s")
	t.Setenv("WRITE_TIMEOUT", "3s")
	t.Setenv("IDLE_TIMEOUT", "4s")
	t.Setenv("MAX_HEADER_BYTES", "8192")
	t.Setenv("GIN_MODE", "weird") // will normalize to "release"

	// Logging
	t.Setenv("LOG_LEVEL", "warning") // will normalize to "warn"
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("API_BASE_PATH", "api/v1/") // no leading slash + trailing slash -> "/api/v1"

	// App
	t.Setenv("DB_PATH", "db.sqlite")
	t.Setenv("REDIS_ADDR", "localhost:6379")

	// Rate limiting (use invalids for parse to fall back to defaults)
	t.Setenv("RATE_RPS", "x")      // -> default 5.0
	t.Setenv("RATE_BURST", "nope") // -> default 10

	// Web protection
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.com , , http://b ")
	t.Setenv("ENABLE_HSTS", "TRUE")
	t.Setenv("HSTS_MAX_AGE", "24h")

	// Chat pipeline
	t.Setenv("CHAT_HISTORY_LIMIT", "25")
	t.Setenv("CHAT_DEDUP_TTL", "30s")
	t.Setenv("CHAT_SEND_COOLDOWN", "500ms")

	// News / standings
	t.Setenv("NEWS_CACHE_TTL", "10m")
	t.Setenv("STANDINGS_BASE_URL", "https://stats.example/api")

	// OTEL
	t.Setenv("OTEL_ENABLED", "1")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "otel:4317")
	t.Setenv("OTEL_EXPORTER_OTLP_INSECURE", "0")
	t.Setenv("OTEL_SERVICE_NAME", "svc")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.75")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	// Server
	if cfg.Port != "8088" ||
		cfg.ReadTimeout != 2*time.Second ||
		cfg.ReadHeaderTimeout != 1*time.Second ||
		cfg.WriteTimeout != 3*time.Second ||
		cfg.IdleTimeout != 4*time.Second ||
		cfg.MaxHeaderBytes != 8192 ||
		cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}

	// Logging
	if cfg.LogLevel != "warn" || !cfg.LogPretty || cfg.APIBasePath != "/api/v1" {
		t.Fatalf("logging fields unexpected: %+v", cfg)
	}

	// App
	if cfg.DBPath != "db.sqlite" || cfg.RedisAddr != "localhost:6379" {
		t.Fatalf("app fields unexpected: %+v", cfg)
	}

	// Rate limiting fallbacks
	if cfg.RateRPS != 5.0 || cfg.RateBurst != 10 {
		t.Fatalf("rate fields unexpected: rps=%v burst=%v", cfg.RateRPS, cfg.RateBurst)
	}

	// CORS trims and drops empties
	if want := []string{"https://a.com", "http://b"}; !reflect.DeepEqual(cfg.CORS.AllowedOrigins, want) {
		t.Fatalf("cors = %v; want %v", cfg.CORS.AllowedOrigins, want)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security fields unexpected: %+v", cfg.Security)
	}

	// Chat pipeline
	if cfg.Chat.HistoryLimit != 25 || cfg.Chat.DedupTTL != 30*time.Second || cfg.Chat.SendCooldown != 500*time.Millisecond {
		t.Fatalf("chat fields unexpected: %+v", cfg.Chat)
	}

	// News / standings
	if cfg.News.CacheTTL != 10*time.Minute || cfg.Standings.BaseURL != "https://stats.example/api" {
		t.Fatalf("feed fields unexpected: news=%+v standings=%+v", cfg.News, cfg.Standings)
	}

	// OTEL
	if !cfg.OTEL.Enabled || cfg.OTEL.Endpoint != "otel:4317" || cfg.OTEL.Insecure ||
		cfg.OTEL.ServiceName != "svc" || cfg.OTEL.SampleRatio != 0.75 {
		t.Fatalf("otel fields unexpected: %+v", cfg.OTEL)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() with defaults should succeed: %v", err)
	}
	if cfg.Chat.HistoryLimit != 50 {
		t.Errorf("history limit default = %d; want 50", cfg.Chat.HistoryLimit)
	}
	if cfg.Chat.DedupTTL != 10*time.Second {
		t.Errorf("dedup TTL default = %v; want 10s", cfg.Chat.DedupTTL)
	}
	if cfg.Chat.SendCooldown != time.Second {
		t.Errorf("send cooldown default = %v; want 1s", cfg.Chat.SendCooldown)
	}
	if cfg.News.MaxItems != 20 {
		t.Errorf("news max items default = %d; want 20", cfg.News.MaxItems)
	}
}

// --- Validation failures ---

func TestLoad_ValidationFailures(t *testing.T) {
	cases := []struct {
		name string
		k, v string
	}{
		{"bad log level", "LOG_LEVEL", "verbose"},
		{"zero read timeout", "READ_TIMEOUT", "0s"},
		{"negative rps", "RATE_RPS", "-1"},
		{"zero burst", "RATE_BURST", "0"},
		{"zero history", "CHAT_HISTORY_LIMIT", "0"},
		{"zero dedup ttl", "CHAT_DEDUP_TTL", "0s"},
		{"zero news ttl", "NEWS_CACHE_TTL", "0s"},
		{"sampler out of range", "OTEL_TRACES_SAMPLER_ARG", "1.5"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.k, tc.v)
			if _, err := Load(); err == nil {
				t.Fatalf("expected validation error for %s=%s", tc.k, tc.v)
			}
		})
	}
}

// --- helpers ---

func TestNormalizeBasePath(t *testing.T) {
	cases := map[string]string{
		"":         "/",
		"/":        "/",
		"api":      "/api",
		"/api/":    "/api",
		"api/v1/":  "/api/v1",
		"/api/v1":  "/api/v1",
		"  /x/  ":  "/x",
		"x/y/z///": "/x/y/z",
	}
	for in, want := range cases {
		if got := normalizeBasePath(in); got != want {
			t.Errorf("normalizeBasePath(%q) = %q; want %q", in, got, want)
		}
	}
}
