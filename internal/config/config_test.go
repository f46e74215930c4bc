package config

import (
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestMustLoad_PanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("DB_DRIVER", "mysql")
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustLoad should panic on invalid config")
		}
	}()
	_ = MustLoad()
}

// clearEnv blanks keys for the duration of the test; empty values read as unset.
func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t, "API_BASE_PATH", "DB_DRIVER", "DB_PATH", "DATABASE_URL",
		"IP_HASH_SECRET", "VOTE_RATE_PER_MINUTE", "REDIS_URL",
		"MAX_ROOMS_PER_CONN", "WS_ALLOWED_ORIGINS", "WS_WRITE_TIMEOUT", "WS_PING_INTERVAL", "WS_SEND_BUFFER",
		"OTEL_SERVICE_NAME", "LOG_LEVEL", "PORT", "TRUSTED_PROXIES")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.APIBasePath != "/api" {
		t.Fatalf("API base default = %q", cfg.APIBasePath)
	}
	if cfg.DB.Driver != "sqlite" || cfg.DB.Path != "polls.db" || cfg.DB.URL != "" {
		t.Fatalf("db defaults unexpected: %+v", cfg.DB)
	}
	if cfg.Vote.RatePerMinute != 20 || cfg.Vote.IPHashSecret != "" || cfg.Vote.RedisURL != "" {
		t.Fatalf("vote defaults unexpected: %+v", cfg.Vote)
	}
	rt := cfg.Realtime
	if rt.MaxRoomsPerConn != 50 || rt.WriteTimeout != 5*time.Second || rt.PingInterval != 30*time.Second || rt.SendBuffer != 16 || rt.AllowedOrigins != nil {
		t.Fatalf("realtime defaults unexpected: %+v", rt)
	}
	if cfg.OTEL.ServiceName != "go-live-polls" {
		t.Fatalf("service name default = %q", cfg.OTEL.ServiceName)
	}
	if cfg.TrustedProxies != nil {
		t.Fatalf("no proxy may be trusted by default, got %v", cfg.TrustedProxies)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "8088")
	t.Setenv("READ_TIMEOUT", "2s")
	t.Setenv("GIN_MODE", "weird") // normalizes to release
	t.Setenv("LOG_LEVEL", "warning")
	t.Setenv("LOG_PRETTY", "yes")
	t.Setenv("SWAGGER_ENABLED", "on")
	t.Setenv("API_BASE_PATH", "v2/api/")

	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://u:p@db:5432/polls")

	t.Setenv("IP_HASH_SECRET", "s3cret")
	t.Setenv("VOTE_RATE_PER_MINUTE", "5")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")

	t.Setenv("MAX_ROOMS_PER_CONN", "3")
	t.Setenv("WS_ALLOWED_ORIGINS", " example.com , , *.example.org ")
	t.Setenv("WS_WRITE_TIMEOUT", "2s")
	t.Setenv("WS_PING_INTERVAL", "15s")
	t.Setenv("WS_SEND_BUFFER", "4")

	t.Setenv("RATE_RPS", "x") // bad parse falls back to default
	t.Setenv("RATE_BURST", "7")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.com")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.25")
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 192.0.2.7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.Port != "8088" || cfg.ReadTimeout != 2*time.Second || cfg.GinMode != "release" {
		t.Fatalf("server fields unexpected: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/v2/api" {
		t.Fatalf("logging/docs unexpected: %+v", cfg)
	}
	if cfg.DB.Driver != "postgres" || cfg.DB.URL != "postgres://u:p@db:5432/polls" {
		t.Fatalf("db unexpected: %+v", cfg.DB)
	}
	if cfg.Vote.IPHashSecret != "s3cret" || cfg.Vote.RatePerMinute != 5 || cfg.Vote.RedisURL != "redis://cache:6379/0" {
		t.Fatalf("vote unexpected: %+v", cfg.Vote)
	}
	if !reflect.DeepEqual(cfg.Realtime.AllowedOrigins, []string{"example.com", "*.example.org"}) {
		t.Fatalf("ws origins unexpected: %#v", cfg.Realtime.AllowedOrigins)
	}
	if cfg.Realtime.MaxRoomsPerConn != 3 || cfg.Realtime.WriteTimeout != 2*time.Second ||
		cfg.Realtime.PingInterval != 15*time.Second || cfg.Realtime.SendBuffer != 4 {
		t.Fatalf("realtime unexpected: %+v", cfg.Realtime)
	}
	if cfg.RateRPS != 10.0 || cfg.RateBurst != 7 {
		t.Fatalf("rate limiting unexpected: rps=%v burst=%v", cfg.RateRPS, cfg.RateBurst)
	}
	if !reflect.DeepEqual(cfg.CORS.AllowedOrigins, []string{"https://a.com"}) || cfg.OTEL.SampleRatio != 0.25 {
		t.Fatalf("cors/otel unexpected: %+v %+v", cfg.CORS, cfg.OTEL)
	}
	if !reflect.DeepEqual(cfg.TrustedProxies, []string{"10.0.0.0/8", "192.0.2.7"}) {
		t.Fatalf("trusted proxies unexpected: %#v", cfg.TrustedProxies)
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"log level", map[string]string{"LOG_LEVEL": "verbose"}, "LOG_LEVEL"},
		{"blank port", map[string]string{"PORT": "   "}, "PORT must not be empty"},
		{"timeouts", map[string]string{"IDLE_TIMEOUT": "0s"}, "timeouts must be positive"},
		{"header bytes", map[string]string{"MAX_HEADER_BYTES": "0"}, "MAX_HEADER_BYTES"},
		{"driver", map[string]string{"DB_DRIVER": "mysql"}, "DB_DRIVER"},
		{"sqlite path", map[string]string{"DB_PATH": "  "}, "DB_PATH must not be empty"},
		{"postgres url", map[string]string{"DB_DRIVER": "postgres"}, "DATABASE_URL"},
		{"vote rate", map[string]string{"VOTE_RATE_PER_MINUTE": "0"}, "VOTE_RATE_PER_MINUTE"},
		{"rooms", map[string]string{"MAX_ROOMS_PER_CONN": "0"}, "MAX_ROOMS_PER_CONN"},
		{"ws timeout", map[string]string{"WS_WRITE_TIMEOUT": "-1s"}, "WS_WRITE_TIMEOUT"},
		{"ws buffer", map[string]string{"WS_SEND_BUFFER": "0"}, "WS_SEND_BUFFER"},
		{"rate rps", map[string]string{"RATE_RPS": "-1"}, "RATE_RPS"},
		{"rate burst", map[string]string{"RATE_BURST": "0"}, "RATE_BURST"},
		{"hsts", map[string]string{"HSTS_MAX_AGE": "-1s"}, "HSTS_MAX_AGE"},
		{"idempotency ttl", map[string]string{"IDEMPOTENCY_TTL": "0s"}, "IDEMPOTENCY_TTL"},
		{"trusted proxies", map[string]string{"TRUSTED_PROXIES": "10.0.0.0/8,proxy.local"}, "TRUSTED_PROXIES"},
		{"sample ratio", map[string]string{"OTEL_TRACES_SAMPLER_ARG": "1.5"}, "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestHelpers_ParseFallbacks(t *testing.T) {
	t.Setenv("X_EMPTY", "")
	if getenv("X_EMPTY", "d") != "d" {
		t.Fatalf("getenv should fall back to default on empty var")
	}
	t.Setenv("F_BAD", "nope")
	if getfloat("F_BAD", 1.5) != 1.5 {
		t.Fatalf("getfloat default on bad parse failed")
	}
	t.Setenv("I_OK", "42")
	if getint("I_OK", 0) != 42 {
		t.Fatalf("getint parse failed")
	}
	t.Setenv("D_OK", "150ms")
	if getdur("D_OK", time.Second) != 150*time.Millisecond {
		t.Fatalf("getdur parse failed")
	}
	t.Setenv("B_ON", " On ")
	t.Setenv("B_OFF", "n")
	t.Setenv("B_JUNK", "maybe")
	if !getbool("B_ON", false) || getbool("B_OFF", true) || !getbool("B_JUNK", true) {
		t.Fatalf("getbool behavior unexpected")
	}
}

func TestHelpers_splitCSV_and_normalizeBasePath(t *testing.T) {
	if out := splitCSV(""); out != nil {
		t.Fatalf("splitCSV empty should return nil")
	}
	if got := splitCSV(" a, ,b ,"); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("splitCSV mismatch: %#v", got)
	}
	for in, want := range map[string]string{"": "/", "api": "/api", "/api/": "/api", " / ": "/"} {
		if got := normalizeBasePath(in); got != want {
			t.Fatalf("normalizeBasePath(%q) = %q, want %q", in, got, want)
		}
	}
}
