package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"MODE", "HTTP_ADDR", "DB_DRIVER", "TOKEN_TTL", "ENABLE_SIGNUP", "SESSION_RETENTION"} {
		t.Setenv(k, "")
	}
	cfg := FromEnv()
	if cfg.Mode != ModeOffline {
		t.Errorf("mode = %q, want offline", cfg.Mode)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("addr = %q", cfg.HTTPAddr)
	}
	if cfg.DBDriver != "sqlite" {
		t.Errorf("driver = %q", cfg.DBDriver)
	}
	if cfg.TokenTTL != 8*time.Hour {
		t.Errorf("ttl = %v", cfg.TokenTTL)
	}
	if !cfg.EnableSignup {
		t.Error("signup should default to enabled")
	}
	if cfg.SessionRetention != 10*time.Minute {
		t.Errorf("retention = %v", cfg.SessionRetention)
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("TOKEN_TTL", "90m")
	t.Setenv("ENABLE_SIGNUP", "no")
	t.Setenv("CORS_ORIGINS_ONLINE", " https://a.test , ,https://b.test")

	cfg := FromEnv()
	if cfg.Mode != ModeOnline {
		t.Fatalf("mode = %q", cfg.Mode)
	}
	if cfg.TokenTTL != 90*time.Minute {
		t.Errorf("ttl = %v", cfg.TokenTTL)
	}
	if cfg.EnableSignup {
		t.Error("signup should be disabled")
	}
	want := []string{"https://a.test", "https://b.test"}
	if got := cfg.CORSOrigins(); !reflect.DeepEqual(got, want) {
		t.Errorf("origins = %v, want %v", got, want)
	}
}

func TestBadDurationFallsBack(t *testing.T) {
	t.Setenv("SESSION_RETENTION", "soon")
	if got := FromEnv().SessionRetention; got != 10*time.Minute {
		t.Errorf("retention = %v", got)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	os.Unsetenv("HTTP_ADDR")
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("HTTP_ADDR=:9191\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("HTTP_ADDR") })

	if got := Load(path).HTTPAddr; got != ":9191" {
		t.Errorf("addr = %q, want :9191", got)
	}
}
