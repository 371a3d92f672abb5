package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"BEACON_API_URL", "BEACON_TOKEN", "BEACON_APP_ORIGIN", "BEACON_APP_NAME",
		"BEACON_LISTEN_ADDR", "BEACON_PUBLIC_URL", "BEACON_ENV", "BEACON_LOG_LEVEL",
		"BEACON_HTTP_TIMEOUT", "BEACON_NO_RECEIVER",
	} {
		t.Setenv(k, "")
	}
	t.Setenv("BEACON_STATE_DIR", "/tmp/beacon-test")

	cfg := Load()
	if cfg.APIURL != "http://localhost:8000/api" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if cfg.AppOrigin != "http://localhost:5173" {
		t.Errorf("AppOrigin = %q", cfg.AppOrigin)
	}
	if cfg.AppName != "Milena CRM" {
		t.Errorf("AppName = %q", cfg.AppName)
	}
	if cfg.Env != "development" || cfg.LogLevel != "info" {
		t.Errorf("Env/LogLevel = %q/%q", cfg.Env, cfg.LogLevel)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
	if cfg.NoReceiver {
		t.Error("NoReceiver should default to false")
	}
	if got := cfg.PublicBase(); got != "http://127.0.0.1:8765" {
		t.Errorf("PublicBase() = %q", got)
	}
	if got := cfg.TokenPath(); got != filepath.Join("/tmp/beacon-test", "token") {
		t.Errorf("TokenPath() = %q", got)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("BEACON_API_URL", "https://crm.example.org/api")
	t.Setenv("BEACON_PUBLIC_URL", "https://push.example.org/")
	t.Setenv("BEACON_HTTP_TIMEOUT", "5s")
	t.Setenv("BEACON_NO_RECEIVER", "true")

	cfg := Load()
	if cfg.APIURL != "https://crm.example.org/api" {
		t.Errorf("APIURL = %q", cfg.APIURL)
	}
	if got := cfg.PublicBase(); got != "https://push.example.org" {
		t.Errorf("PublicBase() = %q", got)
	}
	if cfg.HTTPTimeout != 5*time.Second {
		t.Errorf("HTTPTimeout = %v", cfg.HTTPTimeout)
	}
	if !cfg.NoReceiver {
		t.Error("NoReceiver should be true")
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	t.Setenv("BEACON_HTTP_TIMEOUT", "soon")
	t.Setenv("BEACON_NO_RECEIVER", "maybe")

	cfg := Load()
	if cfg.HTTPTimeout != 30*time.Second {
		t.Errorf("HTTPTimeout = %v, want fallback", cfg.HTTPTimeout)
	}
	if cfg.NoReceiver {
		t.Error("NoReceiver should fall back to false")
	}
}

func TestTokenPrecedence(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{StateDir: dir}

	cfg.ResolveToken()
	if cfg.Token != "" {
		t.Fatalf("Token = %q, want empty without file", cfg.Token)
	}

	if err := cfg.SaveToken("file-token"); err != nil {
		t.Fatalf("SaveToken: %v", err)
	}
	info, err := os.Stat(cfg.TokenPath())
	if err != nil {
		t.Fatalf("stat token: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("token mode = %v, want 0600", info.Mode().Perm())
	}

	fromFile := Config{StateDir: dir}
	fromFile.ResolveToken()
	if fromFile.Token != "file-token" {
		t.Errorf("Token = %q, want file-token", fromFile.Token)
	}

	fromEnv := Config{StateDir: dir, Token: "env-token"}
	fromEnv.ResolveToken()
	if fromEnv.Token != "env-token" {
		t.Errorf("Token = %q, env must win over file", fromEnv.Token)
	}
}

func TestRemoveToken(t *testing.T) {
	cfg := Config{StateDir: t.TempDir()}

	removed, err := cfg.RemoveToken()
	if err != nil || removed {
		t.Fatalf("RemoveToken() = %v, %v; want false, nil", removed, err)
	}
	if err := cfg.SaveToken("tok"); err != nil {
		t.Fatal(err)
	}
	removed, err = cfg.RemoveToken()
	if err != nil || !removed {
		t.Fatalf("RemoveToken() = %v, %v; want true, nil", removed, err)
	}
}
