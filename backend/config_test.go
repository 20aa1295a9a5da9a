package backend

import (
	"testing"
)

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.YtdlpPath != "yt-dlp" {
		t.Errorf("YtdlpPath = %q, want yt-dlp", cfg.YtdlpPath)
	}
	if cfg.TempDir == "" || cfg.DataDir == "" {
		t.Errorf("directories should have defaults: %+v", cfg)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadConfigWithEnv_Overrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("YTDLP_PATH", "/opt/bin/yt-dlp")
	t.Setenv("GOOGLE_CLIENT_ID", "env-client-id")

	cfg, err := LoadConfigWithEnv()
	if err != nil {
		t.Fatalf("LoadConfigWithEnv failed: %v", err)
	}

	if cfg.Port != "9999" {
		t.Errorf("Port = %q, env should win", cfg.Port)
	}
	if cfg.YtdlpPath != "/opt/bin/yt-dlp" {
		t.Errorf("YtdlpPath = %q, env should win", cfg.YtdlpPath)
	}
	if cfg.GoogleClientID != "env-client-id" {
		t.Errorf("GoogleClientID = %q, env should win", cfg.GoogleClientID)
	}
}

func TestLoadConfigWithEnv_EmptyEnvIgnored(t *testing.T) {
	t.Setenv("PORT", "")

	cfg, err := LoadConfigWithEnv()
	if err != nil {
		t.Fatalf("LoadConfigWithEnv failed: %v", err)
	}
	if cfg.Port == "" {
		t.Error("empty env var should not blank out the config value")
	}
}
