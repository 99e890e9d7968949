package config

import (
	"strings"
	"testing"
)

// clearServerEnv blanks every variable ServerFromEnv reads so a test's
// own environment can't leak in.
func clearServerEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "DB_PATH", "JWT_SECRET",
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_CALLBACK_URL",
		"GENERATOR", "GEMINI_API_KEY", "OPENAI_API_KEY", "GENERATE_WORKERS",
	} {
		t.Setenv(key, "")
	}
}

func TestServerFromEnv(t *testing.T) {
	clearServerEnv(t)
	t.Setenv("JWT_SECRET", "a-secret-long-enough-to-sign-with")
	t.Setenv("GENERATOR", "mock")

	cfg, err := ServerFromEnv()
	if err != nil {
		t.Fatalf("ServerFromEnv() error = %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("default Port = %d, want 8080", cfg.Port)
	}
	if cfg.GenerateWorkers != 4 {
		t.Errorf("default GenerateWorkers = %d, want 4", cfg.GenerateWorkers)
	}
	if !strings.Contains(cfg.GoogleCallbackURL, "/auth/google/callback") {
		t.Errorf("derived callback URL = %q", cfg.GoogleCallbackURL)
	}
}

func TestServerFromEnv_Validation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing JWT_SECRET", map[string]string{"GENERATOR": "mock"}},
		{"bad PORT", map[string]string{
			"JWT_SECRET": "a-secret-long-enough-to-sign-with",
			"GENERATOR":  "mock",
			"PORT":       "not-a-number",
		}},
		{"gemini without key", map[string]string{
			"JWT_SECRET": "a-secret-long-enough-to-sign-with",
			"GENERATOR":  "gemini",
		}},
		{"openai without key", map[string]string{
			"JWT_SECRET": "a-secret-long-enough-to-sign-with",
			"GENERATOR":  "openai",
		}},
		{"unknown generator", map[string]string{
			"JWT_SECRET": "a-secret-long-enough-to-sign-with",
			"GENERATOR":  "llamafile",
		}},
		{"non-positive workers", map[string]string{
			"JWT_SECRET":       "a-secret-long-enough-to-sign-with",
			"GENERATOR":        "mock",
			"GENERATE_WORKERS": "0",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearServerEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := ServerFromEnv(); err == nil {
				t.Error("ServerFromEnv() succeeded, want error")
			}
		})
	}
}

func TestClientFromEnv(t *testing.T) {
	t.Setenv("NUTRILOG_SERVER", "")
	t.Setenv("NUTRILOG_TOKEN", "")

	cfg, err := ClientFromEnv()
	if err != nil {
		t.Fatalf("ClientFromEnv() error = %v", err)
	}
	if cfg.ServerURL != "http://localhost:8080" {
		t.Errorf("default ServerURL = %q", cfg.ServerURL)
	}

	t.Setenv("NUTRILOG_SERVER", "https://api.example.com")
	t.Setenv("NUTRILOG_TOKEN", "tok")

	cfg, err = ClientFromEnv()
	if err != nil {
		t.Fatalf("ClientFromEnv() error = %v", err)
	}
	if cfg.ServerURL != "https://api.example.com" || cfg.Token != "tok" {
		t.Errorf("cfg = %+v", cfg)
	}
}
