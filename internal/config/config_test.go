package config

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/jjoniel/secretsanta/internal/matcher"
)

var keys = []string{
	"PORT", "DATABASE_TYPE", "DATABASE_URL", "JWT_SECRET", "JWT_TTL", "CORS_ORIGINS",
	"HISTORY_POLICY", "HISTORY_YEARS", "MATCH_ATTEMPTS", "NOTIFIER", "NOTIFY_WORKERS",
	"NOTIFY_TIMEOUT", "SMTP_HOST", "SMTP_PORT", "SMTP_USERNAME", "SMTP_PASSWORD", "SMTP_FROM",
	"LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv blanks every setting so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
	}
}

func noEnvFile(t *testing.T) string {
	return "-env=" + filepath.Join(t.TempDir(), "missing.env")
}

func TestParse_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Parse([]string{noEnvFile(t)})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 8000 {
		t.Errorf("expected port 8000, got %d", cfg.Port)
	}
	if cfg.DatabaseType != "sqlite" || cfg.DatabaseURL != "./data/secretsanta.db" {
		t.Errorf("unexpected database settings: %s %s", cfg.DatabaseType, cfg.DatabaseURL)
	}
	if cfg.JWTTTL != 30*time.Minute {
		t.Errorf("expected 30m token lifetime, got %v", cfg.JWTTTL)
	}
	if !slices.Equal(cfg.CORSOrigins, []string{"http://localhost:3000", "http://localhost:5173"}) {
		t.Errorf("unexpected CORS origins: %v", cfg.CORSOrigins)
	}
	if cfg.HistoryPolicy != matcher.HistoryStrict || cfg.HistoryYears != 0 || cfg.MatchAttempts != 3 {
		t.Errorf("unexpected engine settings: %+v", cfg)
	}
	if cfg.Notifier != "log" || cfg.NotifyWorkers != 4 || cfg.NotifyTimeout != 10*time.Second {
		t.Errorf("unexpected notifier settings: %+v", cfg)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("unexpected log settings: %s %s", cfg.LogLevel, cfg.LogFormat)
	}
}

func TestParse_EnvVars(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("DATABASE_TYPE", "postgres")
	t.Setenv("DATABASE_URL", "postgres://test")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("HISTORY_POLICY", "relaxed")
	t.Setenv("HISTORY_YEARS", "2")
	t.Setenv("CORS_ORIGINS", " https://santa.example , ")

	cfg, err := Parse([]string{noEnvFile(t)})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.Port != 9000 || cfg.DatabaseType != "postgres" || cfg.DatabaseURL != "postgres://test" {
		t.Errorf("unexpected settings: %+v", cfg)
	}
	if cfg.JWTTTL != 2*time.Hour {
		t.Errorf("expected 2h, got %v", cfg.JWTTTL)
	}
	if cfg.HistoryPolicy != matcher.HistoryRelaxed || cfg.HistoryYears != 2 {
		t.Errorf("unexpected history settings: %v %d", cfg.HistoryPolicy, cfg.HistoryYears)
	}
	if !slices.Equal(cfg.CORSOrigins, []string{"https://santa.example"}) {
		t.Errorf("unexpected CORS origins: %v", cfg.CORSOrigins)
	}
}

func TestParse_CLIOverridesEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9000")
	t.Setenv("JWT_SECRET", "env-secret")

	cfg, err := Parse([]string{noEnvFile(t), "-p", "8080", "-d", "test.db", "-jwt-secret", "cli-secret"})
	if err != nil {
		t.Fatal(err)
	}

	// CLI should override env
	if cfg.Port != 8080 {
		t.Errorf("CLI should override env: expected 8080, got %d", cfg.Port)
	}
	if cfg.DatabaseURL != "test.db" || cfg.JWTSecret != "cli-secret" {
		t.Errorf("unexpected settings: %+v", cfg)
	}
}

func TestParse_EnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("JWT_SECRET")
	os.Unsetenv("MATCH_ATTEMPTS")
	t.Cleanup(func() {
		os.Unsetenv("JWT_SECRET")
		os.Unsetenv("MATCH_ATTEMPTS")
	})
	t.Setenv("PORT", "7000")

	path := filepath.Join(t.TempDir(), ".env")
	content := "JWT_SECRET=from-file\nMATCH_ATTEMPTS=5\nPORT=1234\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Parse([]string{"-env", path})
	if err != nil {
		t.Fatal(err)
	}

	if cfg.JWTSecret != "from-file" || cfg.MatchAttempts != 5 {
		t.Errorf("expected values from the file, got %+v", cfg)
	}
	if cfg.Port != 7000 {
		t.Errorf("the environment should win over the file: expected 7000, got %d", cfg.Port)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{"JWT_SECRET": ""}},
		{"bad port", map[string]string{"PORT": "eighty"}},
		{"port out of range", map[string]string{"PORT": "70000"}},
		{"unknown database", map[string]string{"DATABASE_TYPE": "mongo"}},
		{"postgres without url", map[string]string{"DATABASE_TYPE": "postgres"}},
		{"bad policy", map[string]string{"HISTORY_POLICY": "sometimes"}},
		{"negative window", map[string]string{"HISTORY_YEARS": "-1"}},
		{"zero attempts", map[string]string{"MATCH_ATTEMPTS": "0"}},
		{"bad ttl", map[string]string{"JWT_TTL": "soon"}},
		{"unknown notifier", map[string]string{"NOTIFIER": "pigeon"}},
		{"smtp without host", map[string]string{"NOTIFIER": "smtp", "SMTP_FROM": "santa@example.com"}},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("JWT_SECRET", "secret")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Parse([]string{noEnvFile(t)}); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestParse_SMTP(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("NOTIFIER", "smtp")
	t.Setenv("SMTP_HOST", "smtp.example.com")
	t.Setenv("SMTP_USERNAME", "santa@example.com")

	cfg, err := Parse([]string{noEnvFile(t)})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.SMTP.Port != 587 || cfg.SMTP.From != "santa@example.com" {
		t.Errorf("unexpected SMTP settings: %+v", cfg.SMTP)
	}
}
