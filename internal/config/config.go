// Package config resolves server settings from flags, the environment and
// an optional .env file, in that order of precedence.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/jjoniel/secretsanta/internal/matcher"
	"github.com/jjoniel/secretsanta/internal/notify"
)

type Config struct {
	Port         int
	DatabaseType string
	DatabaseURL  string

	JWTSecret string
	JWTTTL    time.Duration

	CORSOrigins []string

	HistoryPolicy matcher.HistoryPolicy
	HistoryYears  int
	MatchAttempts int

	// Notifier is "log" or "smtp".
	Notifier      string
	SMTP          notify.SMTPConfig
	NotifyWorkers int
	NotifyTimeout time.Duration

	LogLevel  string
	LogFormat string
}

// Parse validates flags and fills everything else from the environment.
func Parse(args []string) (Config, error) {
	var (
		cfg     Config
		envFile string
	)

	fs := flag.NewFlagSet("secretsanta", flag.ContinueOnError)

	fs.StringVar(&envFile, "env", ".env", "Path to an optional .env file")
	fs.IntVar(&cfg.Port, "p", 0, "Server port")
	fs.StringVar(&cfg.DatabaseType, "t", "", "Database type (sqlite or postgres)")
	fs.StringVar(&cfg.DatabaseURL, "d", "", "Database URL or SQLite path")

	// Secrets (prefer env variables, but allow CLI for dev)
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", "", "JWT signing secret (prefer env)")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	// Existing environment variables win over the file.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	if cfg.Port == 0 {
		port, err := envInt("PORT", 8000)
		if err != nil {
			return Config{}, err
		}
		cfg.Port = port
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}

	if cfg.DatabaseType == "" {
		cfg.DatabaseType = envString("DATABASE_TYPE", "sqlite")
	}
	cfg.DatabaseType = strings.ToLower(cfg.DatabaseType)
	if cfg.DatabaseType != "sqlite" && cfg.DatabaseType != "postgres" {
		return Config{}, fmt.Errorf("invalid DATABASE_TYPE %q (want sqlite or postgres)", cfg.DatabaseType)
	}
	if cfg.DatabaseURL == "" {
		fallback := ""
		if cfg.DatabaseType == "sqlite" {
			fallback = "./data/secretsanta.db"
		}
		cfg.DatabaseURL = envString("DATABASE_URL", fallback)
	}
	if cfg.DatabaseURL == "" {
		return Config{}, errors.New("database URL required (use -d or DATABASE_URL env)")
	}

	// Secrets - MUST be provided
	if cfg.JWTSecret == "" {
		cfg.JWTSecret = os.Getenv("JWT_SECRET")
	}
	if cfg.JWTSecret == "" {
		return Config{}, errors.New("JWT_SECRET required")
	}

	var err error
	if cfg.JWTTTL, err = envDuration("JWT_TTL", 30*time.Minute); err != nil {
		return Config{}, err
	}

	cfg.CORSOrigins = splitList(envString("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173"))

	if cfg.HistoryPolicy, err = matcher.ParsePolicy(os.Getenv("HISTORY_POLICY")); err != nil {
		return Config{}, fmt.Errorf("invalid HISTORY_POLICY: %w", err)
	}
	if cfg.HistoryYears, err = envInt("HISTORY_YEARS", 0); err != nil {
		return Config{}, err
	}
	if cfg.HistoryYears < 0 {
		return Config{}, errors.New("HISTORY_YEARS must not be negative")
	}
	if cfg.MatchAttempts, err = envInt("MATCH_ATTEMPTS", 3); err != nil {
		return Config{}, err
	}
	if cfg.MatchAttempts < 1 {
		return Config{}, errors.New("MATCH_ATTEMPTS must be at least 1")
	}

	if err := cfg.parseNotifier(); err != nil {
		return Config{}, err
	}

	cfg.LogLevel = strings.ToLower(envString("LOG_LEVEL", "info"))
	cfg.LogFormat = strings.ToLower(envString("LOG_FORMAT", "text"))
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return Config{}, fmt.Errorf("invalid LOG_FORMAT %q (want text or json)", cfg.LogFormat)
	}

	return cfg, nil
}

func (cfg *Config) parseNotifier() error {
	var err error

	cfg.Notifier = strings.ToLower(envString("NOTIFIER", "log"))
	if cfg.NotifyWorkers, err = envInt("NOTIFY_WORKERS", 4); err != nil {
		return err
	}
	if cfg.NotifyWorkers < 1 {
		return errors.New("NOTIFY_WORKERS must be at least 1")
	}
	if cfg.NotifyTimeout, err = envDuration("NOTIFY_TIMEOUT", 10*time.Second); err != nil {
		return err
	}

	switch cfg.Notifier {
	case "log":
		return nil
	case "smtp":
	default:
		return fmt.Errorf("invalid NOTIFIER %q (want log or smtp)", cfg.Notifier)
	}

	cfg.SMTP = notify.SMTPConfig{
		Host:     os.Getenv("SMTP_HOST"),
		Username: os.Getenv("SMTP_USERNAME"),
		Password: os.Getenv("SMTP_PASSWORD"),
		From:     os.Getenv("SMTP_FROM"),
	}
	if cfg.SMTP.Port, err = envInt("SMTP_PORT", 587); err != nil {
		return err
	}
	if cfg.SMTP.From == "" {
		cfg.SMTP.From = cfg.SMTP.Username
	}
	if cfg.SMTP.Host == "" || cfg.SMTP.From == "" {
		return errors.New("SMTP_HOST and SMTP_FROM (or SMTP_USERNAME) required when NOTIFIER=smtp")
	}
	return nil
}

func envString(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s env variable", key)
	}
	return n, nil
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s env variable", key)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
