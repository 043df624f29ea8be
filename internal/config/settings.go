package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Settings is the typed view of everything the server reads at startup.
type Settings struct {
	Addr string

	StoreDriver string
	TasksFile   string
	SQLitePath  string

	AuthStrategy  string
	TokensFile    string
	AuthRedirect  string
	AuthAllowOpen bool
	SessionSecret string

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string

	CORSOrigins []string

	LogLevel  string
	LogFormat string

	RateLimitRPS   float64
	RateLimitBurst int

	OTelExporter    string
	ShutdownTimeout time.Duration
}

var ErrInvalidSetting = errors.New("invalid setting")

// Load resolves Settings through l, applying defaults for unset keys.
func Load(l *Loader) (Settings, error) {
	s := Settings{
		Addr:               l.Get("addr", ":8080"),
		StoreDriver:        strings.ToLower(l.Get("storeDriver", "file")),
		TasksFile:          l.Get("tasksFile", "src/lista-de-tarefas.json"),
		SQLitePath:         l.Get("sqlitePath", "data/tarefas.db"),
		AuthStrategy:       strings.ToLower(l.Get("authStrategy", "none")),
		TokensFile:         l.Get("tokensFile", "api/tokens.json"),
		AuthRedirect:       l.Get("authRedirect", "/"),
		SessionSecret:      l.Get("sessionSecret", ""),
		GitHubClientID:     l.Get("githubClientID", ""),
		GitHubClientSecret: l.Get("githubClientSecret", ""),
		GitHubCallbackURL:  l.Get("githubCallbackURL", ""),
		CORSOrigins:        splitList(l.Get("corsOrigin", "*")),
		LogLevel:           strings.ToLower(l.Get("logLevel", "info")),
		LogFormat:          strings.ToLower(l.Get("logFormat", "json")),
		OTelExporter:       strings.ToLower(l.Get("otelExporter", "none")),
	}

	var err error
	if s.AuthAllowOpen, err = parseBool(l, "authAllowOpen", false); err != nil {
		return Settings{}, err
	}
	if s.RateLimitRPS, err = parseFloat(l, "rateLimitRPS", 0); err != nil {
		return Settings{}, err
	}
	if s.RateLimitBurst, err = parseInt(l, "rateLimitBurst", 20); err != nil {
		return Settings{}, err
	}
	if s.ShutdownTimeout, err = parseDuration(l, "shutdownTimeout", 10*time.Second); err != nil {
		return Settings{}, err
	}

	checks := []struct {
		key, value string
		allowed    []string
	}{
		{"storeDriver", s.StoreDriver, []string{"file", "sqlite", "memory"}},
		{"authStrategy", s.AuthStrategy, []string{"none", "token", "github"}},
		{"logFormat", s.LogFormat, []string{"json", "text"}},
		{"otelExporter", s.OTelExporter, []string{"none", "stdout", "otlp"}},
	}
	for _, c := range checks {
		if !contains(c.allowed, c.value) {
			return Settings{}, fmt.Errorf("%w: %s=%q (want one of %s)", ErrInvalidSetting, c.key, c.value, strings.Join(c.allowed, ", "))
		}
	}
	return s, nil
}

func parseBool(l *Loader, key string, fallback bool) (bool, error) {
	raw, ok := l.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	v, err := strconv.ParseBool(strings.TrimSpace(raw))
	if err != nil {
		return false, fmt.Errorf("%w: %s=%q: %w", ErrInvalidSetting, key, raw, err)
	}
	return v, nil
}

func parseFloat(l *Loader, key string, fallback float64) (float64, error) {
	raw, ok := l.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q: %w", ErrInvalidSetting, key, raw, err)
	}
	return v, nil
}

func parseInt(l *Loader, key string, fallback int) (int, error) {
	raw, ok := l.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q: %w", ErrInvalidSetting, key, raw, err)
	}
	return v, nil
}

func parseDuration(l *Loader, key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := l.Lookup(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return fallback, nil
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q: %w", ErrInvalidSetting, key, raw, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
