// Package config resolves named settings from the process environment and
// an optional config file, environment first.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/iancoleman/strcase"
	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Loader looks settings up by name. The file is read once, on construction.
type Loader struct {
	path   string
	file   map[string]any
	getenv func(string) (string, bool)
}

type LoaderOption func(*Loader)

// WithLookupEnv replaces os.LookupEnv, mostly for tests.
func WithLookupEnv(fn func(string) (string, bool)) LoaderOption {
	return func(l *Loader) { l.getenv = fn }
}

// NewLoader reads path as a config file. A missing or malformed file is
// logged and treated as empty; it never fails the caller.
func NewLoader(path string, logger *slog.Logger, opts ...LoaderOption) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{path: path, file: map[string]any{}, getenv: os.LookupEnv}
	for _, opt := range opts {
		opt(l)
	}
	if path == "" {
		return l
	}

	values, err := readFile(path)
	if err != nil {
		logger.Warn("config_file_unreadable",
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return l
	}
	l.file = values
	return l
}

// LoadDotEnv copies variables from a .env file into the environment without
// overriding variables that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

// Lookup resolves key from the environment (exact name, then its
// SCREAMING_SNAKE form) and then the config file.
func (l *Loader) Lookup(key string) (string, bool) {
	if v, ok := l.getenv(key); ok {
		return v, true
	}
	if v, ok := l.getenv(EnvName(key)); ok {
		return v, true
	}
	raw, ok := l.file[key]
	if !ok || raw == nil {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		return v, true
	case []any:
		parts := make([]string, 0, len(v))
		for _, p := range v {
			parts = append(parts, fmt.Sprint(p))
		}
		return strings.Join(parts, ","), true
	default:
		return fmt.Sprint(v), true
	}
}

// Get is Lookup with a fallback.
func (l *Loader) Get(key, fallback string) string {
	if v, ok := l.Lookup(key); ok {
		return v
	}
	return fallback
}

// EnvName converts a camelCase key to its environment form:
// githubClientID -> GITHUB_CLIENT_ID.
func EnvName(key string) string {
	return strcase.ToScreamingSnake(key)
}

func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	values := map[string]any{}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.Decode(string(data), &values); err != nil {
			return nil, fmt.Errorf("parsing toml: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
	default:
		if err := json.Unmarshal(jsonc.ToJSON(data), &values); err != nil {
			return nil, fmt.Errorf("parsing json: %w", err)
		}
	}
	return values, nil
}
