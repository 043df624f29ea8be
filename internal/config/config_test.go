package config

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func fakeEnv(vars map[string]string) LoaderOption {
	return WithLookupEnv(func(k string) (string, bool) {
		v, ok := vars[k]
		return v, ok
	})
}

func writeFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLookup_Precedence(t *testing.T) {
	path := writeFile(t, "env.json", `{"sessionSecret": "from-file", "corsOrigin": "https://file.example", "authRedirect": "/file"}`)
	l := NewLoader(path, quietLogger(), fakeEnv(map[string]string{
		"sessionSecret":  "exact",
		"SESSION_SECRET": "snake",
		"CORS_ORIGIN":    "https://env.example",
	}))

	cases := []struct {
		key, want string
	}{
		{"sessionSecret", "exact"},
		{"corsOrigin", "https://env.example"},
		{"authRedirect", "/file"},
	}
	for _, tc := range cases {
		got, ok := l.Lookup(tc.key)
		if !ok || got != tc.want {
			t.Errorf("Lookup(%q) = %q, %v; want %q", tc.key, got, ok, tc.want)
		}
	}

	if _, ok := l.Lookup("githubClientID"); ok {
		t.Errorf("expected undefined key to report false")
	}
}

func TestLookup_FileFormats(t *testing.T) {
	cases := map[string]string{
		"env.jsonc": "{\n  // comment\n  \"githubClientID\": \"abc\",\n  \"rateLimitRPS\": 2.5,\n}",
		"env.toml":  "githubClientID = \"abc\"\nrateLimitRPS = 2.5\n",
		"env.yaml":  "githubClientID: abc\nrateLimitRPS: 2.5\n",
	}

	for name, contents := range cases {
		t.Run(name, func(t *testing.T) {
			l := NewLoader(writeFile(t, name, contents), quietLogger(), fakeEnv(nil))
			if got := l.Get("githubClientID", ""); got != "abc" {
				t.Errorf("githubClientID = %q", got)
			}
			if got := l.Get("rateLimitRPS", ""); got != "2.5" {
				t.Errorf("rateLimitRPS = %q", got)
			}
		})
	}
}

func TestNewLoader_BadFileIsLoggedNotFatal(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	l := NewLoader(writeFile(t, "env.json", `{not json`), logger, fakeEnv(map[string]string{"authRedirect": "/x"}))
	if got := l.Get("authRedirect", ""); got != "/x" {
		t.Errorf("env should still resolve, got %q", got)
	}
	if !strings.Contains(buf.String(), "config_file_unreadable") {
		t.Errorf("expected a warning to be logged, got %q", buf.String())
	}

	buf.Reset()
	_ = NewLoader(filepath.Join(t.TempDir(), "missing.json"), logger, fakeEnv(nil))
	if !strings.Contains(buf.String(), "config_file_unreadable") {
		t.Errorf("expected missing file to be logged")
	}
}

func TestEnvName(t *testing.T) {
	cases := map[string]string{
		"sessionSecret":     "SESSION_SECRET",
		"githubClientID":    "GITHUB_CLIENT_ID",
		"githubCallbackURL": "GITHUB_CALLBACK_URL",
		"rateLimitRPS":      "RATE_LIMIT_RPS",
		"shutdownTimeout":   "SHUTDOWN_TIMEOUT",
		"addr":              "ADDR",
	}
	for in, want := range cases {
		if got := EnvName(in); got != want {
			t.Errorf("EnvName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestLoad_Defaults(t *testing.T) {
	s, err := Load(NewLoader("", quietLogger(), fakeEnv(nil)))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.Addr != ":8080" || s.StoreDriver != "file" || s.AuthStrategy != "none" {
		t.Errorf("unexpected defaults: %+v", s)
	}
	if s.TasksFile != "src/lista-de-tarefas.json" {
		t.Errorf("unexpected tasks file default %q", s.TasksFile)
	}
	if len(s.CORSOrigins) != 1 || s.CORSOrigins[0] != "*" {
		t.Errorf("unexpected CORS default %v", s.CORSOrigins)
	}
	if s.ShutdownTimeout != 10*time.Second || s.RateLimitBurst != 20 {
		t.Errorf("unexpected numeric defaults: %+v", s)
	}
}

func TestLoad_TypedValues(t *testing.T) {
	s, err := Load(NewLoader("", quietLogger(), fakeEnv(map[string]string{
		"AUTH_STRATEGY":    "GitHub",
		"AUTH_ALLOW_OPEN":  "true",
		"corsOrigin":       "https://a.example, https://b.example",
		"RATE_LIMIT_RPS":   "5",
		"SHUTDOWN_TIMEOUT": "3s",
	})))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if s.AuthStrategy != "github" || !s.AuthAllowOpen || s.RateLimitRPS != 5 || s.ShutdownTimeout != 3*time.Second {
		t.Errorf("unexpected settings: %+v", s)
	}
	if len(s.CORSOrigins) != 2 || s.CORSOrigins[1] != "https://b.example" {
		t.Errorf("unexpected origins: %v", s.CORSOrigins)
	}
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string]string{
		"STORE_DRIVER":    "postgres",
		"RATE_LIMIT_RPS":  "fast",
		"AUTH_STRATEGY":   "ldap",
		"AUTH_ALLOW_OPEN": "maybe",
	}
	for k, v := range cases {
		_, err := Load(NewLoader("", quietLogger(), fakeEnv(map[string]string{k: v})))
		if !errors.Is(err, ErrInvalidSetting) {
			t.Errorf("%s=%s: expected ErrInvalidSetting, got %v", k, v, err)
		}
	}
}

func TestLoadDotEnv_MissingIsFine(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("expected nil for missing file, got %v", err)
	}
}

func TestLoadDotEnv_DoesNotOverride(t *testing.T) {
	t.Setenv("TAREFAS_TEST_KEEP", "from-env")
	path := writeFile(t, ".env", "TAREFAS_TEST_KEEP=from-file\nTAREFAS_TEST_NEW=added\n")
	t.Cleanup(func() { _ = os.Unsetenv("TAREFAS_TEST_NEW") })

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("TAREFAS_TEST_KEEP"); got != "from-env" {
		t.Errorf("existing var overridden: %q", got)
	}
	if got := os.Getenv("TAREFAS_TEST_NEW"); got != "added" {
		t.Errorf("new var not loaded: %q", got)
	}
}
