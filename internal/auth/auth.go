// Package auth gates the task endpoints. Exactly one Strategy is active per
// deployment, chosen by configuration.
package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

const (
	StrategyNone   = "none"
	StrategyToken  = "token"
	StrategyGitHub = "github"
)

var ErrNotConfigured = errors.New("auth strategy not configured")

// Strategy authenticates requests to protected routes and may expose its
// own public routes (login callbacks and the like).
type Strategy interface {
	Name() string
	Middleware(next http.Handler) http.Handler
	RegisterRoutes(r chi.Router)
}

type Config struct {
	Strategy   string
	TokensFile string
	GitHub     GitHubConfig
}

// New builds the strategy named by cfg.Strategy.
func New(cfg Config, logger *slog.Logger) (Strategy, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Strategy {
	case "", StrategyNone:
		return None{}, nil
	case StrategyToken:
		if cfg.TokensFile == "" {
			return nil, fmt.Errorf("%w: token strategy needs tokensFile", ErrNotConfigured)
		}
		return NewTokenStrategy(cfg.TokensFile, logger), nil
	case StrategyGitHub:
		return NewGitHubStrategy(cfg.GitHub, logger)
	default:
		return nil, fmt.Errorf("unknown auth strategy %q", cfg.Strategy)
	}
}

// None lets every request through.
type None struct{}

func (None) Name() string                              { return StrategyNone }
func (None) Middleware(next http.Handler) http.Handler { return next }
func (None) RegisterRoutes(chi.Router)                 {}

type authErr struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(authErr{Error: msg})
}
