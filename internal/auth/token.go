package auth

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/tidwall/jsonc"
)

// TokenStrategy accepts "Authorization: Bearer <token>" when the token is in
// an allow-list file. The file is re-read on every request so edits apply
// without a restart.
type TokenStrategy struct {
	path   string
	logger *slog.Logger
}

func NewTokenStrategy(path string, logger *slog.Logger) *TokenStrategy {
	return &TokenStrategy{path: path, logger: logger}
}

func (s *TokenStrategy) Name() string              { return StrategyToken }
func (s *TokenStrategy) RegisterRoutes(chi.Router) {}

func (s *TokenStrategy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="tarefas"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		allowed, err := LoadTokens(s.path)
		if err != nil {
			s.logger.Error("auth_tokens_unreadable",
				slog.String("req_id", chimw.GetReqID(r.Context())),
				slog.String("path", s.path),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		if !containsToken(allowed, token) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// LoadTokens reads an allow-list: either a JSON array of strings or an
// object with a "tokens" array. Comments and trailing commas are accepted.
func LoadTokens(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	data = jsonc.ToJSON(data)

	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var doc struct {
		Tokens []string `json:"tokens"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return doc.Tokens, nil
}

func bearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(authz, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func containsToken(allowed []string, token string) bool {
	match := 0
	for _, a := range allowed {
		if a == "" {
			continue
		}
		match |= constantTimeEq(a, token)
	}
	return match == 1
}

func constantTimeEq(a, b string) int {
	if len(a) != len(b) {
		return 0
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b))
}
