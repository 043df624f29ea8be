package auth

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"
)

const (
	sessionCookie  = "tarefas_session"
	stateCookie    = "tarefas_oauth_state"
	defaultUserURL = "https://api.github.com/user"
)

type GitHubConfig struct {
	ClientID      string
	ClientSecret  string
	CallbackURL   string
	RedirectPath  string
	SessionSecret string
	// AllowOpen turns a missing client secret into an open gate instead of
	// a startup error.
	AllowOpen bool

	SessionTTL time.Duration
	// Endpoint and UserURL default to github.com.
	Endpoint oauth2.Endpoint
	UserURL  string
	Now      func() time.Time
}

// GitHubStrategy gates routes behind a GitHub login. The session lives in a
// signed cookie, so no server-side session table is needed.
type GitHubStrategy struct {
	oauth    *oauth2.Config
	sessions sessions
	redirect string
	userURL  string
	secure   bool
	logger   *slog.Logger
}

// NewGitHubStrategy validates cfg. Without a client secret it fails unless
// AllowOpen is set, in which case it returns None and logs a warning.
func NewGitHubStrategy(cfg GitHubConfig, logger *slog.Logger) (Strategy, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ClientSecret == "" {
		if cfg.AllowOpen {
			logger.Warn("auth_bypassed",
				slog.String("strategy", StrategyGitHub),
				slog.String("reason", "githubClientSecret not configured"),
			)
			return None{}, nil
		}
		return nil, fmt.Errorf("%w: githubClientSecret is empty", ErrNotConfigured)
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("%w: githubClientID is empty", ErrNotConfigured)
	}
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("%w: sessionSecret is empty", ErrNotConfigured)
	}

	endpoint := cfg.Endpoint
	if endpoint.AuthURL == "" {
		endpoint = github.Endpoint
	}
	userURL := cfg.UserURL
	if userURL == "" {
		userURL = defaultUserURL
	}
	redirect := cfg.RedirectPath
	if redirect == "" {
		redirect = "/"
	}
	ttl := cfg.SessionTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &GitHubStrategy{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     endpoint,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       []string{"read:user"},
		},
		sessions: sessions{key: []byte(cfg.SessionSecret), ttl: ttl, now: now},
		redirect: redirect,
		userURL:  userURL,
		secure:   strings.HasPrefix(cfg.CallbackURL, "https://"),
		logger:   logger,
	}, nil
}

func (s *GitHubStrategy) Name() string { return StrategyGitHub }

func (s *GitHubStrategy) RegisterRoutes(r chi.Router) {
	r.Get("/auth/github", s.login)
	r.Get("/auth/github/callback", s.callback)
	r.Post("/auth/logout", s.logout)
	r.With(s.Middleware).Get("/auth/me", s.me)
}

func (s *GitHubStrategy) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		u, err := s.sessions.verify(c.Value)
		if err != nil {
			s.logger.Debug("auth_session_rejected", slog.String("error", err.Error()))
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), u)))
	})
}

func (s *GitHubStrategy) login(w http.ResponseWriter, r *http.Request) {
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth/github",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, s.oauth.AuthCodeURL(state), http.StatusFound)
}

func (s *GitHubStrategy) callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c, err := r.Cookie(stateCookie)
	if err != nil || q.Get("state") == "" ||
		subtle.ConstantTimeCompare([]byte(c.Value), []byte(q.Get("state"))) != 1 {
		writeError(w, http.StatusBadRequest, "invalid oauth state")
		return
	}
	code := q.Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing oauth code")
		return
	}
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Path: "/auth/github", MaxAge: -1})

	tok, err := s.oauth.Exchange(r.Context(), code)
	if err != nil {
		s.logger.Error("auth_exchange_failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "oauth exchange failed")
		return
	}
	u, err := s.fetchUser(r.Context(), tok)
	if err != nil {
		s.logger.Error("auth_user_fetch_failed", slog.String("error", err.Error()))
		writeError(w, http.StatusBadGateway, "unable to load github user")
		return
	}

	raw, err := s.sessions.issue(u)
	if err != nil {
		s.logger.Error("auth_session_sign_failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    raw,
		Path:     "/",
		MaxAge:   int(s.sessions.ttl.Seconds()),
		HttpOnly: true,
		Secure:   s.secure,
		SameSite: http.SameSiteLaxMode,
	})
	s.logger.Info("auth_login", slog.String("login", u.Login), slog.Int64("user_id", u.ID))
	http.Redirect(w, r, s.redirect, http.StatusFound)
}

// logout is POST only. The session cookie is SameSite=Lax, so a cross-site
// form post arrives without it and a link or image cannot end the session.
func (s *GitHubStrategy) logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Path: "/", MaxAge: -1, HttpOnly: true, SameSite: http.SameSiteLaxMode})
	http.Redirect(w, r, s.redirect, http.StatusSeeOther)
}

func (s *GitHubStrategy) me(w http.ResponseWriter, r *http.Request) {
	u, _ := UserFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(u)
}

func (s *GitHubStrategy) fetchUser(ctx context.Context, tok *oauth2.Token) (User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.userURL, nil)
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := s.oauth.Client(ctx, tok).Do(req)
	if err != nil {
		return User{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return User{}, fmt.Errorf("github user: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var u User
	if err := json.NewDecoder(resp.Body).Decode(&u); err != nil {
		return User{}, fmt.Errorf("github user: %w", err)
	}
	if u.ID == 0 || u.Login == "" {
		return User{}, fmt.Errorf("github user: incomplete profile")
	}
	return u, nil
}
