package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/sakif/gitpoints/internal/apperror"
	"github.com/sakif/gitpoints/internal/auth"
	"github.com/sakif/gitpoints/internal/service"
)

const stateCookie = "oauth_state"

// IdentityProvider runs the OAuth dance. *auth.GitHubProvider implements it.
type IdentityProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.Identity, error)
}

// LoginService records a completed login. *service.AuthService implements it.
type LoginService interface {
	Login(ctx context.Context, identity *auth.Identity) (*service.LoginResult, error)
}

var (
	_ IdentityProvider = (*auth.GitHubProvider)(nil)
	_ LoginService     = (*service.AuthService)(nil)
)

// AuthConfig holds the redirect targets and cookie settings.
type AuthConfig struct {
	SuccessURL    string
	FailureURL    string
	SessionTTL    time.Duration
	SecureCookies bool // set in production, requires HTTPS
}

// AuthHandler manages the GitHub OAuth login flow.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin    → redirect the browser to GitHub's authorization page
//   - HandleCallback → exchange the code, upsert the user, set the session
//     cookie, redirect to the frontend
//   - HandleLogout   → clear the session cookie
type AuthHandler struct {
	provider IdentityProvider
	logins   LoginService
	config   AuthConfig
	logger   *slog.Logger
}

func NewAuthHandler(provider IdentityProvider, logins LoginService, cfg AuthConfig, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		provider: provider,
		logins:   logins,
		config:   cfg,
		logger:   logger.With(slog.String("component", "auth_handler")),
	}
}

// knownProvider writes a 404 for anything but GitHub.
func (h *AuthHandler) knownProvider(w http.ResponseWriter, r *http.Request) bool {
	provider := chi.URLParam(r, "provider")
	if provider != auth.ProviderGitHub {
		writeError(w, r, h.logger, apperror.NotFound("identity provider", provider))
		return false
	}
	return true
}

// HandleLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/{provider}
//
// CSRF PROTECTION VIA STATE:
// A random state goes into a short-lived HttpOnly cookie and into the
// authorization URL. The callback only proceeds when both match.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if !h.knownProvider(w, r) {
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleCallback completes the OAuth login flow.
//
// HTTP: GET /auth/{provider}/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub identity
//  3. Upsert the user record and issue a session token
//  4. Set the session cookie and redirect to FRONTEND_URL?username=<login>
//
// Every failure redirects to the failure URL instead of rendering an error:
// the browser is mid-navigation and the frontend owns the error page.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if !h.knownProvider(w, r) {
		return
	}

	query := r.URL.Query()

	// --- Step 1: Validate CSRF state ---
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || query.Get("state") != cookie.Value {
		h.fail(w, r, "state mismatch or missing state cookie")
		return
	}

	// The state cookie is single-use.
	http.SetCookie(w, &http.Cookie{
		Name:   stateCookie,
		Value:  "",
		Path:   "/auth",
		MaxAge: -1,
	})

	if errParam := query.Get("error"); errParam != "" {
		h.fail(w, r, "provider returned "+errParam)
		return
	}
	code := query.Get("code")
	if code == "" {
		h.fail(w, r, "missing code")
		return
	}

	// --- Step 2: Exchange code for identity ---
	identity, err := h.provider.Exchange(r.Context(), code)
	if err != nil {
		h.fail(w, r, err.Error())
		return
	}

	// --- Step 3: Upsert + session ---
	result, err := h.logins.Login(r.Context(), identity)
	if err != nil {
		h.fail(w, r, err.Error())
		return
	}

	// --- Step 4: Cookie + redirect ---
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    result.SessionToken,
		Path:     "/",
		MaxAge:   int(h.config.SessionTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	target, err := withUsername(h.config.SuccessURL, result.Username)
	if err != nil {
		h.fail(w, r, err.Error())
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// HandleLogout clears the session cookie.
//
// HTTP: POST /auth/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "logged out"})
}

func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, reason string) {
	h.logger.Warn("auth callback failed", slog.String("reason", reason))
	http.Redirect(w, r, h.config.FailureURL, http.StatusSeeOther)
}

// withUsername appends ?username=<name> to base, keeping any existing query.
func withUsername(base, username string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("username", username)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
