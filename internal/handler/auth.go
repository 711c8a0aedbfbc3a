package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"
	"github.com/sakif/testimonial-board/internal/apperror"
	"github.com/sakif/testimonial-board/internal/auth"
	"github.com/sakif/testimonial-board/internal/service"
)

// AuthHandler manages registration, credentials sign-in, the OAuth flows,
// and session management.
//
//	POST /api/register              → create a credentials account
//	POST /api/login                 → credentials sign-in, sets session cookie
//	GET  /auth/{provider}/login     → redirect to the provider's consent page
//	GET  /auth/{provider}/callback  → complete the OAuth flow, sets cookie
//	POST /auth/logout               → clear the session cookie
//	GET  /api/me                    → current user's profile
type AuthHandler struct {
	service   *service.AuthService
	providers map[string]*auth.Provider
	logger    *slog.Logger
}

// NewAuthHandler creates an AuthHandler. providers may be empty (OAuth
// disabled) — the credentials flow works regardless.
func NewAuthHandler(svc *service.AuthService, providers []*auth.Provider, logger *slog.Logger) *AuthHandler {
	byName := make(map[string]*auth.Provider, len(providers))
	for _, p := range providers {
		byName[p.Name()] = p
	}
	return &AuthHandler{
		service:   svc,
		providers: byName,
		logger:    logger,
	}
}

// registerRequest is the JSON body for POST /api/register.
type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates a credentials account.
//
// Responses: 201 with the created user (the password hash is never
// serialized), 400 on missing/malformed fields, 409 on a duplicate email.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "request body must be valid JSON"))
		return
	}

	user, err := h.service.Register(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, user)
}

// loginRequest is the JSON body for POST /api/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin performs credentials sign-in and sets the session cookie.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, apperror.ValidationFailed("body", "request body must be valid JSON"))
		return
	}

	result, err := h.service.LoginWithCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	setSessionCookie(w, result.Token)
	writeJSON(w, http.StatusOK, result.User)
}

// HandleOAuthLogin redirects the browser to the provider's consent page.
//
// HTTP: GET /auth/{provider}/login
//
// The random state value goes into a short-lived cookie; the callback
// verifies it to block login CSRF.
func (h *AuthHandler) HandleOAuthLogin(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers[chi.URLParam(r, "provider")]
	if !ok {
		writeError(w, apperror.NotFound("oauth provider", chi.URLParam(r, "provider")))
		return
	}

	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     "oauth_state",
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10 minutes
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, provider.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleOAuthCallback completes the OAuth flow.
//
// HTTP: GET /auth/{provider}/callback?code=xxx&state=yyy
//
// Flow: verify the CSRF state, exchange the code for a provider profile,
// upsert the account (auto-provisioning on first sign-in), set the session
// cookie, redirect home.
func (h *AuthHandler) HandleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	provider, ok := h.providers[chi.URLParam(r, "provider")]
	if !ok {
		writeError(w, apperror.NotFound("oauth provider", chi.URLParam(r, "provider")))
		return
	}

	stateCookie, err := r.Cookie("oauth_state")
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		h.logger.Warn("oauth callback: state mismatch or missing",
			slog.String("provider", provider.Name()),
		)
		writeError(w, apperror.ValidationFailed("state", "invalid OAuth state"))
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{Name: "oauth_state", Value: "", Path: "/", MaxAge: -1})

	// The user may have denied the authorization request.
	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.logger.Info("oauth callback: authorization denied",
			slog.String("provider", provider.Name()),
			slog.String("error", errParam),
		)
		http.Redirect(w, r, "/?auth=denied", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, apperror.ValidationFailed("code", "missing OAuth code"))
		return
	}

	providerUser, err := provider.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("oauth callback: exchange failed",
			slog.String("provider", provider.Name()),
			slog.String("error", err.Error()),
		)
		writeError(w, apperror.Upstream("authentication with the provider failed"))
		return
	}

	result, err := h.service.LoginOrRegisterOAuth(r.Context(), providerUser)
	if err != nil {
		writeError(w, err)
		return
	}

	setSessionCookie(w, result.Token)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// HandleLogout clears the session cookie.
//
// POST, not GET: logout is state-changing, and GET would be prefetchable.
// The JWT stays technically valid until expiry, but without the cookie the
// browser can't present it.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// HandleMe returns the authenticated user's profile.
//
// HTTP: GET /api/me (RequireAuth)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	user, err := h.service.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("HandleMe: user lookup failed", slog.String("userID", userID))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// setSessionCookie stores the JWT in an HttpOnly cookie. HttpOnly keeps it
// away from page JavaScript; SameSite=Lax keeps it off cross-site POSTs.
// Secure should be enabled in production behind HTTPS.
func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "token",
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.SessionDuration.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
