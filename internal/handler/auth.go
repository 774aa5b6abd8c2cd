package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/xid"

	"github.com/sakif/microblog/internal/apperror"
	"github.com/sakif/microblog/internal/auth"
	"github.com/sakif/microblog/internal/model"
	"github.com/sakif/microblog/internal/service"
)

// stateCookie carries the OAuth CSRF state between the redirect and the
// callback. Single-use, ten minutes, HttpOnly.
const stateCookie = "oauth_state"

// AuthHandler exposes the authentication surface:
//
//	POST /register                  → credentialed signup + token
//	POST /login                     → credentials → token
//	GET  /auth/redirect/{provider}  → 307 to the provider's consent page
//	GET  /auth/callback/{provider}  → code → user + token + billing id
//	POST /logout                    → revoke all tokens (auth required)
//	GET  /me                        → current user (auth required)
//	PUT  /me/password               → rotate password (auth required)
type AuthHandler struct {
	auth   *service.Authenticator
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(authSvc *service.Authenticator, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authSvc, logger: logger}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Message             string      `json:"message"`
	User                *model.User `json:"user"`
	Token               string      `json:"token"`
	BillingCustomerID   string      `json:"billingCustomerId,omitempty"`
	SocialAccountLinked *bool       `json:"socialAccountLinked,omitempty"`
}

// HandleLogin authenticates with email/password.
//
// HTTP: POST /login
//
// Validation here gates the boundary only — the uniform 401 for every
// credentials failure comes from the service and never says which part
// was wrong.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationErrors(w, map[string]string{"body": "request body must be valid JSON"})
		return
	}

	fields := map[string]string{}
	if !validEmail(req.Email) {
		fields["email"] = "a valid email address is required"
	}
	if !validPassword(req.Password) {
		fields["password"] = passwordPolicyMessage
	}
	if len(fields) > 0 {
		writeValidationErrors(w, fields)
		return
	}

	result, err := h.auth.AuthenticateWithCredentials(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Info("login failed", slog.String("error", err.Error()))
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Message: "Logged in Successfully.",
		User:    result.User,
		Token:   result.Token,
	})
}

// HandleProviderRedirect sends the browser to the provider's consent page.
//
// HTTP: GET /auth/redirect/{provider}
//
// The random state lands in a short-lived HttpOnly cookie; the callback
// refuses to proceed unless the provider echoes it back. An unknown
// provider name fails 422 before the cookie is even set.
func (h *AuthHandler) HandleProviderRedirect(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	state := xid.New().String()

	url, err := h.auth.AuthRedirectURL(provider, state)
	if err != nil {
		writeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// HandleProviderCallback completes the OAuth login.
//
// HTTP: GET /auth/callback/{provider}?code=xxx&state=yyy
//
// The allow-list check runs before anything else: an unknown provider
// name is a 422 regardless of what state or code the request carries.
func (h *AuthHandler) HandleProviderCallback(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	if !model.KnownProvider(provider) {
		writeError(w, apperror.InvalidProvider(provider))
		return
	}

	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		h.logger.Warn("oauth callback state mismatch", slog.String("provider", provider))
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_state",
			Message: "invalid OAuth state",
		})
		return
	}

	// The state is single-use.
	http.SetCookie(w, &http.Cookie{Name: stateCookie, Value: "", Path: "/", MaxAge: -1})

	code := r.URL.Query().Get("code")
	if errParam := r.URL.Query().Get("error"); errParam != "" || code == "" {
		// The user denied the authorization, or the provider sent no
		// code. Either way the identity cannot be resolved.
		h.logger.Info("oauth callback without code",
			slog.String("provider", provider),
			slog.String("providerError", errParam),
		)
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "identity_unavailable",
			Message: "could not verify identity with the provider",
		})
		return
	}

	result, err := h.auth.AuthenticateWithProvider(r.Context(), provider, code)
	if err != nil {
		h.logger.Error("provider authentication failed",
			slog.String("provider", provider),
			slog.String("error", err.Error()),
		)
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Message:             "Logged in Successfully.",
		User:                result.User,
		Token:               result.Token,
		BillingCustomerID:   result.BillingCustomerID,
		SocialAccountLinked: &result.SocialAccountLinked,
	})
}

type registerRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleRegister creates a credentialed account and logs it in.
//
// HTTP: POST /register
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationErrors(w, map[string]string{"body": "request body must be valid JSON"})
		return
	}

	fields := map[string]string{}
	if !lengthBetween(req.Name, 3, 40) {
		fields["name"] = "name must be between 3 and 40 characters"
	}
	if !lengthBetween(req.Username, 3, 20) {
		fields["username"] = "username must be between 3 and 20 characters"
	}
	if !validEmail(req.Email) {
		fields["email"] = "a valid email address is required"
	}
	if !validPassword(req.Password) {
		fields["password"] = passwordPolicyMessage
	}
	if len(fields) > 0 {
		writeValidationErrors(w, fields)
		return
	}

	result, err := h.auth.Register(r.Context(), req.Name, req.Username, req.Email, req.Password)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, authResponse{
		Message: "User Registered",
		User:    result.User,
		Token:   result.Token,
	})
}

// HandleLogout revokes every live token for the authenticated user.
//
// HTTP: POST /logout (auth required)
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		// Unreachable behind RequireAuth, but don't assume the wiring.
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
		return
	}

	if err := h.auth.Logout(r.Context(), userID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out Successfully."})
}

// HandleMe returns the authenticated user's profile.
//
// HTTP: GET /me (auth required)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
		return
	}

	user, err := h.auth.GetUserByID(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]*model.User{"user": user})
}

type updatePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	Password    string `json:"password"`
}

// HandleUpdatePassword rotates the authenticated user's password.
//
// HTTP: PUT /me/password (auth required)
func (h *AuthHandler) HandleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: "valid authentication required"})
		return
	}

	var req updatePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeValidationErrors(w, map[string]string{"body": "request body must be valid JSON"})
		return
	}

	fields := map[string]string{}
	if req.OldPassword == "" {
		fields["oldPassword"] = "the current password is required"
	}
	if !validPassword(req.Password) {
		fields["password"] = passwordPolicyMessage
	}
	if len(fields) > 0 {
		writeValidationErrors(w, fields)
		return
	}

	if err := h.auth.UpdatePassword(r.Context(), userID, req.OldPassword, req.Password); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Password updated successfully."})
}
