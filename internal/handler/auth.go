package handler

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sumire/cronboard/internal/domain"
	"github.com/sumire/cronboard/internal/service"
	"github.com/sumire/cronboard/internal/session"
)

const (
	oauthStateCookie = "oauth_state"

	callbackErrNotAuthenticated = "not_authenticated"
	callbackErrInvalidSession   = "invalid_session"
	callbackErrFailed           = "github_callback_failed"
	callbackErrStateMismatch    = "state_mismatch"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	auth    *service.AuthService
	cookies *session.Manager
	logger  *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(auth *service.AuthService, cookies *session.Manager, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{auth: auth, cookies: cookies, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type registerRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login verifies credentials and sets the session cookie.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return withMessage(domain.ErrInvalidInput, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return withMessage(fmt.Errorf("%w: %v", domain.ErrInvalidInput, err), "Email and password are required")
	}

	s, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrUnauthorized) {
			return withMessage(err, "Invalid email or password")
		}
		return err
	}

	if err := h.cookies.Write(c.Response(), s); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return Success(c, http.StatusOK, map[string]any{"user": s.User})
}

// Register creates a credential. It does not sign the user in.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := c.Bind(&req); err != nil {
		return withMessage(domain.ErrInvalidInput, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	user, err := h.auth.Register(c.Request().Context(), req.Name, req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrConflict):
			return withMessage(err, "This email is already registered")
		case errors.Is(err, domain.ErrInvalidInput):
			return withMessage(err, "Name, email and password are required")
		}
		return err
	}

	return Success(c, http.StatusOK, map[string]any{
		"message": "Registration successful",
		"user":    user,
	})
}

// Logout clears the session cookie. Calling it without a session is fine.
func (h *AuthHandler) Logout(c echo.Context) error {
	h.cookies.Clear(c.Response())
	return Success(c, http.StatusOK, nil)
}

type sessionResponse struct {
	User        *domain.User `json:"user"`
	AccessToken *string      `json:"accessToken"`
}

// Session returns the identity carried by the cookie, or nulls.
func (h *AuthHandler) Session(c echo.Context) error {
	s, err := h.cookies.Read(c.Request())
	if err != nil {
		return c.JSON(http.StatusOK, sessionResponse{})
	}

	resp := sessionResponse{User: &s.User}
	if s.AccessToken != "" {
		resp.AccessToken = &s.AccessToken
	}
	return c.JSON(http.StatusOK, resp)
}

// GitHubRedirect redirects the user to GitHub's OAuth consent page.
func (h *AuthHandler) GitHubRedirect(c echo.Context) error {
	state, err := generateState()
	if err != nil {
		return fmt.Errorf("generate oauth state: %w", err)
	}
	c.SetCookie(&http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   600,
	})
	bind := c.QueryParam("bind") == "true"
	return c.Redirect(http.StatusTemporaryRedirect, h.auth.GitHubAuthURL(state, bind))
}

// GitHubCallback completes the OAuth exchange in login or bind mode.
func (h *AuthHandler) GitHubCallback(c echo.Context) error {
	code := c.QueryParam("code")
	if code == "" {
		return c.JSON(http.StatusBadRequest, ErrorBody{Error: "Missing GitHub authorization code", Code: "invalid_input"})
	}

	if !stateMatches(c) {
		return h.failCallback(c, callbackErrStateMismatch, errors.New("oauth state mismatch"))
	}
	clearState(c)

	ctx := c.Request().Context()

	if c.QueryParam("bind") == "true" {
		current, err := h.cookies.Read(c.Request())
		switch {
		case errors.Is(err, session.ErrNoSession):
			return h.failCallback(c, callbackErrNotAuthenticated, err)
		case err != nil:
			return h.failCallback(c, callbackErrInvalidSession, err)
		}

		updated, _, err := h.auth.BindGitHub(ctx, current, code)
		if err != nil {
			return h.failCallback(c, callbackErrFailed, err)
		}
		if err := h.cookies.Write(c.Response(), updated); err != nil {
			return h.failCallback(c, callbackErrFailed, err)
		}
		return c.Redirect(http.StatusTemporaryRedirect, "/settings/github?status=success")
	}

	s, err := h.auth.GitHubLogin(ctx, code)
	if err != nil {
		return h.failCallback(c, callbackErrFailed, err)
	}
	if err := h.cookies.Write(c.Response(), s); err != nil {
		return h.failCallback(c, callbackErrFailed, err)
	}
	return c.Redirect(http.StatusTemporaryRedirect, "/")
}

func (h *AuthHandler) failCallback(c echo.Context, marker string, err error) error {
	h.logger.Warn("github callback failed", "reason", marker, "error", err)
	return c.Redirect(http.StatusTemporaryRedirect, "/login?error="+marker)
}

type linkResponse struct {
	Linked bool                 `json:"linked"`
	Link   *domain.IdentityLink `json:"link,omitempty"`
}

// GitHubLink reports the GitHub account bound to the session identity.
func (h *AuthHandler) GitHubLink(c echo.Context) error {
	s, err := h.cookies.Read(c.Request())
	if err != nil {
		return domain.ErrUnauthorized
	}

	link, err := h.auth.GitHubLink(c.Request().Context(), s)
	if errors.Is(err, domain.ErrNotFound) {
		return c.JSON(http.StatusOK, linkResponse{})
	}
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, linkResponse{Linked: true, Link: link})
}

// GitHubUnlink removes the GitHub binding and its token from the session.
func (h *AuthHandler) GitHubUnlink(c echo.Context) error {
	s, err := h.cookies.Read(c.Request())
	if err != nil {
		return domain.ErrUnauthorized
	}

	updated, err := h.auth.UnbindGitHub(c.Request().Context(), s)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return withMessage(err, "No GitHub account is linked")
		}
		return err
	}
	if err := h.cookies.Write(c.Response(), updated); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return Success(c, http.StatusOK, nil)
}

func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// stateMatches accepts a callback without state; when both the cookie and the
// query carry one they must be equal.
func stateMatches(c echo.Context) bool {
	queryState := c.QueryParam("state")
	cookie, err := c.Cookie(oauthStateCookie)
	if err != nil || cookie.Value == "" || queryState == "" {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(queryState)) == 1
}

func clearState(c echo.Context) {
	if _, err := c.Cookie(oauthStateCookie); err != nil {
		return
	}
	c.SetCookie(&http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
