package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smstore/backend/internal/auth"
	"github.com/smstore/backend/internal/config"
	"github.com/smstore/backend/internal/middleware"
	"github.com/smstore/backend/internal/model"
	"github.com/smstore/backend/internal/repository"
	"github.com/smstore/backend/internal/utils"
)

// RefreshCookieName carries the opaque refresh value, scoped to the
// refresh endpoint's path so it never travels with ordinary API calls.
const RefreshCookieName = "refresh_token"

// refreshCookiePath is the only path the refresh cookie is sent to.
const refreshCookiePath = "/api/auth/refresh"

// UserStore is the slice of the user repository the auth endpoints need.
type UserStore interface {
	Create(ctx context.Context, email, password string, role model.Role, cost int) (uint64, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id uint64) (*model.User, error)
}

// TokenAuthority is the credential-issuing surface of the auth package.
type TokenAuthority interface {
	IssuePair(ctx context.Context, userID uint64, role model.Role) (auth.AccessToken, auth.RefreshToken, error)
	Rotate(ctx context.Context, raw string) (uint64, auth.AccessToken, auth.RefreshToken, error)
	RevokeChain(ctx context.Context, raw string) error
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// AuthHandler bundles dependencies for auth endpoints.
type AuthHandler struct {
	Cfg       config.Config
	Users     UserStore
	Authority TokenAuthority
}

func NewAuthHandler(cfg config.Config, users UserStore, authority TokenAuthority) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: users, Authority: authority}
}

// ----- DTOs -----

type registerReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userPart struct {
	ID    uint64     `json:"id"`
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
}

type authResp struct {
	User userPart `json:"user"`
}

// Register creates a user and starts a session immediately: both cookies
// are set on the response. New accounts always get the user role; admins
// are provisioned out of band.
func (h *AuthHandler) Register(c echo.Context) error {
	var req registerReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, err := h.Users.Create(ctx, req.Email, req.Password, model.RoleUser, h.Cfg.BcryptCost)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return c.JSON(http.StatusConflict, echo.Map{"error": "email already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create user failed"})
	}

	access, refresh, err := h.Authority.IssuePair(ctx, uid, model.RoleUser)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	h.setAuthCookies(c, access, refresh)

	return c.JSON(http.StatusCreated, authResp{
		User: userPart{ID: uid, Email: req.Email, Role: model.RoleUser},
	})
}

// Login verifies credentials and starts a fresh session chain.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email/password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if !utils.VerifyPassword(u.PasswordHash, req.Password) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	access, refresh, err := h.Authority.IssuePair(ctx, u.ID, u.Role)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue tokens failed"})
	}
	h.setAuthCookies(c, access, refresh)

	return c.JSON(http.StatusOK, authResp{
		User: userPart{ID: u.ID, Email: u.Email, Role: u.Role},
	})
}

// Refresh rotates the presented refresh credential: the old value is
// revoked in the same store operation that validates it, and both cookies
// are replaced. On any failure no cookie is touched, so a rejected
// request leaves no partial session state behind.
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := h.refreshFromRequest(c)
	if raw == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "refresh token required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	uid, access, refresh, err := h.Authority.Rotate(ctx, raw)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRefresh) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}

	h.setAuthCookies(c, access, refresh)
	return c.JSON(http.StatusOK, authResp{
		User: userPart{ID: u.ID, Email: u.Email, Role: u.Role},
	})
}

// Logout revokes the presented refresh credential (other chains of the
// same user stay live) and clears both cookies.
func (h *AuthHandler) Logout(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if raw := h.refreshFromRequest(c); raw != "" {
		_ = h.Authority.RevokeChain(ctx, raw)
	}
	h.clearAuthCookies(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "Logged out successfully"})
}

// Me returns the authenticated user. Requires the Authenticate middleware.
func (h *AuthHandler) Me(c echo.Context) error {
	claims := middleware.ClaimsFrom(c)
	if claims == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, claims.SubjectID())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "load user failed"})
	}
	return c.JSON(http.StatusOK, authResp{
		User: userPart{ID: u.ID, Email: u.Email, Role: u.Role},
	})
}

// refreshFromRequest reads the refresh value from its cookie, falling
// back to a JSON body for non-browser clients.
func (h *AuthHandler) refreshFromRequest(c echo.Context) string {
	if cookie, err := c.Cookie(RefreshCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	var body struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := c.Bind(&body); err == nil {
		return strings.TrimSpace(body.RefreshToken)
	}
	return ""
}

func (h *AuthHandler) setAuthCookies(c echo.Context, access auth.AccessToken, refresh auth.RefreshToken) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.AccessCookieName,
		Value:    access.Token,
		Path:     "/",
		MaxAge:   int(h.Authority.AccessTTL() / time.Second),
		HttpOnly: true,
		Secure:   h.Cfg.IsProd(),
		SameSite: http.SameSiteStrictMode,
	})
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookieName,
		Value:    refresh.Raw,
		Path:     refreshCookiePath,
		MaxAge:   int(h.Authority.RefreshTTL() / time.Second),
		HttpOnly: true,
		Secure:   h.Cfg.IsProd(),
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearAuthCookies(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     middleware.AccessCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cfg.IsProd(),
		SameSite: http.SameSiteStrictMode,
	})
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cfg.IsProd(),
		SameSite: http.SameSiteStrictMode,
	})
}
