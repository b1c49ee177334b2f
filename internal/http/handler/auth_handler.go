// Package handler exposes the REST surface of the authentication API.
package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/socialimageapp/authentication-api-service/internal/config"
	domainoauth "github.com/socialimageapp/authentication-api-service/internal/domain/oauth"
	"github.com/socialimageapp/authentication-api-service/internal/http/middleware"
	"github.com/socialimageapp/authentication-api-service/internal/service"
	oauthsvc "github.com/socialimageapp/authentication-api-service/internal/service/oauth"
)

// AuthHandler routes HTTP requests into the service layer.
type AuthHandler struct {
	Auth   *service.AuthService
	Google *oauthsvc.GoogleService
	Cfg    config.Config
	Logger *zap.Logger
}

// NewAuthHandler wires the handler.
func NewAuthHandler(auth *service.AuthService, google *oauthsvc.GoogleService, cfg config.Config, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{Auth: auth, Google: google, Cfg: cfg, Logger: logger}
}

func respondResult(c *gin.Context, status int, payload any) {
	c.JSON(status, gin.H{"result": payload})
}

func (h *AuthHandler) respondError(c *gin.Context, err error) {
	var appErr *service.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.Status, gin.H{"error": appErr.Code, "error_description": appErr.Message})
		return
	}
	switch {
	case errors.Is(err, domainoauth.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": "Invalid payload."})
	case errors.Is(err, domainoauth.ErrInvalidState), errors.Is(err, domainoauth.ErrTokenInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_token", "error_description": "Invalid or expired token."})
	default:
		if h.Logger != nil {
			h.Logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error", "error_description": "Something went wrong."})
	}
}

func badRequest(c *gin.Context, description string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "error_description": description})
}

// Health reports liveness.
func (h *AuthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Register creates a new unverified account.
func (h *AuthHandler) Register(c *gin.Context) {
	var req struct {
		Email           string `json:"email" binding:"required,email"`
		Password        string `json:"password" binding:"required,min=8"`
		ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=Password"`
		FirstName       string `json:"firstName"`
		LastName        string `json:"lastName"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "A valid email and a matching password of at least 8 characters are required.")
		return
	}

	res, err := h.Auth.Register(c.Request.Context(), service.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondResult(c, http.StatusCreated, gin.H{"message": res.Message, "userId": strconv.FormatInt(res.UserID, 10)})
}

// Verify redeems an email confirmation token. Accepts the token in the
// query string (email link) or a JSON body.
func (h *AuthHandler) Verify(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" && c.Request.Method == http.MethodPost {
		var req struct {
			Token string `json:"token"`
		}
		if err := c.ShouldBindJSON(&req); err == nil {
			token = strings.TrimSpace(req.Token)
		}
	}
	if token == "" {
		badRequest(c, "Verification token is required.")
		return
	}

	res, err := h.Auth.Verify(c.Request.Context(), token)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondResult(c, http.StatusOK, gin.H{"message": res.Message, "email": res.Email})
}

// Login authenticates with email and password.
func (h *AuthHandler) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Email and password are required.")
		return
	}

	res, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.setSessionCookie(c, res.Token)
	respondResult(c, http.StatusOK, res)
}

// Logout clears the session cookie. Tokens remain valid until expiry;
// the cookie is the only server-managed credential holder.
func (h *AuthHandler) Logout(c *gin.Context) {
	c.SetCookie(middleware.SessionCookie, "", -1, "/", "", h.Cfg.Production(), true)
	respondResult(c, http.StatusOK, gin.H{"message": "Logged out"})
}

// ForgotPassword requests reset instructions.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "A valid email is required.")
		return
	}

	msg, err := h.Auth.ForgotPassword(c.Request.Context(), req.Email)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondResult(c, http.StatusOK, gin.H{"message": msg})
}

// ResetPassword redeems a reset token.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req struct {
		Token           string `json:"token" binding:"required"`
		Password        string `json:"password" binding:"required,min=8"`
		ConfirmPassword string `json:"confirmPassword" binding:"required,eqfield=Password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Token and a matching password of at least 8 characters are required.")
		return
	}

	msg, err := h.Auth.ResetPassword(c.Request.Context(), req.Token, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondResult(c, http.StatusOK, gin.H{"message": msg})
}

// GoogleStart redirects the browser to Google's consent screen.
func (h *AuthHandler) GoogleStart(c *gin.Context) {
	authURL, err := h.Google.Start(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Redirect(http.StatusFound, authURL)
}

// GoogleCallback finishes the redirect flow and sends the browser back
// to the frontend with a session cookie.
func (h *AuthHandler) GoogleCallback(c *gin.Context) {
	res, err := h.Google.Callback(c.Request.Context(), c.Query("state"), c.Query("code"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.setSessionCookie(c, res.Token)
	c.Redirect(http.StatusFound, h.Cfg.FrontendBaseURL)
}

// GoogleLogin serves single-page clients exchanging their own code.
func (h *AuthHandler) GoogleLogin(c *gin.Context) {
	var req struct {
		Code         string `json:"code" binding:"required"`
		CodeVerifier string `json:"codeVerifier"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Authorization code is required.")
		return
	}

	res, err := h.Google.LoginWithCode(c.Request.Context(), req.Code, req.CodeVerifier)
	if err != nil {
		h.respondError(c, err)
		return
	}
	h.setSessionCookie(c, res.Token)
	respondResult(c, http.StatusOK, res)
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authentication required."})
		return
	}
	user, err := h.Auth.Me(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondResult(c, http.StatusOK, gin.H{"user": user})
}

// Organizations lists the caller's organizations.
func (h *AuthHandler) Organizations(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authentication required."})
		return
	}
	orgs, err := h.Auth.Organizations(c.Request.Context(), userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondResult(c, http.StatusOK, gin.H{"organizations": orgs})
}

// OrganizationKeys returns the public JWKS of one of the caller's
// organizations.
func (h *AuthHandler) OrganizationKeys(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_token", "error_description": "Authentication required."})
		return
	}
	orgID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		badRequest(c, "Organization id must be numeric.")
		return
	}

	set, err := h.Auth.OrgJWKS(c.Request.Context(), orgID, userID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	respondResult(c, http.StatusOK, gin.H{"keys": set.Keys})
}

func (h *AuthHandler) setSessionCookie(c *gin.Context, token string) {
	maxAge := int(h.Cfg.AccessTokenTTL.Seconds())
	c.SetCookie(middleware.SessionCookie, token, maxAge, "/", "", h.Cfg.Production(), true)
}
