package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/b3datalake/datalake-api/internal/tokens"
	"github.com/b3datalake/datalake-api/internal/users"
	"github.com/b3datalake/datalake-api/pkg/logger"
	"github.com/b3datalake/datalake-api/pkg/metrics"
)

// RegisterRequest is the JSON body of POST /auth/register.
type RegisterRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is returned by both register and login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// AuthHandler holds dependencies
type AuthHandler struct {
	usersSvc *users.Service
	issuer   *tokens.Issuer
}

func NewAuthHandler(u *users.Service, iss *tokens.Issuer) *AuthHandler {
	return &AuthHandler{usersSvc: u, issuer: iss}
}

// Register routes under /auth. mw runs before both handlers; main uses it
// for the IP-keyed limiter on these anonymous routes.
func (h *AuthHandler) Register(rg gin.IRouter, mw ...gin.HandlerFunc) {
	a := rg.Group("/auth", mw...)
	a.POST("/register", h.SignUp)
	a.POST("/token", h.Login)
}

// SignUp creates a credential and logs the new user in.
func (h *AuthHandler) SignUp(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}
	u, err := h.usersSvc.Register(c.Request.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, users.ErrUsernameTaken):
		metrics.AuthAttempts.WithLabelValues("register", "taken").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "username already registered"})
		return
	case errors.Is(err, users.ErrInvalidInput):
		metrics.AuthAttempts.WithLabelValues("register", "invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid username or password", "details": err.Error()})
		return
	case err != nil:
		metrics.AuthAttempts.WithLabelValues("register", "error").Inc()
		logger.Errorf("register %s: %v", req.Username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "registration failed"})
		return
	}
	metrics.AuthAttempts.WithLabelValues("register", "ok").Inc()
	logger.Infof("registered user %s", u.Username)
	h.issue(c, u.Username)
}

// Login is the OAuth2 password flow: form fields username and password.
func (h *AuthHandler) Login(c *gin.Context) {
	username := c.PostForm("username")
	password := c.PostForm("password")
	if username == "" || password == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password form fields are required"})
		return
	}
	u, err := h.usersSvc.Authenticate(c.Request.Context(), username, password)
	if errors.Is(err, users.ErrInvalidCredentials) {
		metrics.AuthAttempts.WithLabelValues("login", "rejected").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "incorrect username or password"})
		return
	}
	if err != nil {
		metrics.AuthAttempts.WithLabelValues("login", "error").Inc()
		logger.Errorf("login %s: %v", username, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		return
	}
	metrics.AuthAttempts.WithLabelValues("login", "ok").Inc()
	h.issue(c, u.Username)
}

func (h *AuthHandler) issue(c *gin.Context, subject string) {
	tok, err := h.issuer.CreateToken(subject)
	if err != nil {
		logger.Errorf("sign token for %s: %v", subject, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue token"})
		return
	}
	c.JSON(http.StatusOK, TokenResponse{AccessToken: tok, TokenType: "bearer"})
}
