package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/linkup/linkup/backend/go-services/internal/apperr"
	"github.com/linkup/linkup/backend/go-services/internal/auth"
	"github.com/linkup/linkup/backend/go-services/internal/validate"
)

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Name     string `json:"name" binding:"required,max=50"`
	Email    string `json:"email" binding:"required,email,max=50"`
	Password string `json:"password" binding:"required,min=8,max=20"`
}

// Normalize trims the password too, so the length rule applies to what is hashed.
func (r *RegisterRequest) Normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Password = strings.TrimSpace(r.Password)
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email,max=50"`
	Password string `json:"password" binding:"required,min=8,max=20"`
}

func (r *LoginRequest) Normalize() {
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	r.Password = strings.TrimSpace(r.Password)
}

// AuthHandler holds dependencies
type AuthHandler struct {
	svc    *auth.Service
	secure bool
}

// NewAuthHandler builds the handler; secure marks cookies Secure (production).
func NewAuthHandler(svc *auth.Service, secure bool) *AuthHandler {
	return &AuthHandler{svc: svc, secure: secure}
}

// Register routes under /auth
func (h *AuthHandler) Register(rg *gin.RouterGroup) {
	a := rg.Group("/auth", noStore)
	a.POST("/register", h.SignUp)
	a.POST("/login", h.Login)
	a.GET("/refresh", h.Refresh)
	a.POST("/logout", h.Logout)
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Next()
}

func (h *AuthHandler) SignUp(c *gin.Context) {
	var req RegisterRequest
	if err := validate.JSON(c, &req); err != nil {
		apperr.Fail(c, err)
		return
	}
	t, err := h.svc.Register(c.Request.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	writeSessionCookies(c, t, h.secure)
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "User successfully registered"})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := validate.JSON(c, &req); err != nil {
		apperr.Fail(c, err)
		return
	}
	t, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	writeSessionCookies(c, t, h.secure)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User successfully logged in"})
}

// Refresh rotates the refresh cookie and reissues the access/csrf pair.
func (h *AuthHandler) Refresh(c *gin.Context) {
	refresh, _ := c.Cookie(RefreshTokenCookie)
	t, err := h.svc.Refresh(c.Request.Context(), refresh)
	if err != nil {
		apperr.Fail(c, err)
		return
	}
	writeSessionCookies(c, t, h.secure)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Tokens refreshed"})
}

// Logout always succeeds from the client's point of view: cookies are cleared
// whatever happens to the server-side session.
func (h *AuthHandler) Logout(c *gin.Context) {
	if refresh, err := c.Cookie(RefreshTokenCookie); err == nil && refresh != "" {
		h.svc.Logout(c.Request.Context(), refresh)
	}
	clearSessionCookies(c, h.secure)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "User successfully signed out"})
}
