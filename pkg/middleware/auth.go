package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/linkup/linkup/backend/go-services/internal/apperr"
	"github.com/linkup/linkup/backend/go-services/internal/tokens"
)

const (
	AccessTokenCookie = "accessToken"
	CsrfHeader        = "x-csrf-token"

	ctxUserID   = "userID"
	ctxCsrfHash = "csrfTokenHash"
)

// AccessVerifier is the minimal interface the middleware depends on.
type AccessVerifier interface {
	VerifyAccessToken(raw string) (*tokens.Claims, error)
}

// Authenticate verifies the accessToken cookie and exposes userID and
// csrfTokenHash to later handlers.
func Authenticate(ver AccessVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := c.Cookie(AccessTokenCookie)
		if err != nil || raw == "" {
			apperr.Fail(c, apperr.Auth(http.StatusUnauthorized, "Token missing, Unauthorized"))
			return
		}
		claims, err := ver.VerifyAccessToken(raw)
		if err != nil {
			apperr.Fail(c, apperr.Auth(http.StatusUnauthorized, "Expired or invalid token"))
			return
		}
		if claims.UserID == "" || claims.CsrfTokenHash == "" {
			apperr.Fail(c, apperr.Auth(http.StatusUnauthorized, "Invalid payload, token not acceptable"))
			return
		}
		c.Set(ctxUserID, claims.UserID)
		c.Set(ctxCsrfHash, claims.CsrfTokenHash)
		c.Next()
	}
}

// RequireCSRF must run after Authenticate. It hashes the x-csrf-token header
// and compares it with the hash bound into the access token.
func RequireCSRF() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(CsrfHeader)
		if header == "" {
			apperr.Fail(c, apperr.Auth(http.StatusUnauthorized, "CSRF token not found"))
			return
		}
		got := tokens.Hash(header)
		if subtle.ConstantTimeCompare([]byte(got), []byte(c.GetString(ctxCsrfHash))) != 1 {
			apperr.Fail(c, apperr.Auth(http.StatusUnauthorized, "Invalid csrf token"))
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user, or "" on public routes.
func UserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}
