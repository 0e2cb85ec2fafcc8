package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/linkup/linkup/backend/go-services/internal/auth"
	"github.com/linkup/linkup/backend/go-services/internal/sessions"
	"github.com/linkup/linkup/backend/go-services/internal/tokens"
	"github.com/linkup/linkup/backend/go-services/pkg/middleware"
)

const (
	RefreshTokenCookie = "refreshToken"
	CsrfTokenCookie    = "csrfToken"
)

// setCookie uses net/http directly because gin's SetCookie does not take SameSite per call.
func setCookie(c *gin.Context, name, value string, ttl time.Duration, httpOnly, secure bool) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Expires:  time.Now().Add(ttl),
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: httpOnly,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// writeSessionCookies hands the three tokens to the browser. Only the csrf
// cookie is readable by scripts so it can be echoed in x-csrf-token.
func writeSessionCookies(c *gin.Context, t *auth.Tokens, secure bool) {
	setCookie(c, middleware.AccessTokenCookie, t.AccessToken, tokens.AccessTokenTTL, true, secure)
	setCookie(c, RefreshTokenCookie, t.RefreshToken, sessions.RefreshTTL, true, secure)
	setCookie(c, CsrfTokenCookie, t.CsrfToken, sessions.RefreshTTL, false, secure)
}

func clearSessionCookies(c *gin.Context, secure bool) {
	for _, name := range []string{middleware.AccessTokenCookie, RefreshTokenCookie, CsrfTokenCookie} {
		http.SetCookie(c.Writer, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			Expires:  time.Unix(0, 0),
			MaxAge:   -1,
			HttpOnly: name != CsrfTokenCookie,
			Secure:   secure,
			SameSite: http.SameSiteLaxMode,
		})
	}
}
