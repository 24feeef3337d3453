// README: Firebase ID-token auth middleware. Editing works anonymously, so the
// API runs OptionalAuth and routes that need an account add RequireUser.
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"geotag/internal/infra"
	"geotag/internal/types"
)

const (
	ctxUID    = "auth.uid"
	ctxGuest  = "auth.guest"
	ctxClaims = "auth.claims"
)

type errorResponse struct {
	Error string `json:"error"`
}

// OptionalAuth lets requests without a token through as anonymous. A token
// that is present but invalid is still rejected.
func OptionalAuth(verifier infra.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" || verifier == nil {
			c.Next()
			return
		}
		raw, ok := bearer(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "malformed authorization header"})
			return
		}
		if !verify(c, verifier, raw) {
			return
		}
		c.Next()
	}
}

func bearer(c *gin.Context) (string, bool) {
	h := c.GetHeader("Authorization")
	raw, ok := strings.CutPrefix(h, "Bearer ")
	raw = strings.TrimSpace(raw)
	return raw, ok && raw != ""
}

func verify(c *gin.Context, verifier infra.TokenVerifier, raw string) bool {
	if verifier == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "authentication unavailable"})
		return false
	}
	tok, err := verifier.VerifyIDToken(c.Request.Context(), raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "invalid token"})
		return false
	}
	c.Set(ctxClaims, tok.Claims)
	if tok.Anonymous {
		c.Set(ctxGuest, "firebase:"+tok.UID)
	} else {
		c.Set(ctxUID, tok.UID)
	}
	return true
}

// CallerUID returns the authenticated user, or "" for anonymous callers
// including Firebase guest accounts.
func CallerUID(c *gin.Context) types.ID {
	return types.ID(c.GetString(ctxUID))
}

// GuestKey identifies an anonymous caller for export allowances: the Firebase
// guest account when there is one, the client address otherwise.
func GuestKey(c *gin.Context) string {
	if g := c.GetString(ctxGuest); g != "" {
		return g
	}
	return "ip:" + c.ClientIP()
}

// RequireUser rejects anonymous callers. It runs after OptionalAuth.
func RequireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CallerUID(c) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{Error: "sign in required"})
			return
		}
		c.Next()
	}
}
