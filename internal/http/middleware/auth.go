package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"rh-portal-be/internal/auth"
	"rh-portal-be/internal/models"
)

const principalKey = "principal"

// Auth resolves the bearer token into a principal. Requests without a valid
// token stop here with 401.
func Auth(v *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		if h == "" || !strings.HasPrefix(h, "Bearer ") {
			abort(c, http.StatusUnauthorized, "unauthorized", "missing token")
			return
		}

		p, err := v.Verify(strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")))
		if err != nil {
			abort(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}

		c.Set(principalKey, p)
		c.Next()
	}
}

// RequireRole must run after Auth.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if MustPrincipal(c).Role != role {
			abort(c, http.StatusForbidden, "forbidden", "access denied")
			return
		}
		c.Next()
	}
}

func MustPrincipal(c *gin.Context) auth.Principal {
	return c.MustGet(principalKey).(auth.Principal)
}

func abort(c *gin.Context, status int, typ, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{"type": typ, "message": msg}})
}
