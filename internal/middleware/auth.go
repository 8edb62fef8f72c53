// internal/middleware/auth.go
package middleware

import (
	"net/http"
	"strings"

	"compatlab-service/internal/domain/user"
	"compatlab-service/internal/pkg/jwt"
	"compatlab-service/internal/pkg/response"
	"compatlab-service/internal/service/auth"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserKey   = "current_user"
	ctxClaimsKey = "token_claims"
)

// Auth verifies the bearer token and loads the caller onto the
// context.
func Auth(jwtManager *jwt.Manager, authService *auth.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			response.Error(c, http.StatusUnauthorized, "token de acesso ausente")
			return
		}

		claims, err := jwtManager.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "token inválido ou expirado")
			return
		}

		u, err := authService.GetUser(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "usuário não encontrado")
			return
		}

		c.Set(ctxClaimsKey, claims)
		c.Set(ctxUserKey, u)
		c.Next()
	}
}

// RequireAdmin gates a route group to administrative users. Must run
// after Auth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		u, ok := CurrentUser(c)
		if !ok || !u.IsAdmin() {
			response.Error(c, http.StatusForbidden, "acesso restrito a administradores")
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user set by Auth.
func CurrentUser(c *gin.Context) (*user.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil, false
	}
	u, ok := v.(*user.User)
	return u, ok
}

// MustUserID returns the caller's id; Auth guarantees it is present
// on protected routes.
func MustUserID(c *gin.Context) int64 {
	u, _ := CurrentUser(c)
	if u == nil {
		return 0
	}
	return u.ID
}
