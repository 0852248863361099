package middleware

import (
	"errors"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/simp-lee/catalog/internal/domain"
)

const (
	subjectContextKey = "auth.subject"
	roleContextKey    = "auth.role"
	bearerPrefix      = "Bearer "
)

// Claims is the token payload accepted by RequireRole.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// RequireRole admits requests carrying a valid HS256 bearer token whose role
// claim is one of roles. An empty roles list admits any authenticated caller.
// A missing or invalid token is rejected with 401, a wrong role with 403.
func RequireRole(secret string, roles ...string) gin.HandlerFunc {
	key := []byte(secret)

	return func(c *gin.Context) {
		claims, err := parseBearer(c.GetHeader("Authorization"), key)
		if err != nil {
			_ = c.Error(domain.NewAppError(domain.KindUnauthorized, "you are not logged in", err))
			c.Abort()
			return
		}
		if len(roles) > 0 && !slices.Contains(roles, claims.Role) {
			_ = c.Error(domain.NewAppError(domain.KindForbidden, "you do not have permission to perform this action", nil))
			c.Abort()
			return
		}

		c.Set(subjectContextKey, claims.Subject)
		c.Set(roleContextKey, claims.Role)
		c.Next()
	}
}

// Subject returns the token subject set by RequireRole.
func Subject(c *gin.Context) string {
	return c.GetString(subjectContextKey)
}

// Role returns the token role set by RequireRole.
func Role(c *gin.Context) string {
	return c.GetString(roleContextKey)
}

func parseBearer(header string, key []byte) (*Claims, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return nil, errors.New("missing bearer token")
	}
	raw := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
