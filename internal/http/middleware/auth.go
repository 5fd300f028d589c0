package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"traffic-analytics/internal/auth"
	"traffic-analytics/internal/model"
)

const (
	claimsKey    = "tokenClaims"
	principalKey = "principal"
	authHeader   = "Authorization"
	bearerPrefix = "Bearer"
)

// Auth resolves a Principal from a bearer token. With a nil parser the API
// runs open and every request gets the anonymous principal, which maps to the
// shared storage namespace.
func Auth(parser *auth.Parser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if parser == nil {
			c.Set(principalKey, model.Principal{})
			c.Next()
			return
		}

		raw := c.GetHeader(authHeader)
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization header missing"})
			return
		}

		parts := strings.SplitN(raw, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}

		claims, err := parser.Parse(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(claimsKey, claims)
		c.Set(principalKey, model.Principal{UserID: claims.UserID, Email: claims.Email})
		c.Next()
	}
}

func MustPrincipal(c *gin.Context) (model.Principal, bool) {
	value, exists := c.Get(principalKey)
	if !exists {
		return model.Principal{}, false
	}
	principal, ok := value.(model.Principal)
	if !ok {
		return model.Principal{}, false
	}
	return principal, true
}
