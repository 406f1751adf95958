package middleware

import (
	"context"
	"strings"

	"campus-found/backend/pkg/errors"
	"campus-found/backend/pkg/jwt"
	"campus-found/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// JWTAuthMiddleware resolves the caller's participant identifier from a bearer
// token. WebSocket clients that cannot set headers may pass access_token as a
// query parameter instead. Requests without an identity fail closed.
func JWTAuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.Error(errors.ErrNoIdentity)
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateToken(token)
		if err != nil {
			c.Error(errors.ErrNoIdentity.Wrap(err))
			c.Abort()
			return
		}

		participant := claims.Participant()
		ctx := context.WithValue(c.Request.Context(), ParticipantKey, participant)
		c.Request = c.Request.WithContext(ctx)
		c.Set(logger.ParticipantKey, participant)
		c.Set("claims", claims)

		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return c.Query("access_token")
}
