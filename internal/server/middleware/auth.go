package middleware

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"voting-service/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const identityContextKey = contextKey("identity")

// JWTAuth validates the bearer token and puts the resolved identity on the
// request context.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			c.AbortWithStatusJSON(401, gin.H{"error": "authorization token required"})
			return
		}

		token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(401, gin.H{"error": "invalid or expired token"})
			return
		}

		claims, ok := token.Claims.(jwt.MapClaims)
		if !ok {
			c.AbortWithStatusJSON(401, gin.H{"error": "invalid token claims"})
			return
		}
		sub, _ := claims["sub"].(string)
		role, _ := claims["role"].(string)
		if sub == "" {
			c.AbortWithStatusJSON(401, gin.H{"error": "invalid token claims"})
			return
		}

		identity := models.Identity{UserID: sub, Role: models.UserRole(role)}
		ctx := context.WithValue(c.Request.Context(), identityContextKey, identity)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireAdmin aborts unless the resolved identity carries the admin role.
// Must run after JWTAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := GetIdentityFromContext(c.Request.Context())
		if err != nil || !identity.IsAdmin() {
			c.AbortWithStatusJSON(403, gin.H{"error": "admin privilege required"})
			return
		}
		c.Next()
	}
}

// GetIdentityFromContext retrieves the authenticated identity.
func GetIdentityFromContext(ctx context.Context) (models.Identity, error) {
	identity, ok := ctx.Value(identityContextKey).(models.Identity)
	if !ok {
		return models.Identity{}, errors.New("no identity in context")
	}
	return identity, nil
}

func extractToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	// Websocket clients pass the token as a query parameter.
	return c.Query("token")
}
