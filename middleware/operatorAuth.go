package middleware

import (
	"net/http"
	"strings"

	"visaflow/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// JWTAuthOperatorMiddleware admits requests carrying a valid operator token.
func JWTAuthOperatorMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		logger := zap.L()
		if secret == "" {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "Operator authentication is not configured"})
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Missing or invalid Authorization header"})
			return
		}
		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := utils.ParseOperatorToken(tokenString, secret)
		if err != nil {
			logger.Warn("Rejected operator token", zap.String("ip", getClientIP(c)), zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
			return
		}
		if claims.Role != utils.RoleOperator {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Operator role required"})
			return
		}

		c.Set("operatorID", claims.Subject)
		c.Next()
	}
}
