package delivery

import (
	"net/http"
	"strings"

	"billwatch-backend/internal/auth/usecase"

	"github.com/gin-gonic/gin"
)

// ClientIDKey is the gin context key holding the authenticated client id
const ClientIDKey = "client_id"

// AuthMiddleware requires a valid bearer token. EventSource clients cannot
// set headers, so a "token" query parameter is accepted as well.
func AuthMiddleware(authUsecase usecase.AuthUsecase) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
				c.Abort()
				return
			}
			token = parts[1]
		}
		if token == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization header required"})
			c.Abort()
			return
		}

		clientID, err := authUsecase.ValidateToken(token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			c.Abort()
			return
		}

		c.Set(ClientIDKey, clientID)
		c.Next()
	}
}
