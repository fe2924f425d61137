package handler

import (
	"errors"
	"net/http"
	"strings"

	"pulse/backend/internal/auth"

	"github.com/gin-gonic/gin"
)

const contextUserID = "user_id"

// bearerToken pulls the credential from the Authorization header, or from
// the token query parameter as a fallback for websocket clients that cannot
// set headers.
func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.Query("token")
}

// RequireAuth authenticates the request and stores the user id in the gin
// context for the handlers downstream.
func (h *Handler) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization token missing"})
			return
		}

		user, err := h.Auth.Authenticate(token)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrInactiveAccount) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			} else {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "authentication unavailable"})
			}
			return
		}

		c.Set(contextUserID, user.ID)
		c.Next()
	}
}

func currentUserID(c *gin.Context) string {
	return c.GetString(contextUserID)
}
