package middleware

import (
	"net/http"

	"dissent/internal/models"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const CheckUserKey = "user"

// LoadUser retrieves the session user from the store and sets it on the
// request context. Requests without a session pass through anonymous.
func LoadUser(conn *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		userID := session.Get("user_id")

		if userID != nil {
			var user models.User
			if err := conn.First(&user, userID).Error; err == nil {
				c.Set(CheckUserKey, &user)
			}
		}
		c.Next()
	}
}

// AuthRequired rejects anonymous requests with a JSON Forbidden before any
// handler work happens.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(CheckUserKey); !exists {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error":   "You must be connected before you can do that.",
			})
			return
		}
		c.Next()
	}
}

// CurrentUser returns the user loaded by LoadUser, if any.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(CheckUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}
