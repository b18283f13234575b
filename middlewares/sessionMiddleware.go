package middlewares

import (
	"net/http"

	"bitbucket.org/mmdatafocus/ptw_backend/config"
	"bitbucket.org/mmdatafocus/ptw_backend/utils"
	"github.com/gin-gonic/gin"
)

// SessionMiddleware resolves the token header against the session store and
// stamps the request context. A missing token passes through untouched;
// RequireSession decides which routes demand one.
func SessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			c.Next()
			return
		}
		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := utils.SetTokenInContext(c.Request.Context(), token)
		ctx = utils.SetUsernameInContext(ctx, username)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// RequireSession guards routes that must not run anonymously.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		username, ok := utils.GetUsernameFromContext(c.Request.Context())
		if !ok || username == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}
