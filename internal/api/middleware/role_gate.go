package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireRole 只放行访问令牌中角色属于 roles 的请求，需在 AuthMiddleware 之后使用。
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		role, _ := c.Get(RoleKey)
		name, _ := role.(string)
		if _, ok := allowed[name]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
