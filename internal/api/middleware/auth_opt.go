package middleware

import (
	"Inkwell/internal/pkg/consts"
	"Inkwell/internal/pkg/security"

	"github.com/gin-gonic/gin"
)

// AuthOptionalMiddleware 可选鉴权：解析成功注入 UID，失败或缺失则 UID 为 0，匿名令牌原样透传
func AuthOptionalMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(UserIDKey, uint64(0))
		c.Set(AnonTokenKey, c.GetHeader(consts.AnonTokenHeader))

		if token, ok := bearerToken(c); ok {
			if claims, err := security.ValidateToken(token); err == nil {
				c.Set(UserIDKey, claims.UserID)
				withUser(c, claims.UserID)
			}
		}

		c.Next()
	}
}
