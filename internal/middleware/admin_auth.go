// Package middleware 提供了处理 HTTP 请求的中间件。
package middleware

import (
	"net/http"
	"strings"

	"bvrag/pkg/token"

	"github.com/gin-gonic/gin"
)

// AdminAuth 校验 /api/v1/admin/* 路由的 Bearer token（SPEC_FULL.md §2：
// BV-RAG 只有一个管理员主体，鉴权退化为单一 JWT 校验，不维护用户表/角色）。
func AdminAuth(manager *token.JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if !strings.HasPrefix(header, prefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		if _, err := manager.VerifyToken(strings.TrimPrefix(header, prefix)); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Next()
	}
}
