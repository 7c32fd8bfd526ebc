package middleware

import (
	"net/http"

	"bvrag/internal/apperr"

	"github.com/gin-gonic/gin"
)

// ErrorHandler translates an apperr.Error attached via c.Error into the
// degraded response envelope and HTTP status spec.md §7 names: 408 for
// timeouts, 503 for upstream outages, 400 for invalid input, 500 for
// internal invariants. Handlers that hit a structured error call
// c.Error(err) and return without writing a response themselves.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		status, message := translate(err)
		c.JSON(status, gin.H{
			"answer_text": message,
			"confidence":  "low",
			"citations":   []interface{}{},
			"sources":     []interface{}{},
		})
	}
}

func translate(err error) (int, string) {
	switch apperr.KindOf(err) {
	case apperr.KindTimeout:
		return http.StatusRequestTimeout, "请求超时 / request timed out"
	case apperr.KindUnavailable:
		return http.StatusServiceUnavailable, "检索暂时不可用 / retrieval unavailable"
	case apperr.KindInvalidInput:
		return http.StatusBadRequest, "请求参数无效 / invalid input"
	case apperr.KindNotFound:
		return http.StatusNotFound, "未找到请求的资源 / resource not found"
	default:
		return http.StatusInternalServerError, "内部错误 / internal error"
	}
}
