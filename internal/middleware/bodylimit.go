package middleware

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	// DefaultBodyLimit 默认请求体大小限制
	DefaultBodyLimit = 1 * 1024 * 1024 // 1MB

	// MessageBodyLimit 消息撰写接口的限制，主题与正文上限之和留足余量
	MessageBodyLimit = 64 * 1024 // 64KB
)

// BodySizeLimit 限制请求体大小的中间件
func BodySizeLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 先看 Content-Length，超限直接拒绝
		if c.Request.ContentLength > maxBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{
				"error":   "request body too large",
				"message": fmt.Sprintf("request body exceeds maximum size of %d bytes", maxBytes),
				"limit":   maxBytes,
			})
			c.Abort()
			return
		}

		// 再限制实际读取大小，防御缺失或伪造的 Content-Length
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Header("X-Max-Body-Size", strconv.FormatInt(maxBytes, 10))

		c.Next()
	}
}
