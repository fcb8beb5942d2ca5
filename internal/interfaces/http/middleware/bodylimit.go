package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/buffmasterbran/Shipstaiton-Replacement-sub000/internal/interfaces/http/dto"
)

// BodyLimit caps the request body size. Shipment and connection payloads are
// a few kilobytes at most; anything larger is a client bug, not a bigger order.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge,
				dto.NewErrorResponse(dto.ErrCodeRequestTooLarge,
					fmt.Sprintf("request body exceeds the %d byte limit", maxBytes)))
			return
		}

		// Content-Length can be absent or wrong; enforce the cap while reading too.
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
