package server

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

// requestID tags every request with the caller's X-Request-ID or a new UUID
// and echoes it in the response.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// log returns the server logger bound to the request id.
func (s *Server) log(c *gin.Context) *slog.Logger {
	return s.logger.With(slog.String(requestIDKey, c.GetString(requestIDKey)))
}

// recoverReport turns a panic inside report generation into the same plain
// text 500 a returned error produces.
func (s *Server) recoverReport() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.log(c).Error("report generation panicked", slog.String("panic", fmt.Sprint(recovered)))
		c.String(http.StatusInternalServerError, msgGenerationFailed)
		c.Abort()
	})
}
