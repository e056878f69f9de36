package server

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tiktokzone/internal/logging"
)

const requestIDHeader = "X-Request-ID"

// requestMiddleware tags each request with an ID and puts a child logger
// carrying it into the request context.
func (s *Server) requestMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)

		log := s.log.With(
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path))
		c.Request = c.Request.WithContext(logging.WithContext(c.Request.Context(), log))

		c.Next()

		log.Info("request completed",
			zap.Int("status", c.Writer.Status()),
			zap.Int("bytes", c.Writer.Size()),
			zap.Duration("latency", time.Since(start)))
	}
}
