package httpapi

import (
	"net/http"
	"time"

	"github.com/dmitrijs2005/photomagic/internal/common"
	"github.com/dmitrijs2005/photomagic/internal/logging"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/teris-io/shortid"
)

const (
	traceIDKey = "trace_id"
	userIDKey  = "user_id"

	allowedHeaders = "Content-Type,Authorization"
)

type errorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newTraceID() string {
	id, err := shortid.Generate()
	if err != nil {
		return uuid.NewString()
	}
	return id
}

// traceID takes the caller's X-Trace-ID or makes one, echoes it and puts
// it into the request context for logging.
func (s *Server) traceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(common.TraceIDHeaderName)
		if id == "" {
			id = newTraceID()
		}
		c.Set(traceIDKey, id)
		c.Header(common.TraceIDHeaderName, id)
		c.Request = c.Request.WithContext(logging.WithTraceID(c.Request.Context(), id))
		c.Next()
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info(c.Request.Context(), "Request completed",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

func (s *Server) recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error(c.Request.Context(), "Panic recovered", "error", r)
				s.abort(c, http.StatusInternalServerError, "Internal server error")
			}
		}()
		c.Next()
	}
}

func corsOrigin() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", allowedHeaders)
		c.Next()
	}
}

func allowMethods(methods string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Methods", methods)
		c.Next()
	}
}

// preflight answers OPTIONS before any method or credential check.
func preflight(methods string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Methods", methods)
		c.Status(http.StatusOK)
	}
}

func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(common.AuthorizationHeaderName)
		if header == "" {
			s.abort(c, http.StatusUnauthorized, "Authorization header required")
			return
		}
		userID, err := s.verifier.Verify(header)
		if err != nil {
			s.logger.Debug(c.Request.Context(), "token rejected", "error", err)
			s.abort(c, http.StatusUnauthorized, "Invalid token")
			return
		}
		c.Set(userIDKey, userID)
		c.Next()
	}
}

func (s *Server) abort(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg, TraceID: c.GetString(traceIDKey)})
}

func (s *Server) methodNotAllowed(c *gin.Context) {
	s.abort(c, http.StatusMethodNotAllowed, "Method not allowed")
}

func (s *Server) notFound(c *gin.Context) {
	if c.Request.Method == http.MethodOptions {
		c.Status(http.StatusOK)
		return
	}
	s.abort(c, http.StatusNotFound, "Not found")
}
