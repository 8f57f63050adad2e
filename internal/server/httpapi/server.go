// Package httpapi exposes the image task API over HTTP using gin.
package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/photomagic/internal/logging"
	"github.com/dmitrijs2005/photomagic/internal/server/models"
	"github.com/dmitrijs2005/photomagic/internal/server/services"
	"github.com/gin-gonic/gin"
)

const (
	basePath          = "/api/v1/images"
	readHeaderTimeout = 10 * time.Second
)

// TaskService is implemented by services.TaskService.
type TaskService interface {
	Submit(ctx context.Context, ownerID, fileID string, kind models.TaskKind) (*models.Task, error)
	Status(ctx context.Context, callerID, taskID string) (*services.TaskView, error)
}

// TokenVerifier resolves an Authorization header to a user id.
type TokenVerifier interface {
	Verify(header string) (string, error)
}

type Server struct {
	address         string
	tasks           TaskService
	verifier        TokenVerifier
	logger          logging.Logger
	shutdownTimeout time.Duration
	engine          *gin.Engine
}

func NewServer(address string, l logging.Logger, tasks TaskService, verifier TokenVerifier, shutdownTimeout time.Duration) *Server {
	s := &Server{
		address:         address,
		tasks:           tasks,
		verifier:        verifier,
		logger:          l.With("module", "http_server"),
		shutdownTimeout: shutdownTimeout,
	}
	s.engine = s.routes()
	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(s.traceID(), s.logRequests(), s.recovery(), corsOrigin())
	r.NoMethod(s.methodNotAllowed)
	r.NoRoute(s.notFound)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	images := r.Group(basePath)

	images.OPTIONS("/remove-background", preflight("POST,OPTIONS"))
	images.POST("/remove-background", allowMethods("POST,OPTIONS"), s.authenticate(), s.submitRemoveBackground)

	images.OPTIONS("/remove-background/:taskId", preflight("GET,OPTIONS"))
	images.GET("/remove-background/:taskId", allowMethods("GET,OPTIONS"), s.authenticate(), s.removeBackgroundStatus)

	for _, kind := range []models.TaskKind{models.KindExtendImage, models.KindEnhanceClarity, models.KindObjectRemoval} {
		path := "/" + string(kind)
		images.OPTIONS(path, preflight("GET,POST,OPTIONS"))
		images.POST(path, allowMethods("GET,POST,OPTIONS"), s.notImplemented(kind))
		images.GET(path, allowMethods("GET,POST,OPTIONS"), s.notImplemented(kind))
	}

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error(ctx, "HTTP server shutdown failed", "error", err)
		}
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-done
	return nil
}
