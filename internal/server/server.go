// Package server exposes the resolver over HTTP with gin.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tiktokzone/internal/httputil"
	"tiktokzone/internal/media"
)

const shutdownTimeout = 10 * time.Second

// Resolver is what the handlers need from the fallback chains.
type Resolver interface {
	Resolve(ctx context.Context, input string) (*media.ExtractionResult, media.ContentReference, error)
	ResolveDownload(ctx context.Context, req media.DownloadRequest) (*media.Stream, error)
}

// Options configures a Server.
type Options struct {
	Listen         string
	FilenamePrefix string
	Version        string

	// ImageClient and ImageTimeout serve the image re-hosting route.
	ImageClient  *http.Client
	ImageTimeout time.Duration
}

// Server is the HTTP API.
type Server struct {
	resolver Resolver
	opts     Options
	log      *zap.Logger
	engine   *gin.Engine
}

// New creates a Server and registers its routes.
func New(r Resolver, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ImageClient == nil {
		opts.ImageClient = httputil.NewClient()
	}
	s := &Server{resolver: r, opts: opts, log: log}

	s.engine = gin.New()
	s.engine.Use(gin.Recovery())
	s.engine.Use(s.requestMiddleware())

	api := s.engine.Group("/api")
	api.Any("/tiktok", s.handleLookup)
	api.GET("/tiktok-video-download/:videoId/:filename", s.handleDownload)
	api.GET("/download-image", s.handleImage)
	api.GET("/health", s.handleHealth)

	s.engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, errorBody("not found"))
	})
	return s
}

// Handler returns the routed engine.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.opts.Listen,
		Handler:      s.engine,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // media streams can run long
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", s.opts.Listen))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serving on %s: %w", s.opts.Listen, err)
	case <-ctx.Done():
	}

	s.log.Info("shutting down", zap.Duration("drain", shutdownTimeout))
	shutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
