// Package status serves the control loop's latest outcome as JSON.
package status

import (
	"context"
	"net/http"
	"time"

	"codeberg.org/mutker/ipmifanctl/internal/control"
	"codeberg.org/mutker/ipmifanctl/internal/errors"
	"codeberg.org/mutker/ipmifanctl/internal/logger"
	"github.com/gin-gonic/gin"
)

const readHeaderTimeout = 5 * time.Second

// Source provides the status to report.
type Source interface {
	Status() control.Status
}

type Server struct {
	srv    *http.Server
	logger logger.Logger
}

func NewServer(addr string, src Source, log logger.Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           newRouter(src),
			ReadHeaderTimeout: readHeaderTimeout,
		},
		logger: log,
	}
}

func newRouter(src Source) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, src.Status())
	})

	return router
}

// ListenAndServe blocks until the server fails or Shutdown is called. A
// regular shutdown returns nil.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("addr", s.srv.Addr).Msg("Status server listening")

	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New().Wrap(ErrServeFailed, err)
	}

	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.srv.Shutdown(ctx); err != nil {
		return errors.New().Wrap(ErrShutdownFailed, err)
	}

	return nil
}
