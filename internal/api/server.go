// Package api exposes the trading desk over HTTP and WebSocket.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"optionDesk/internal/app"
	"optionDesk/internal/ports"
	"optionDesk/internal/stream"
)

// Config holds configuration for the HTTP server.
type Config struct {
	Addr    string
	GinMode string
	Logger  ports.Logger
}

// Server wires the services to gin routes.
type Server struct {
	trading  *app.TradingService
	accounts *app.AccountService
	hub      *stream.Hub
	logger   ports.Logger
	router   *gin.Engine
	httpSrv  *http.Server
}

// NewServer creates the HTTP server and registers every route.
func NewServer(cfg Config, trading *app.TradingService, accounts *app.AccountService, hub *stream.Hub) (*Server, error) {
	if cfg.Logger == nil || trading == nil || accounts == nil || hub == nil {
		return nil, fmt.Errorf("missing required dependencies for API server")
	}
	if cfg.GinMode != "" {
		gin.SetMode(cfg.GinMode)
	}

	s := &Server{
		trading:  trading,
		accounts: accounts,
		hub:      hub,
		logger:   cfg.Logger,
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	s.routes(r)
	s.router = r
	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func (s *Server) routes(r *gin.Engine) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "up", "pendingPositions": s.trading.Pending()})
	})
	r.GET("/ws/prices", s.streamPrices)

	api := r.Group("/api")
	api.POST("/accounts", s.register)
	api.POST("/sessions", s.login)
	api.GET("/instruments", s.instruments)
	api.GET("/prices", s.prices)
	api.GET("/prices/candles", s.candles)
	api.GET("/prices/studies", s.studies)

	authed := api.Group("", s.requireSession())
	authed.DELETE("/sessions", s.logout)
	authed.GET("/account", s.account)
	authed.POST("/account/deposits", s.deposit)
	authed.GET("/chart", s.chart)
	authed.PUT("/chart", s.updateChart)
	authed.POST("/positions", s.openPosition)
	authed.GET("/positions", s.listPositions)
	authed.GET("/positions/export", s.exportPositions)
	authed.GET("/positions/:id", s.getPosition)
	authed.GET("/stats", s.stats)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "HTTP server listening", map[string]interface{}{"addr": s.httpSrv.Addr})
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	s.logger.Info(ctx, "HTTP server stopped")
	return nil
}
