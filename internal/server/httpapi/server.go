// Package httpapi exposes the store of record over HTTP JSON: login and
// token refresh, plus per-tenant record fetch/push/delete used by the
// device sync engine.
package httpapi

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/spcopeland72-crypto/canny-carrot/internal/logging"
	"github.com/spcopeland72-crypto/canny-carrot/internal/server/config"
	"github.com/spcopeland72-crypto/canny-carrot/internal/server/repositories/records"
	"github.com/spcopeland72-crypto/canny-carrot/internal/server/services"
)

type Server struct {
	echo     *echo.Echo
	config   *config.Config
	log      logging.Logger
	accounts *services.AccountService
	records  records.Repository
}

func NewServer(cfg *config.Config, log logging.Logger, accounts *services.AccountService, recs records.Repository) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	s := &Server{
		echo:     e,
		config:   cfg,
		log:      log,
		accounts: accounts,
		records:  recs,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.echo.Group("/api")

	api.GET("/ping", s.ping)
	api.POST("/register", s.register)
	api.POST("/login", s.login)
	api.POST("/refresh", s.refresh)

	tenants := api.Group("/tenants/:tenant", s.authMiddleware)
	tenants.GET("", s.getTenantProfile)
	tenants.GET("/:collection", s.listIDs)
	tenants.GET("/:collection/:id", s.getRecord)
	tenants.PUT("/:collection/:id", s.putRecord)
	tenants.DELETE("/:collection/:id", s.deleteRecord)
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.echo.Start(s.config.EndpointAddr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.log.Info(ctx, "shutting down http server")
		return s.echo.Shutdown(context.Background())
	}
}
