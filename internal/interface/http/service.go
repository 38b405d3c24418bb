package httpservice

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Flowerbox-Finance/Flowerbox-Finance/internal/config"
	interfaces "github.com/Flowerbox-Finance/Flowerbox-Finance/internal/interface"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	log "github.com/sirupsen/logrus"
)

const (
	bodyLimit       = "1M"
	shutdownTimeout = 5 * time.Second
)

type service struct {
	version       string
	config        Config
	appConfig     *config.Config
	server        *echo.Echo
	adminServer   *echo.Echo
	appSvcStarted atomic.Bool
}

func NewService(
	version string, svcConfig Config, appConfig *config.Config,
) (interfaces.Service, error) {
	if err := svcConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid service config: %s", err)
	}
	if err := appConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid app config: %s", err)
	}

	h := newHandler(
		version, appConfig.VaultService(), appConfig.LedgerService(),
		appConfig.MintAuthorityService(),
	)
	server, adminServer := newServers(h, svcConfig, appConfig.AdminAddress)

	return &service{
		version:     version,
		config:      svcConfig,
		appConfig:   appConfig,
		server:      server,
		adminServer: adminServer,
	}, nil
}

func (s *service) Start() error {
	if err := s.startAppServices(); err != nil {
		return err
	}

	go s.serve(s.server, s.config.address())
	log.Infof("started listening at %s", s.config.address())

	if s.adminServer != nil {
		go s.serve(s.adminServer, s.config.adminAddress())
		log.Infof("started admin listening at %s", s.config.adminAddress())
	}
	return nil
}

func (s *service) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("failed to gracefully shutdown server")
	}
	if s.adminServer != nil {
		if err := s.adminServer.Shutdown(ctx); err != nil {
			log.WithError(err).Warn("failed to gracefully shutdown admin server")
		}
	}

	if s.appSvcStarted.CompareAndSwap(true, false) {
		s.appConfig.VaultService().Stop()
		s.appConfig.LedgerClock().Stop()
		s.appConfig.TokenLedger().Close()
		log.Info("stopped app services")
	}
	log.Info("shutdown service")
}

func (s *service) serve(e *echo.Echo, address string) {
	if err := e.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Errorf("server listening at %s stopped", address)
	}
}

func (s *service) startAppServices() error {
	if !s.appSvcStarted.CompareAndSwap(false, true) {
		// app already started, skip
		return nil
	}

	if err := s.appConfig.LedgerClock().Start(); err != nil {
		s.appSvcStarted.Store(false)
		return fmt.Errorf("failed to start ledger clock: %w", err)
	}
	if err := s.appConfig.MintAuthorityService().Start(); err != nil {
		s.appSvcStarted.Store(false)
		return fmt.Errorf("failed to start mint authority service: %w", err)
	}
	if err := s.appConfig.VaultService().Start(); err != nil {
		s.appSvcStarted.Store(false)
		return fmt.Errorf("failed to start vault service: %w", err)
	}
	log.Info("started app services")
	return nil
}

// newServers returns the public server and, when the admin port differs from
// the public one, a dedicated admin server. Otherwise the admin routes are
// served by the public server.
func newServers(h *handler, cfg Config, admin string) (*echo.Echo, *echo.Echo) {
	server := newEcho()
	server.Use(middleware.CORS())
	h.registerPublicRoutes(server.Group("/v1"))

	adminHost := server
	var adminServer *echo.Echo
	if cfg.hasAdminPort() {
		adminServer = newEcho()
		adminHost = adminServer
	}
	h.registerAdminRoutes(
		adminHost.Group("/v1/admin", requireAdmin(admin)), !cfg.NoLedgerFaucet,
	)

	return server, adminServer
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler
	e.Use(requestLogger, panicRecovery)
	e.Use(middleware.BodyLimit(bodyLimit))
	return e
}
