package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/matheus3301/zfetch/internal/status"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const opsShutdownTimeout = 5 * time.Second

// OpsServer serves /metrics and /healthz over TCP. It is disabled when the
// session has no metrics_addr.
type OpsServer struct {
	echo     *echo.Echo
	addr     string
	listener net.Listener
	logger   *zap.Logger
}

// HealthReply is the /healthz body.
type HealthReply struct {
	State status.State `json:"state"`
	Since time.Time    `json:"since"`
}

// NewOpsServer builds the HTTP handler. Nothing listens until Start.
func NewOpsServer(addr string, reg *prometheus.Registry, machine *status.Machine, logger *zap.Logger) *OpsServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})))
	e.GET("/healthz", func(c echo.Context) error {
		reply := HealthReply{State: machine.Current(), Since: machine.Since()}
		code := http.StatusOK
		if reply.State == status.Error {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, reply)
	})

	return &OpsServer{echo: e, addr: addr, logger: logger}
}

// Handler exposes the routes for in-process use.
func (s *OpsServer) Handler() http.Handler {
	return s.echo
}

// Start binds the address and serves in the background.
func (s *OpsServer) Start() error {
	if s.addr == "" {
		s.logger.Info("ops server disabled")
		return nil
	}
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.listener = lis
	s.echo.Listener = lis
	s.logger.Info("ops server starting", zap.String("addr", lis.Addr().String()))
	go func() {
		if err := s.echo.Start(""); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("ops server error", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *OpsServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *OpsServer) Stop(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, opsShutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown ops server: %w", err)
	}
	return nil
}
