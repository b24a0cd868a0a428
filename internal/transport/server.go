package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/kursadbilgin/item-processor/internal/observability"
	"go.uber.org/zap"
)

const (
	defaultShutdownTimeout = 10 * time.Second
	// A processing run blocks its request until every item is done.
	defaultWriteTimeout = 5 * time.Minute
)

type ServerConfig struct {
	Name            string
	Port            int
	ShutdownTimeout time.Duration
	WriteTimeout    time.Duration
}

// HTTPServer owns the fiber app and its lifecycle.
type HTTPServer struct {
	cfg    ServerConfig
	app    *fiber.App
	logger *zap.Logger
}

func NewHTTPServer(cfg ServerConfig, metrics *observability.Metrics, logger *zap.Logger) *HTTPServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	app := fiber.New(fiber.Config{
		AppName:               cfg.Name,
		ErrorHandler:          ErrorHandler(logger),
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(metrics.HTTPMiddleware())

	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	return &HTTPServer{
		cfg:    cfg,
		app:    app,
		logger: logger,
	}
}

// Router exposes the root router so callers can register their routes.
func (s *HTTPServer) Router() fiber.Router {
	return s.app
}

func (s *HTTPServer) App() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *HTTPServer) Run(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, listener)
}

func (s *HTTPServer) Serve(ctx context.Context, listener net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", listener.Addr().String()))
		errCh <- s.app.Listener(listener)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("http server shutting down")
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}
