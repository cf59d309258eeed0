package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/eventmatch/pkg/logger"
)

// HTTPServer is the subset of *http.Server the HTTP service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs an HTTP server until its context ends.
type HTTPServerService struct {
	server          HTTPServer
	shutdownTimeout time.Duration
}

// NewHTTPServerService wraps server. A non-positive timeout defaults to 10s.
func NewHTTPServerService(server HTTPServer, shutdownTimeout time.Duration) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}
	return &HTTPServerService{server: server, shutdownTimeout: shutdownTimeout}
}

// Serve implements suture.Service.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
		defer cancel()
		if err := h.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

func (h *HTTPServerService) String() string { return "http-server" }

// Lifecycle is a component with explicit start and drain-aware stop.
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// DeliveryService starts the matching service and its delivery workers, and
// drains queued notifications on shutdown.
type DeliveryService struct {
	svc          Lifecycle
	drainTimeout time.Duration
	logger       logger.Logger
}

// NewDeliveryService wraps svc. A non-positive timeout defaults to 30s.
func NewDeliveryService(svc Lifecycle, drainTimeout time.Duration) *DeliveryService {
	if drainTimeout <= 0 {
		drainTimeout = 30 * time.Second
	}
	return &DeliveryService{svc: svc, drainTimeout: drainTimeout, logger: logger.Named("delivery")}
}

// Serve implements suture.Service. Workers run on a context that outlives
// ctx so queued notifications can drain after cancellation.
func (d *DeliveryService) Serve(ctx context.Context) error {
	if err := d.svc.Start(context.WithoutCancel(ctx)); err != nil {
		return fmt.Errorf("start delivery: %w", err)
	}
	<-ctx.Done()

	drainCtx, cancel := context.WithTimeout(context.Background(), d.drainTimeout)
	defer cancel()
	if err := d.svc.Stop(drainCtx); err != nil {
		d.logger.Warn(drainCtx, "delivery drain incomplete", logger.Error(err))
	}
	return ctx.Err()
}

func (d *DeliveryService) String() string { return "delivery" }

// Rebuilder refits the vector space from the store.
type Rebuilder interface {
	Rebuild(ctx context.Context) error
}

// RebuildService refits the vector space on an interval so rows written by
// other processes (for example the import command) become visible.
type RebuildService struct {
	rebuilder Rebuilder
	interval  time.Duration
	logger    logger.Logger
}

// NewRebuildService creates a periodic rebuild. interval must be positive.
func NewRebuildService(r Rebuilder, interval time.Duration) *RebuildService {
	return &RebuildService{rebuilder: r, interval: interval, logger: logger.Named("rebuild")}
}

// Serve implements suture.Service.
func (s *RebuildService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.rebuilder.Rebuild(ctx); err != nil {
				s.logger.Warn(ctx, "scheduled rebuild failed", logger.Error(err))
			}
		}
	}
}

func (s *RebuildService) String() string { return "rebuild" }
