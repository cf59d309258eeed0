package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/eventmatch/internal/adapters/http/api"
	"github.com/okian/eventmatch/internal/adapters/http/site"
	"github.com/okian/eventmatch/internal/adapters/http/swagger"
	service "github.com/okian/eventmatch/internal/app"
	"github.com/okian/eventmatch/internal/config"
	"github.com/okian/eventmatch/internal/supervisor"
	"github.com/okian/eventmatch/pkg/logger"
)

// HTTP server timeout constants.
const (
	readTimeout            = 10 * time.Second
	writeTimeout           = 60 * time.Second
	idleTimeout            = 60 * time.Second
	readHeaderTimeout      = 5 * time.Second
	shutdownTimeout        = 30 * time.Second
	serviceMetricsInterval = 5 * time.Second
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API, the submission site and the API docs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), opts.cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	sink, err := newSink(cfg)
	if err != nil {
		return err
	}
	svc := newService(cfg, store, sink)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(ctx, svc),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	tree := supervisor.NewTree(logger.Slog(), supervisor.DefaultTreeConfig())
	tree.AddCoreService(supervisor.NewDeliveryService(svc, cfg.DeliveryTimeout()))
	if interval := cfg.RebuildInterval(); interval > 0 {
		tree.AddCoreService(supervisor.NewRebuildService(svc, interval))
	}
	tree.AddAPIService(supervisor.NewHTTPServerService(srv, shutdownTimeout))

	go startServiceMetricsUpdater(ctx, svc)

	log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
	err = tree.Serve(ctx)

	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, u := range report {
			log.Warn(context.Background(), "service did not stop in time", logger.String("service", u.Name))
		}
	}
	log.Info(context.Background(), "server stopped")

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// newRouter mounts the JSON API, the HTML site and the API docs.
func newRouter(ctx context.Context, svc *service.Service) http.Handler {
	r := api.NewRouter()
	api.NewServer(svc).Register(ctx, r)
	site.Register(ctx, r, svc)
	swagger.Register(ctx, r)
	return r
}

// startServiceMetricsUpdater refreshes the queue and worker gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// GetStats publishes the gauges as a side effect.
			_ = svc.GetStats()
		}
	}
}
