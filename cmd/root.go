package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/okian/eventmatch/internal/adapters/notify"
	"github.com/okian/eventmatch/internal/adapters/repository"
	service "github.com/okian/eventmatch/internal/app"
	"github.com/okian/eventmatch/internal/config"
	"github.com/okian/eventmatch/internal/domain/predict"
	"github.com/okian/eventmatch/pkg/logger"
)

// rootOptions carries the persistent flags and the configuration they load.
type rootOptions struct {
	configFile string
	logLevel   string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "eventmatch",
		Short:        "Recommend events by description similarity and forecast user interests",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd.Context())
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configFile, "config", os.Getenv(config.EnvConfigFile), "YAML configuration file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log_level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newImportCmd(opts),
		newRecommendCmd(opts),
		newPredictCmd(opts),
		newSubmitCmd(opts),
		newLoadTestCmd(),
	)
	return cmd
}

// load reads configuration (defaults -> optional file -> env) and applies
// the log level.
func (o *rootOptions) load(ctx context.Context) error {
	cfg, err := config.LoadFile(ctx, o.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	o.cfg = cfg
	return nil
}

// openStore opens the configured SQLite database.
func openStore(ctx context.Context, cfg *config.Config) (*repository.SQLiteStore, error) {
	store, err := repository.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	return store, nil
}

// newSink selects the SMTP relay when one is configured and the log sink
// otherwise, behind a rate limit and circuit breaker.
func newSink(cfg *config.Config) (*notify.Guard, error) {
	var next notify.Sink = notify.NewLogSink()
	if cfg.SMTPHost != "" {
		mailer, err := notify.NewSMTPMailer(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
			FromName: cfg.SMTPFromName,
			UseTLS:   cfg.SMTPUseTLS,
		})
		if err != nil {
			return nil, fmt.Errorf("smtp sink: %w", err)
		}
		next = mailer
	}
	return notify.NewGuard(next,
		notify.WithBreakerName("notify"),
		notify.WithFailureThreshold(cfg.BreakerFailureThreshold),
		notify.WithBreakerTimeout(cfg.BreakerTimeout()),
		notify.WithRateLimit(cfg.NotifyRatePerSecond, cfg.NotifyBurst),
	), nil
}

// newService builds the matching service from configuration.
func newService(cfg *config.Config, store repository.Store, sink *notify.Guard) *service.Service {
	return service.New(store, sink,
		service.WithLogger(logger.Named("service")),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithBroadcastConcurrency(cfg.BroadcastConcurrency),
		service.WithThreshold(cfg.BroadcastThreshold),
		service.WithRandomSeed(cfg.RandomSeed),
		service.WithDeliveryTimeout(cfg.DeliveryTimeout()),
		service.WithAnnealerOptions(
			predict.WithInitialTemperature(cfg.AnnealInitialTemperature),
			predict.WithCoolingFactor(cfg.AnnealCoolingFactor),
			predict.WithMinTemperature(cfg.AnnealMinTemperature),
			predict.WithSamplesPerLevel(cfg.AnnealSamplesPerLevel),
		),
	)
}

// bootstrap opens the store and starts a service over it. The returned
// cleanup drains deliveries and closes the store.
func bootstrap(ctx context.Context, cfg *config.Config) (*service.Service, func(), error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	sink, err := newSink(cfg)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	svc := newService(cfg, store, sink)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("start service: %w", err)
	}
	cleanup := func() {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.DeliveryTimeout())
		defer cancel()
		if err := svc.Stop(drainCtx); err != nil {
			logger.Get().Warn(drainCtx, "delivery drain incomplete", logger.Error(err))
		}
		_ = store.Close()
	}
	return svc, cleanup, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
