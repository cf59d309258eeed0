package main

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/eventmatch/internal/loadtest"
)

// Default load test constants.
const (
	defaultLoadEvents  = 1000
	defaultLoadUsers   = 100
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultLoadTimeout = 30 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func newLoadTestCmd() *cobra.Command {
	cfg := loadtest.Config{}
	var total time.Duration

	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Submit synthetic events to a running server and verify its recommendations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), total)
			defer cancel()

			stats, err := loadtest.Run(ctx, cfg)
			if err != nil {
				return err
			}
			if err := printJSON(cmd.OutOrStdout(), stats); err != nil {
				return err
			}
			if n := len(stats.Violations); n > 0 {
				return fmt.Errorf("%d recommendation checks failed", n)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "base URL of the service")
	f.IntVar(&cfg.NumEvents, "events", defaultLoadEvents, "number of events to generate and submit")
	f.IntVar(&cfg.NumUsers, "users", defaultLoadUsers, "recommendations are sampled for users 1..N")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*defaultWorkers, "number of concurrent requests")
	f.Float64Var(&cfg.RatePerSecond, "rate", 0, "request rate cap per second (0 is unlimited)")
	f.DurationVar(&cfg.Timeout, "timeout", defaultLoadTimeout, "HTTP request timeout")
	f.Int64Var(&cfg.Seed, "seed", 0, "generator seed (0 picks one)")
	f.StringVar(&cfg.OutputFile, "output", "", "save generated events to this JSON file")
	f.DurationVar(&total, "deadline", defaultTestTimeout, "overall run deadline")
	return cmd
}
