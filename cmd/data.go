package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/eventmatch/internal/adapters/repository"
	"github.com/okian/eventmatch/internal/domain/model"
	"github.com/okian/eventmatch/internal/domain/types"
	"github.com/okian/eventmatch/pkg/logger"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Load the seed CSV files into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if dir == "" {
				dir = opts.cfg.SeedDir
			}
			store, err := openStore(ctx, opts.cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := repository.Import(ctx, store, dir)
			if err != nil {
				return fmt.Errorf("import %s: %w", dir, err)
			}
			logger.Get().Info(ctx, "import complete",
				logger.String("dir", dir),
				logger.Int("events", stats.Events),
				logger.Int("users", stats.Users),
				logger.Int("participation", stats.Participation),
				logger.Int("interests", stats.Interests))
			return printJSON(cmd.OutOrStdout(), stats)
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "directory holding the CSV files (default seed_dir)")
	return cmd
}

func newRecommendCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recommend <user-id>",
		Short: "Print the best unattended event for a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			svc, cleanup, err := bootstrap(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			rec, err := svc.Recommend(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), rec)
		},
	}
}

func newPredictCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "predict <user-id>",
		Short: "Forecast a user's next dominant interest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseUserID(args[0])
			if err != nil {
				return err
			}
			svc, cleanup, err := bootstrap(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			p, err := svc.Predict(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), p)
		},
	}
}

func newSubmitCmd(opts *rootOptions) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "submit <name> [date]",
		Short: "Add an event and notify users whose interest matches it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var date time.Time
			if len(args) == 2 {
				d, err := time.Parse(model.DateLayout, args[1])
				if err != nil {
					return fmt.Errorf("date must be %s: %w", model.DateLayout, err)
				}
				date = d
			}
			svc, cleanup, err := bootstrap(cmd.Context(), opts.cfg)
			if err != nil {
				return err
			}
			// cleanup drains the notifications queued by the broadcast.
			defer cleanup()

			event, rows, err := svc.SubmitEvent(cmd.Context(), args[0], description, date)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), struct {
				Event      model.Event       `json:"event"`
				Portfolios []types.Portfolio `json:"portfolios"`
			}{Event: event, Portfolios: rows})
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "event description (default the name)")
	return cmd
}

func parseUserID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid user id %q", raw)
	}
	return id, nil
}
