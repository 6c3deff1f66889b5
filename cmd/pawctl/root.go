package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"pawplan/internal/bootstrap"
	"pawplan/internal/config"
	"pawplan/internal/infra/logging"
)

type options struct {
	configPath string
	dev        bool
	verbose    bool
	logger     *zerolog.Logger
}

type commandContextKey struct{}

type commandContext struct {
	correlationID string
	startedAt     time.Time
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "pawctl",
		Short:         "Operate the meal plan service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := "warn"
			if opts.verbose {
				level = "debug"
			}
			opts.logger = logging.New(config.LogConfig{Level: level, Format: "console"}, opts.dev)
			info := commandContext{correlationID: uuid.NewString(), startedAt: time.Now()}
			ctx := logging.WithTraceID(cmd.Context(), info.correlationID)
			cmd.SetContext(context.WithValue(ctx, commandContextKey{}, info))
			opts.logger.Debug().Str("command", cmd.CommandPath()).Str("correlation_id", info.correlationID).Msg("command start")
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			info, ok := cmd.Context().Value(commandContextKey{}).(commandContext)
			if !ok {
				return
			}
			opts.logger.Debug().
				Str("command", cmd.CommandPath()).
				Str("correlation_id", info.correlationID).
				Dur("duration", time.Since(info.startedAt)).
				Msg("command end")
		},
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "config file path")
	root.PersistentFlags().BoolVar(&opts.dev, "dev", false, "development mode")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	root.AddCommand(
		newCleanupPlansCmd(opts),
		newSyncSubscriptionCmd(opts),
		newQuoteCmd(opts),
		newCheckZipCmd(opts),
	)
	return root
}

// connect loads the full config and wires the stores. Commands that touch data use it.
func (o *options) connect(ctx context.Context) (*bootstrap.App, error) {
	cfg, err := config.Load(o.configPath, o.dev)
	if err != nil {
		return nil, err
	}
	return bootstrap.Build(ctx, cfg, o.logger)
}
