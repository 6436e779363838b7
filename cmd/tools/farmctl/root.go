package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zhouzirui/farm-assistant/backend/internal/app"
	"github.com/zhouzirui/farm-assistant/backend/internal/config"
	"github.com/zhouzirui/farm-assistant/backend/internal/logging"
)

// rootOptions are the flags shared by every subcommand.
type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "farmctl",
		Short: "Command-line companion for the farm assistant backend",
		Long: `farmctl runs the farming assistant locally against the same settings
store as the API server.

Quick Start:
  farmctl suggestions                          # list the quick questions
  farmctl credentials set --api-key hf_xxx     # enable AI answers
  farmctl ask "When should I plant corn?"      # ask one question`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: failed to load .env file: %v\n", err)
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("FARM_CONFIG"), "path to a TOML config file")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log to stderr")

	cmd.AddCommand(
		newAskCmd(opts),
		newCredentialsCmd(opts),
		newSuggestionsCmd(),
	)
	return cmd
}

// open loads the configuration and wires the services. The caller closes the app.
func (o *rootOptions) open(ctx context.Context) (*app.App, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}

	logger := zap.NewNop()
	if o.verbose {
		if logger, err = logging.New(cfg.Log.Level, logging.FormatConsole); err != nil {
			return nil, err
		}
	}
	return app.New(ctx, cfg, logger)
}
