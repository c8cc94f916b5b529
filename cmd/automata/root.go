package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-automata/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-automata/internal/infrastructure/logging"
)

// rootOptions holds the global flags.
type rootOptions struct {
	ConfigPath string
	Format     string // "text" | "json"
}

var validFormats = []string{"text", "json"}

// newRootCommand builds the automata command tree. Running it without a
// subcommand is the same as "automata serve".
func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "automata",
		Short: "Gray Logic automation service",
		Long: `Runs trigger/action automations against SMS, notification and
device state events, and records every run in an audit log.`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "",
		"config file (default $GRAYLOGIC_CONFIG or "+defaultConfigPath+")")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json)")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newAutomationsCommand(opts))
	cmd.AddCommand(newRunsCommand(opts))
	cmd.AddCommand(newRetryCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))

	return cmd
}

// configPath resolves --config, then GRAYLOGIC_CONFIG, then the default.
// explicit is false only for the default.
func (o *rootOptions) configPath() (path string, explicit bool) {
	if o.ConfigPath != "" {
		return o.ConfigPath, true
	}
	if p := os.Getenv("GRAYLOGIC_CONFIG"); p != "" {
		return p, true
	}
	return defaultConfigPath, false
}

// loadConfig reads the configuration. A missing default file falls back
// to the built-in defaults; a missing explicit file is an error.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	path, explicit := o.configPath()

	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return config.Default()
	}
	return nil, fmt.Errorf("loading config %s: %w", path, err)
}

// commandLogger logs to stderr so command output on stdout stays clean.
func commandLogger(cfg *config.Config, w io.Writer) *logging.Logger {
	return logging.NewWithWriter(cfg.Logging, version, w)
}
