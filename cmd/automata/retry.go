package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-automata/internal/audit"
	"github.com/nerrad567/gray-logic-automata/internal/automation"
	"github.com/nerrad567/gray-logic-automata/internal/capability"
)

func newRetryCommand(rootOpts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "retry <run-id>",
		Short: "Re-run a recorded run with its stored data",
		Long: `Re-executes the automation of a recorded run, starting from the data
the run began with. The retry is recorded as a new run.

Only steps that need no live capability can succeed from the command
line; device and bus actions need the running service (POST
/api/v1/runs/{id}/retry).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid run id %q", args[0])
			}
			return runRetry(cmd, rootOpts, id)
		},
	}
}

func runRetry(cmd *cobra.Command, opts *rootOptions, id int64) error {
	ctx := cmd.Context()

	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	log := commandLogger(cfg, cmd.ErrOrStderr())

	a, err := openApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // errors logged by the store

	runs := audit.NewSQLiteRepository(a.db.DB)
	entry, err := runs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, audit.ErrEntryNotFound) {
			return fmt.Errorf("run %d not found", id)
		}
		return err
	}

	env := capability.New(nil)
	engine := automation.NewEngine(a.store, runs, env)
	engine.SetLogger(log.Component("engine"))

	result, err := engine.RetryWait(ctx, *entry)
	if err != nil {
		if errors.Is(err, automation.ErrAutomationNotFound) {
			return fmt.Errorf("automation %s of run %d no longer exists", entry.Automation, id)
		}
		return err
	}

	p := newPrinter(opts, cmd.OutOrStdout())
	if p.json() {
		return p.JSON(result)
	}
	p.Println(fmt.Sprintf("run %d retried as run %d: %s", id, result.ID, result.State))
	if msg := result.ErrorMessage(); msg != "" {
		p.Println("error: " + msg)
	}
	return nil
}
