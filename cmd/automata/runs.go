package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-automata/internal/audit"
)

func newRunsCommand(rootOpts *rootOptions) *cobra.Command {
	var state string
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [automation-id]",
		Short: "Show the audit log",
		Long: `Shows recorded runs, newest first. With an automation id, every run
of that automation is listed; without one, the latest runs of all
automations are listed a page at a time.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := audit.Filter{State: audit.State(state), Limit: limit}
			if filter.State != "" && !filter.State.Valid() {
				return fmt.Errorf("invalid state %q: must be DONE, ERROR or SKIPPED", state)
			}
			if len(args) == 1 {
				id, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid automation id %q: %w", args[0], err)
				}
				filter.Automation = id
			}
			return runRuns(cmd, rootOpts, filter)
		},
	}

	cmd.Flags().StringVar(&state, "state", "", "only show runs in this state (DONE|ERROR|SKIPPED)")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum number of runs when listing all automations")

	return cmd
}

func runRuns(cmd *cobra.Command, opts *rootOptions, filter audit.Filter) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	db, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // read-only command

	repo := audit.NewSQLiteRepository(db.DB)

	var entries []audit.Entry
	if filter.Automation != uuid.Nil {
		all, err := repo.ListPreviousRuns(cmd.Context(), filter.Automation)
		if err != nil {
			return err
		}
		for _, e := range all {
			if filter.State == "" || e.State == filter.State {
				entries = append(entries, e)
			}
		}
	} else {
		page, err := repo.List(cmd.Context(), filter)
		if err != nil {
			return err
		}
		entries = page.Entries
	}
	if entries == nil {
		entries = []audit.Entry{}
	}

	p := newPrinter(opts, cmd.OutOrStdout())
	if p.json() {
		return p.JSON(entries)
	}
	if len(entries) == 0 {
		p.Println("No runs recorded.")
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			e.CreatedAt.Local().Format(time.DateTime),
			e.Automation.String(),
			string(e.State),
			dash(e.ErrorMessage()),
		})
	}
	return p.Table([]string{"ID", "CREATED", "AUTOMATION", "STATE", "ERROR"}, rows)
}
