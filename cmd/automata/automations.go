package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-automata/internal/capability"
	"github.com/nerrad567/gray-logic-automata/internal/step"
)

func newAutomationsCommand(rootOpts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "automations",
		Aliases: []string{"automation"},
		Short:   "Inspect stored automations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List automations with their steps",
		Long: `Lists every automation in store order. Readiness is not shown: it
depends on live subscriptions only the running service has. Use
GET /api/v1/automations for that.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runAutomationsList(cmd, rootOpts)
		},
	})

	return cmd
}

type automationRow struct {
	ID      string       `json:"id"`
	Title   string       `json:"title"`
	Trigger string       `json:"trigger,omitempty"`
	Action  string       `json:"action,omitempty"`
	Issues  []step.Issue `json:"issues"`
}

func runAutomationsList(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	a, err := openApp(cmd.Context(), cfg, commandLogger(cfg, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer a.Close() //nolint:errcheck // read-only command

	all, err := a.store.All(cmd.Context())
	if err != nil {
		return err
	}

	// Offline, every capability is ungranted: only structural issues
	// (missing slots) are meaningful here.
	env := capability.New(nil)
	rows := make([]automationRow, 0, len(all))
	for _, au := range all {
		row := automationRow{ID: au.ID.String(), Title: au.Title, Issues: []step.Issue{}}
		if au.Trigger != nil {
			row.Trigger = au.Trigger.Descriptor().Discriminator()
		}
		if au.Action != nil {
			row.Action = au.Action.Descriptor().Discriminator()
		}
		for _, issue := range au.Issues(env) {
			if issue.Capability == "" {
				row.Issues = append(row.Issues, issue)
			}
		}
		rows = append(rows, row)
	}

	p := newPrinter(opts, cmd.OutOrStdout())
	if p.json() {
		return p.JSON(rows)
	}
	if len(rows) == 0 {
		p.Println("No automations.")
		return nil
	}

	table := make([][]string, 0, len(rows))
	for _, r := range rows {
		table = append(table, []string{r.ID, r.Title, dash(r.Trigger), dash(r.Action), strconv.Itoa(len(r.Issues))})
	}
	if err := p.Table([]string{"ID", "TITLE", "TRIGGER", "ACTION", "ISSUES"}, table); err != nil {
		return err
	}
	p.Println(fmt.Sprintf("%d automation(s)", len(rows)))
	return nil
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
