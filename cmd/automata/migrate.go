package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-automata/internal/infrastructure/database"
)

func newMigrateCommand(rootOpts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, rootOpts, func(db *database.DB) error {
				return db.Migrate(cmd.Context())
			})
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, rootOpts, func(db *database.DB) error {
				return db.MigrateDown(cmd.Context())
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, rootOpts, nil)
		},
	})

	return cmd
}

type migrationStatus struct {
	Version   string     `json:"version"`
	Name      string     `json:"name,omitempty"`
	AppliedAt *time.Time `json:"applied_at,omitempty"`
}

// runMigrate opens the database without migrating, applies op if given
// and prints the resulting status.
func runMigrate(cmd *cobra.Command, opts *rootOptions, op func(*database.DB) error) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close() //nolint:errcheck // read-mostly command

	if op != nil {
		if err := op(db); err != nil {
			return err
		}
	}

	applied, pending, err := db.GetMigrationStatus(cmd.Context())
	if err != nil {
		return err
	}

	out := make([]migrationStatus, 0, len(applied)+len(pending))
	for _, r := range applied {
		at := r.AppliedAt
		out = append(out, migrationStatus{Version: r.Version, AppliedAt: &at})
	}
	for _, m := range pending {
		out = append(out, migrationStatus{Version: m.Version, Name: m.Name})
	}

	p := newPrinter(opts, cmd.OutOrStdout())
	if p.json() {
		return p.JSON(out)
	}

	rows := make([][]string, 0, len(out))
	for _, m := range out {
		state := "pending"
		if m.AppliedAt != nil {
			state = "applied " + m.AppliedAt.Format(time.RFC3339)
		}
		rows = append(rows, []string{m.Version, state})
	}
	return p.Table([]string{"VERSION", "STATE"}, rows)
}
