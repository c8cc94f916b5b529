package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/gray-logic-automata/internal/auth"
)

func newTokenCommand(rootOpts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage API bearer tokens",
	}

	cmd.AddCommand(newTokenMintCommand(rootOpts))
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tokens that are neither revoked nor expired",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTokenList(cmd, rootOpts)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "revoke <token-id>",
		Short: "Revoke a token by its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenRevoke(cmd, rootOpts, args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete expired token records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTokenPrune(cmd, rootOpts)
		},
	})

	return cmd
}

type tokenMintOptions struct {
	Subject string
	Role    string
	TTL     time.Duration
}

func newTokenMintCommand(rootOpts *rootOptions) *cobra.Command {
	opts := &tokenMintOptions{}

	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Issue a signed bearer token",
		Long: `Signs a token with security.jwt.secret and records it so it can be
listed and revoked. The token itself is printed once and never stored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTokenMint(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Subject, "subject", "", "who the token is for (required)")
	cmd.Flags().StringVar(&opts.Role, "role", string(auth.RoleViewer), "role granted (viewer|operator|admin)")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", 0, "token lifetime (default security.jwt.access_token_ttl)")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}

type mintedToken struct {
	Token     string    `json:"token"`
	ID        string    `json:"id"`
	Subject   string    `json:"subject"`
	Role      auth.Role `json:"role"`
	ExpiresAt time.Time `json:"expires_at"`
}

func runTokenMint(cmd *cobra.Command, opts *rootOptions, mint *tokenMintOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}

	role := auth.Role(mint.Role)
	if !auth.IsValidRole(role) {
		return fmt.Errorf("%w: %q", auth.ErrInvalidRole, mint.Role)
	}
	ttl := mint.TTL
	if ttl <= 0 {
		ttl = cfg.GetAccessTokenTTL()
	}

	db, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // single write

	signed, claims, err := auth.GenerateAccessToken(mint.Subject, role, cfg.Security.JWT.Secret, ttl)
	if err != nil {
		return err
	}
	record := claims.Record()
	if err := auth.NewTokenRepository(db.DB).Create(cmd.Context(), record); err != nil {
		return err
	}

	out := mintedToken{
		Token:     signed,
		ID:        record.ID,
		Subject:   record.Subject,
		Role:      record.Role,
		ExpiresAt: record.ExpiresAt,
	}

	p := newPrinter(opts, cmd.OutOrStdout())
	if p.json() {
		return p.JSON(out)
	}
	p.Println(out.Token)
	fmt.Fprintf(cmd.ErrOrStderr(), "token %s for %s (%s) expires %s\n",
		out.ID, out.Subject, out.Role, out.ExpiresAt.Local().Format(time.DateTime))
	return nil
}

func runTokenList(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	db, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // read-only command

	tokens, err := auth.NewTokenRepository(db.DB).ListActive(cmd.Context())
	if err != nil {
		return err
	}
	if tokens == nil {
		tokens = []auth.APIToken{}
	}

	p := newPrinter(opts, cmd.OutOrStdout())
	if p.json() {
		return p.JSON(tokens)
	}
	if len(tokens) == 0 {
		p.Println("No active tokens.")
		return nil
	}

	rows := make([][]string, 0, len(tokens))
	for _, t := range tokens {
		rows = append(rows, []string{
			t.ID,
			t.Subject,
			string(t.Role),
			t.ExpiresAt.Local().Format(time.DateTime),
		})
	}
	return p.Table([]string{"ID", "SUBJECT", "ROLE", "EXPIRES"}, rows)
}

func runTokenRevoke(cmd *cobra.Command, opts *rootOptions, id string) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	db, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // single write

	if err := auth.NewTokenRepository(db.DB).Revoke(cmd.Context(), id); err != nil {
		if errors.Is(err, auth.ErrTokenNotFound) {
			return fmt.Errorf("token %s not found", id)
		}
		return err
	}

	p := newPrinter(opts, cmd.OutOrStdout())
	if p.json() {
		return p.JSON(map[string]any{"id": id, "revoked": true})
	}
	p.Println("revoked " + id)
	return nil
}

func runTokenPrune(cmd *cobra.Command, opts *rootOptions) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		return err
	}
	db, err := openDatabase(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // single write

	n, err := auth.NewTokenRepository(db.DB).DeleteExpired(cmd.Context())
	if err != nil {
		return err
	}

	p := newPrinter(opts, cmd.OutOrStdout())
	if p.json() {
		return p.JSON(map[string]any{"deleted": n})
	}
	p.Println(fmt.Sprintf("deleted %d expired token(s)", n))
	return nil
}
