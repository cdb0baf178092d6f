package main

import (
	"time"

	"github.com/spf13/cobra"
)

// NewTokensCmd creates the tokens command group.
func NewTokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Bearer token maintenance",
	}
	cmd.AddCommand(newTokensPurgeCmd())
	cmd.AddCommand(newTokensIssueCmd())
	return cmd
}

func newTokensPurgeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge",
		Short: "Clear every expired token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), storeKind)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.auth.CleanExpiredTokens(cmd.Context())
			if err != nil {
				return err
			}
			cmd.Printf("cleared %d expired token(s)\n", n)
			return nil
		},
	}
}

func newTokensIssueCmd() *cobra.Command {
	var (
		id  int64
		ttl time.Duration
	)

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Issue a token for an identity, replacing its current one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), storeKind)
			if err != nil {
				return err
			}
			defer a.Close()

			identity, err := a.auth.FindIdentity(cmd.Context(), id)
			if err != nil {
				return err
			}
			session, err := a.auth.IssueToken(cmd.Context(), identity, ttl)
			if err != nil {
				return err
			}
			cmd.Printf("token: %s\nexpires: %s\n", session.Token, session.ExpiresAt.UTC().Format(time.RFC3339))
			return nil
		},
	}

	cmd.Flags().Int64Var(&id, "id", 0, "identity id")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to TOKEN_TTL)")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}
