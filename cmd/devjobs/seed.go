package main

import (
	"github.com/spf13/cobra"

	"github.com/devjobs/devjobs-api/internal/infrastructure/seed"
)

// NewSeedCmd creates the seed subcommand.
func NewSeedCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Provision identities from a YAML file",
		Long: `Creates every identity listed in the file. Entries whose email already
exists are skipped, so the command is safe to run repeatedly.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), storeKind)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := seed.FromFile(cmd.Context(), file, a.auth)
			if err != nil {
				return err
			}
			cmd.Printf("seed complete: %d created, %d skipped\n", res.Created, res.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "path to the YAML seed file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
