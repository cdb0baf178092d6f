package main

import (
	"github.com/spf13/cobra"
)

// Global flags available to all subcommands.
var storeKind string

// NewRootCmd creates the root command for the DevJobs CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devjobs",
		Short: "DevJobs API - job listings with token authentication",
		Long: `DevJobs serves the job-listings REST API and carries the operator
commands for its identity store: provisioning admins, seeding and token
maintenance.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&storeKind, "store", storeMongo, "credential store backend (mongo or memory)")

	cmd.AddCommand(NewServeCmd())
	cmd.AddCommand(NewCreateAdminCmd())
	cmd.AddCommand(NewSeedCmd())
	cmd.AddCommand(NewTokensCmd())
	cmd.AddCommand(NewRoutesCmd())

	return cmd
}
