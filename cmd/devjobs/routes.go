package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/devjobs/devjobs-api/internal/api"
	"github.com/devjobs/devjobs-api/internal/pkg/config"
)

// NewRoutesCmd creates the routes subcommand.
func NewRoutesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes",
		Short: "Print the API routes with their access policy",
		Long: `Builds the router without connecting to any backend and prints every
declared API route, where its policy comes from and the roles it requires.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}

			_, registry, err := api.NewRouter(api.Options{
				Prefix:  cfg.APIPrefix,
				Log:     zerolog.Nop(),
				Metrics: prometheus.NewRegistry(),
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "METHOD\tPATH\tPOLICY\tROLES")
			for _, r := range registry.Routes() {
				roles := strings.Join(r.Roles, ",")
				if roles == "" {
					roles = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Method, r.Path, r.Level, roles)
			}
			return w.Flush()
		},
	}
}
