package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/devjobs/devjobs-api/internal/api"
	"github.com/devjobs/devjobs-api/internal/api/metrics"
	"github.com/devjobs/devjobs-api/internal/infrastructure/seed"
	"github.com/devjobs/devjobs-api/internal/infrastructure/worker"
	"github.com/devjobs/devjobs-api/pkg/logger"
)

const defaultShutdownTimeout = 10 * time.Second

type serveConfig struct {
	shutdownTimeout time.Duration
}

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cfg := &serveConfig{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the DevJobs HTTP API. Configuration is read from the environment;
ADMIN_SEED_FILE, when set, is applied before the listener opens.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, args, cfg)
		},
	}

	cmd.Flags().DurationVar(&cfg.shutdownTimeout, "shutdown-timeout", defaultShutdownTimeout, "grace period for in-flight requests on shutdown")

	return cmd
}

// runServe wires the API and blocks until the command context is cancelled.
//
//	@title						DevJobs API
//	@version					1.0
//	@description				Job listings API with bearer-token authentication and role-based access.
//	@BasePath					/api
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
func runServe(cmd *cobra.Command, _ []string, cfg *serveConfig) error {
	ctx := cmd.Context()

	a, err := newApp(ctx, storeKind)
	if err != nil {
		return err
	}
	defer a.Close()

	if path := a.cfg.Auth.AdminSeedFile; path != "" {
		res, err := seed.FromFile(ctx, path, a.auth)
		if err != nil {
			return err
		}
		a.log.Info().Int("created", res.Created).Int("skipped", res.Skipped).Str("file", path).Msg("admin seed applied")
	}

	e, _, err := api.NewRouter(api.Options{
		Prefix:      a.cfg.APIPrefix,
		AuthService: a.auth,
		Log:         logger.Component("http"),
		Checks:      a.checks,
		LoginRate:   a.cfg.Auth.LoginRatePerSecond,
		LoginBurst:  a.cfg.Auth.LoginRateBurst,
	})
	if err != nil {
		return err
	}

	workCtx, stopWork := context.WithCancel(ctx)
	defer stopWork()

	var sweeper *worker.Sweeper
	if interval := a.cfg.Auth.TokenSweepInterval; interval > 0 {
		sweeper = worker.NewSweeper(interval, a.auth, func(n int64) {
			metrics.ExpiredTokensPurgedTotal.Add(float64(n))
		}, logger.Component("token_sweeper"))
		sweeper.Start(workCtx)
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info().Str("port", a.cfg.Port).Str("prefix", a.cfg.APIPrefix).Msg("http server listening")
		if err := e.Start(":" + a.cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		a.log.Info().Msg("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("http server shutdown failed")
	}

	stopWork()
	if sweeper != nil {
		sweeper.Wait()
	}
	a.log.Info().Msg("server stopped")
	return nil
}
