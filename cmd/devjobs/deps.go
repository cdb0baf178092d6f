package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/devjobs/devjobs-api/internal/api/handler"
	"github.com/devjobs/devjobs-api/internal/core/ports"
	"github.com/devjobs/devjobs-api/internal/core/service"
	"github.com/devjobs/devjobs-api/internal/infrastructure/db/memory"
	mongodb "github.com/devjobs/devjobs-api/internal/infrastructure/db/mongo"
	redisdb "github.com/devjobs/devjobs-api/internal/infrastructure/db/redis"
	"github.com/devjobs/devjobs-api/internal/infrastructure/security"
	"github.com/devjobs/devjobs-api/internal/pkg/config"
	"github.com/devjobs/devjobs-api/pkg/logger"
)

const (
	serviceName = "devjobs-api"

	storeMongo  = "mongo"
	storeMemory = "memory"

	identityLockTTL = 5 * time.Second
)

// app holds the wired collaborators shared by every subcommand.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	auth   *service.AuthService
	checks []handler.DependencyCheck

	closers []func()
}

// newApp loads configuration and connects the credential store plus the
// optional Redis guards. Callers must Close the returned app.
func newApp(ctx context.Context, kind string) (*app, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}

	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  !cfg.IsProduction(),
		Service: serviceName,
	})

	a := &app{cfg: cfg, log: log}

	store, err := a.openStore(ctx, kind)
	if err != nil {
		a.Close()
		return nil, err
	}

	issuerOpts, authOpts, err := a.openGuards(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	issuer := service.NewTokenIssuer(store, cfg.Auth.TokenTTL, logger.Component("token_issuer"), issuerOpts...)
	authOpts = append(authOpts, service.WithPasswordMinLength(cfg.Auth.PasswordMinLength))
	a.auth = service.NewAuthService(
		store,
		security.NewBcryptHasher(cfg.Auth.BcryptCost),
		issuer,
		logger.Component("auth"),
		authOpts...,
	)
	return a, nil
}

func (a *app) openStore(ctx context.Context, kind string) (ports.CredentialStore, error) {
	switch kind {
	case storeMemory:
		a.log.Warn().Msg("using in-memory credential store, data is lost on exit")
		return memory.NewIdentityStore(), nil
	case storeMongo:
		client, db, err := mongodb.Connect(ctx, mongodb.Config{
			URI:      a.cfg.Mongo.URI,
			Database: a.cfg.Mongo.Database,
			AppName:  serviceName,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() {
			if err := mongodb.Disconnect(client); err != nil {
				a.log.Error().Err(err).Msg("mongo disconnect failed")
			}
		})

		repo := mongodb.NewIdentityRepository(db)
		if err := repo.EnsureIndexes(ctx); err != nil {
			return nil, err
		}
		a.checks = append(a.checks, handler.MongoCheck(db))
		a.log.Info().Str("database", a.cfg.Mongo.Database).Msg("mongo connected")
		return repo, nil
	default:
		return nil, fmt.Errorf("unknown store %q (want %s or %s)", kind, storeMongo, storeMemory)
	}
}

// openGuards connects Redis when REDIS_ADDR is set and returns the login
// throttle and identity lock options backed by it.
func (a *app) openGuards(ctx context.Context) ([]service.TokenIssuerOption, []service.AuthOption, error) {
	if a.cfg.Redis.Addr == "" {
		a.log.Info().Msg("REDIS_ADDR not set, login throttle and identity lock disabled")
		return nil, nil, nil
	}

	rdb, err := redisdb.Connect(ctx, redisdb.Config{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err != nil {
		return nil, nil, err
	}
	a.closers = append(a.closers, func() {
		if err := rdb.Close(); err != nil {
			a.log.Error().Err(err).Msg("redis close failed")
		}
	})
	a.checks = append(a.checks, handler.RedisCheck(rdb))
	a.log.Info().Str("addr", a.cfg.Redis.Addr).Msg("redis connected")

	throttle := redisdb.NewLoginThrottle(rdb, a.cfg.Auth.LoginMaxFailures, a.cfg.Auth.LoginFailureWindow)
	locker := redisdb.NewIdentityLocker(rdb, identityLockTTL)

	return []service.TokenIssuerOption{service.WithIdentityLocker(locker)},
		[]service.AuthOption{service.WithLoginThrottle(throttle)},
		nil
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
