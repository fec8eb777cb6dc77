package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	r "mc.store/data/repos"
	"mc.store/service/commands"
	"mc.store/service/config"
	c "mc.store/service/core"
	"mc.store/service/idempotency"
)

func main() {
	// cancel in-flight work on ctrl+C or SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	// schema printing works without a database, so a config error only fails commands that connect
	cfg, cfgErr := config.Load()
	logger := logrus.New()
	if cfgErr == nil {
		logger = cfg.NewLogger()
	}

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	commands.Register(commander, opener(cfg, cfgErr, logger), os.Stdout, os.Stderr)

	flag.Parse()
	status := commander.Execute(ctx)

	stop()
	os.Exit(int(status))
}

func opener(cfg *config.Config, cfgErr error, logger *logrus.Logger) commands.Opener {
	return func(ctx context.Context) (*c.ServiceContext, func(), error) {
		if cfgErr != nil {
			return nil, nil, cfgErr
		}

		postgresConnection, err := r.GetPostgresConnection(ctx, cfg.DatabaseURL, r.PoolSettings{
			MaxConns: cfg.DBMaxConns,
			MinConns: cfg.DBMinConns,
		})
		if err != nil {
			return nil, nil, err
		}
		if err := postgresConnection.Ping(ctx); err != nil {
			postgresConnection.Close()
			return nil, nil, fmt.Errorf("error reaching database: %w", err)
		}

		sc := &c.ServiceContext{
			Context: ctx,
			Store:   postgresConnection,
			Workers: cfg.Workers,
			Logger:  logger,
		}
		closers := []func(){postgresConnection.Close}

		if cfg.IdempotencyEnabled() {
			client, err := idempotency.Connect(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
			if err != nil {
				postgresConnection.Close()
				return nil, nil, err
			}
			sc.Idempotency = idempotency.NewStore(client, cfg.IdempotencyTTL, cfg.IdempotencyLease)
			closers = append(closers, func() { _ = client.Close() })
		} else {
			logger.Debug("REDIS_ADDR not set, request ids will not deduplicate runs")
		}

		return sc, func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}, nil
	}
}
