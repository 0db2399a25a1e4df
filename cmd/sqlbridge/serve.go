package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/urfave/cli/v3"

	"github.com/tomyedwab/sqlbridge/executor"
	"github.com/tomyedwab/sqlbridge/executor/journal"
	"github.com/tomyedwab/sqlbridge/internal/config"
	"github.com/tomyedwab/sqlbridge/internal/logger"
	"github.com/tomyedwab/sqlbridge/transport/httpbridge"
)

var configFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "Path to the YAML configuration file",
	Sources: cli.EnvVars("SQLBRIDGE_CONFIG"),
}

func serveCmd() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the executor behind the HTTP bridge",
		Flags: []cli.Flag{configFlag},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return err
			}
			log := logger.New(logger.Config{
				Level:  cfg.Logging.Level,
				Format: cfg.Logging.Format,
				Output: logger.Output(cfg.Logging.Output),
			})

			var opts []executor.Option
			if cfg.Executor.Journal != "" {
				jdb, err := sqlx.Connect("sqlite3", cfg.Executor.Journal)
				if err != nil {
					return fmt.Errorf("opening journal: %w", err)
				}
				defer jdb.Close()
				j, err := journal.New(jdb)
				if err != nil {
					return fmt.Errorf("initializing journal: %w", err)
				}
				opts = append(opts, executor.WithJournal(j))
			}

			exec := executor.New(executor.Config{
				StoreDir:    cfg.Executor.StoreDir,
				StoreName:   cfg.Executor.StoreName,
				BusyTimeout: cfg.Executor.BusyTimeout,
			}, log, opts...)
			defer func() {
				if err := exec.Close(); err != nil {
					log.Error().Err(err).Msg("closing stores")
				}
			}()

			var serverOpts []httpbridge.ServerOption
			if cfg.Auth.JWTSecret != "" {
				serverOpts = append(serverOpts, httpbridge.WithSecret([]byte(cfg.Auth.JWTSecret)))
			} else {
				log.Warn().Msg("auth.jwt_secret is not set; bridge accepts unauthenticated commands")
			}

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			srv := httpbridge.NewServer(exec, log, serverOpts...)
			return srv.ListenAndServe(ctx, cfg.HTTP.Addr(),
				time.Duration(cfg.HTTP.ReadTimeout)*time.Second,
				time.Duration(cfg.HTTP.WriteTimeout)*time.Second)
		},
	}
}
