package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/tomyedwab/sqlbridge/internal/config"
	"github.com/tomyedwab/sqlbridge/transport/httpbridge"
)

func tokenCmd() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Mint a bearer token for the HTTP bridge",
		Flags: []cli.Flag{
			configFlag,
			&cli.StringFlag{
				Name:  "client",
				Usage: "Client name recorded in the token",
				Value: "cli",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := config.Load(cmd.String("config"))
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return errors.New("auth.jwt_secret is not configured")
			}
			token, err := httpbridge.IssueToken([]byte(cfg.Auth.JWTSecret), cmd.String("client"), cfg.Auth.TokenDuration())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.Root().Writer, token)
			return nil
		},
	}
}
