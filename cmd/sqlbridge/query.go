package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/tomyedwab/sqlbridge/bridge/types"
	"github.com/tomyedwab/sqlbridge/client"
	"github.com/tomyedwab/sqlbridge/transport/httpbridge"
)

func sessionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "url",
			Usage:   "Base URL of the bridge server",
			Value:   "http://127.0.0.1:8765",
			Sources: cli.EnvVars("SQLBRIDGE_URL"),
		},
		&cli.StringFlag{
			Name:    "token",
			Usage:   "Bearer token",
			Sources: cli.EnvVars("SQLBRIDGE_TOKEN"),
		},
		&cli.StringFlag{
			Name:  "db",
			Usage: "Store path to open (defaults to the managed store)",
		},
		&cli.BoolFlag{
			Name:  "disable-foreign-keys",
			Usage: "Open the store with foreign key enforcement off",
		},
	}
}

func selectCmd() *cli.Command {
	return &cli.Command{
		Name:      "select",
		Usage:     "Run a query and print the rows as JSON",
		ArgsUsage: "SQL [PARAM...]",
		Flags:     sessionFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			db, query, params, err := openSession(ctx, cmd)
			if err != nil {
				return err
			}
			rows, err := db.Select(ctx, query, params...)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.Root().Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		},
	}
}

func executeCmd() *cli.Command {
	return &cli.Command{
		Name:      "execute",
		Usage:     "Run a statement that returns no rows",
		ArgsUsage: "SQL [PARAM...]",
		Flags:     sessionFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			db, query, params, err := openSession(ctx, cmd)
			if err != nil {
				return err
			}
			ok, err := db.Execute(ctx, query, params...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.Root().Writer, ok)
			return nil
		},
	}
}

// openSession opens the session named by the flags and splits the
// positional arguments into SQL and parameters.
func openSession(ctx context.Context, cmd *cli.Command) (*client.Database, string, []any, error) {
	if cmd.Args().Len() == 0 {
		return nil, "", nil, errors.New("SQL is required")
	}
	query := cmd.Args().First()
	params := parseParams(cmd.Args().Tail())

	inv := httpbridge.NewClient(cmd.String("url"), httpbridge.WithToken(cmd.String("token")))
	opts := &types.OpenOptions{}
	if cmd.Bool("disable-foreign-keys") {
		disable := true
		opts.DisableForeignKeys = &disable
	}

	var db *client.Database
	var err error
	if path := cmd.String("db"); path != "" {
		db, err = client.Open(ctx, inv, path, opts)
	} else {
		db, err = client.Load(ctx, inv, opts)
	}
	if err != nil {
		return nil, "", nil, err
	}
	return db, query, params, nil
}

// parseParams turns command line words into bind values: integers and
// floats become numbers, "null" becomes NULL, anything else stays text.
func parseParams(args []string) []any {
	params := make([]any, len(args))
	for i, a := range args {
		switch {
		case a == "null":
			params[i] = nil
		default:
			if n, err := strconv.ParseInt(a, 10, 64); err == nil {
				params[i] = n
			} else if f, err := strconv.ParseFloat(a, 64); err == nil {
				params[i] = f
			} else {
				params[i] = a
			}
		}
	}
	return params
}
