package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	root := &cli.Command{
		Name:  "sqlbridge",
		Usage: "Host and talk to SQLite stores over a command bridge",
		Commands: []*cli.Command{
			serveCmd(),
			tokenCmd(),
			selectCmd(),
			executeCmd(),
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "sqlbridge:", err)
		os.Exit(1)
	}
}
