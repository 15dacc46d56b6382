package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:     "fifoledger",
		Usage:    "In-memory FIFO position ledger over HTTP",
		Flags:    globalFlags,
		Action:   serve,
		Commands: commands,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var globalFlags = []cli.Flag{
	&cli.StringFlag{
		Name:  "env-file",
		Usage: "load variables from `FILE` before reading the environment",
	},
}

var commands = []*cli.Command{
	{
		Name:   "serve",
		Usage:  "Run the HTTP server (default)",
		Action: serve,
	}, {
		Name:   "healthcheck",
		Usage:  "GET /healthz on the local server, exit 0 when healthy",
		Action: healthcheck,
	},
}
