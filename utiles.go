package main

/*
# Running
Usage: ./utiles <command> [args]

Run `./utiles commands` for the machine-readable command list.

# Configuration
Defaults (copy batch size, jobs, page size, ...) come from an optional TOML
config file plus env vars with the `UTILES_` prefix.
Examples:
  `export UTILES_COPY_BATCHSIZE=5000`
  `export UTILES_LOG_DEBUG=true`

# Logging
Logging to stderr; stdout is reserved for command output.
*/

import (
	"os"

	"github.com/utiles/utiles/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(cli.ExitCode(err))
	}
}
