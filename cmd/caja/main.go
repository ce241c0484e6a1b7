// Command caja manages the cash ledger from the terminal.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"tesoreria/internal/cli"
	applog "tesoreria/internal/log"
)

func main() {
	// Completion requests are answered before anything else is touched
	cli.Completion().Complete("caja")

	cli.LoadEnvFile()

	// Commands print to stdout; logs stay quiet unless asked for
	level := os.Getenv("CAJA_LOG_LEVEL")
	if level == "" {
		level = "warn"
	}
	logger := cli.SetupLogger(level, applog.ComponentCLI)
	cfg := cli.LoadAndValidateConfig(logger)

	cmdr := subcommands.NewCommander(flag.CommandLine, "caja")
	cli.Register(cmdr, cli.NewApp(cfg, logger))
	flag.Parse()

	os.Exit(int(cmdr.Execute(context.Background())))
}
