// Package main is the entry point for the hns command-line client.
//
// The main package stays minimal:
// 1. Read configuration from the environment
// 2. Create the logger
// 3. Hand both to the cobra root command and turn its error into an exit code
//
// All actual logic lives in internal/cli and the packages it wires together.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/sakif/hackorsnooze/internal/cli"
	"github.com/sakif/hackorsnooze/internal/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	// === 1. READ CONFIGURATION ===
	// Every setting has a default, so a bare `hns stories` works out of the box.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return cli.ExitCommandError
	}

	// === 2. SET UP LOGGING ===
	// Logs go to stderr so they never mix with --format json output on stdout.
	// The LevelVar lets --verbose lower the level after flags are parsed.
	level := new(slog.LevelVar)
	level.Set(cfg.LogLevel)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// === 3. RUN THE COMMAND ===
	// Ctrl+C cancels the context, which aborts any in-flight request.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(cli.Deps{Config: cfg, Logger: logger, Level: level})
	if err := root.ExecuteContext(ctx); err != nil {
		if !cli.Reported(err) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return cli.GetExitCode(err)
	}
	return cli.ExitSuccess
}
