// Package cli is the terminal front end: one cobra command per thing the web
// page let you do (read the feed, sign up, log in, submit, favorite).
//
// Commands never talk HTTP or SQL themselves. Each one opens an App (the
// services wired to the sqlite session store and the HTTP client), calls one
// service operation and hands the result to an OutputFormatter.
package cli

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/sakif/hackorsnooze/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "text" | "json" | "yaml"
	APIURL  string // overrides HNS_API_URL
	DBPath  string // overrides HNS_DB_PATH
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// Deps is what the commands need from main.
type Deps struct {
	Config config.Config
	Logger *slog.Logger
	Level  *slog.LevelVar   // lowered to debug by --verbose; optional
	Now    func() time.Time // flash clock; defaults to time.Now
}

// NewRootCommand creates the root command for the hns CLI.
func NewRootCommand(deps Deps) *cobra.Command {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "hns",
		Short:         "Hack or Snooze - read, submit and favorite stories",
		Long:          "A terminal client for the Hack or Snooze story server.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			if opts.Verbose && deps.Level != nil {
				deps.Level.Set(slog.LevelDebug)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api", "", "story server base URL (default $HNS_API_URL)")
	cmd.PersistentFlags().StringVar(&opts.DBPath, "db", "", "session database path (default $HNS_DB_PATH)")

	r := &runner{opts: opts, deps: deps}

	cmd.AddCommand(NewStoriesCommand(r))
	cmd.AddCommand(NewBrowseCommand(r))
	cmd.AddCommand(NewSignupCommand(r))
	cmd.AddCommand(NewLoginCommand(r))
	cmd.AddCommand(NewLogoutCommand(r))
	cmd.AddCommand(NewWhoamiCommand(r))
	cmd.AddCommand(NewSubmitCommand(r))
	cmd.AddCommand(NewRemoveCommand(r))
	cmd.AddCommand(NewFavoriteCommand(r, true))
	cmd.AddCommand(NewFavoriteCommand(r, false))
	cmd.AddCommand(NewFavoritesCommand(r))
	cmd.AddCommand(NewMineCommand(r))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// exactArgs is cobra.ExactArgs with a usage exit code.
func exactArgs(n int, usage string) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if len(args) != n {
			return NewExitError(ExitCommandError,
				fmt.Sprintf("expected %s, got %d argument(s)", usage, len(args)))
		}
		return nil
	}
}
