package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sakif/hackorsnooze/internal/apperror"
	"github.com/sakif/hackorsnooze/internal/model"
	"github.com/sakif/hackorsnooze/internal/repository/httpapi"
	"github.com/sakif/hackorsnooze/internal/repository/sqlite"
	"github.com/sakif/hackorsnooze/internal/service"
)

// App is one command's worth of wired services.
//
// DEPENDENCY WIRING:
//
//	config → sqlite.DB (session store)  ┐
//	config → httpapi.Client             ┼→ services → command
//
// Every command builds its own App and closes it when done, so the sqlite
// file is never held open between runs.
type App struct {
	Stories *service.StoryService
	Session *service.Session
	Flash   *Flash

	runner *runner
	db     *sqlite.DB

	// restoreErr is why the stored session could not be restored, if it
	// could not. Commands that need a user report it; the rest only warn.
	restoreErr error
}

// runner carries the root flags and deps into every subcommand.
type runner struct {
	opts *RootOptions
	deps Deps
}

func (r *runner) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    r.opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   r.opts.Verbose,
	}
}

// open wires an App and restores the stored session.
func (r *runner) open(ctx context.Context) (*App, error) {
	cfg := r.deps.Config
	if r.opts.APIURL != "" {
		cfg.APIURL = r.opts.APIURL
	}
	if r.opts.DBPath != "" {
		cfg.DBPath = r.opts.DBPath
	}
	if err := cfg.Validate(); err != nil {
		return nil, NewExitError(ExitCommandError, err.Error())
	}

	if dir := filepath.Dir(cfg.DBPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	db, err := sqlite.New(ctx, cfg.DBPath, r.deps.Logger)
	if err != nil {
		return nil, err
	}

	client, err := httpapi.New(httpapi.Config{
		BaseURL:    cfg.APIURL,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
	}, r.deps.Logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	accounts := service.NewAccountService(client, r.deps.Logger)
	sessions := db.Sessions(sqlite.SessionKeys{Token: cfg.TokenKey, Username: cfg.UsernameKey})

	app := &App{
		Stories: service.NewStoryService(client, r.deps.Logger),
		Session: service.NewSession(accounts, sessions, r.deps.Logger),
		Flash:   NewFlash(r.deps.Now),
		runner:  r,
		db:      db,
	}
	if _, err := app.Session.Restore(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			db.Close()
			return nil, err
		}
		app.restoreErr = err
	}
	return app, nil
}

// Close releases the session database.
func (a *App) Close() error {
	return a.db.Close()
}

// NewFeed starts an empty feed using the configured page size.
func (a *App) NewFeed() *service.Feed {
	return service.NewFeed(a.Stories, a.runner.deps.Config.PageSize, a.runner.deps.Logger)
}

// RequireUser returns the logged-in user or explains why there is none.
func (a *App) RequireUser() (*model.User, error) {
	if u := a.Session.User(); u.IsAuthenticated() {
		return u, nil
	}
	if a.restoreErr != nil {
		return nil, a.restoreErr
	}
	return nil, apperror.Unauthenticated("You are not logged in. Run `hns login` first.")
}

// warnRestore tells a viewer that the feed is shown logged out.
func (a *App) warnRestore(out *OutputFormatter) {
	if a.restoreErr == nil {
		return
	}
	out.Notice("Showing stories logged out: %s", apperror.Message(a.restoreErr))
}

// withApp turns fn into a RunE that opens and closes an App around it.
// Errors that are not already ExitErrors are written with out.Error.
func (r *runner) withApp(fn func(cmd *cobra.Command, args []string, app *App, out *OutputFormatter) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		out := r.formatter(cmd)
		app, err := r.open(cmd.Context())
		if err != nil {
			return reportError(out, err)
		}
		defer func() {
			if cerr := app.Close(); cerr != nil {
				out.VerboseLog("closing session database: %v", cerr)
			}
		}()
		return reportError(out, fn(cmd, args, app, out))
	}
}

func reportError(out *OutputFormatter, err error) error {
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Code == ExitCommandError {
			return out.UsageError(exitErr.Message)
		}
		return err
	}
	return out.Error(err)
}
