package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

// CredentialOptions holds the password flag shared by signup and login.
type CredentialOptions struct {
	Password string
}

func (o *CredentialOptions) password(r *runner) (string, error) {
	if o.Password != "" {
		return o.Password, nil
	}
	if r.deps.Config.Password != "" {
		return r.deps.Config.Password, nil
	}
	return "", NewExitError(ExitCommandError, "a password is required: pass --password or set HNS_PASSWORD")
}

// formError flashes err the way a form would and prints the flash as the
// command's error.
func (a *App) formError(out *OutputFormatter, err error) error {
	a.Flash.SetError(err)
	return out.errorWithMessage(err, a.Flash.Message())
}

// NewSignupCommand creates an account and logs into it.
func NewSignupCommand(r *runner) *cobra.Command {
	opts := &CredentialOptions{}

	cmd := &cobra.Command{
		Use:   "signup <username> <name>",
		Short: "Create an account and log in",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 2 {
				return NewExitError(ExitCommandError, "expected <username> <name>")
			}
			return nil
		},
		RunE: r.withApp(func(cmd *cobra.Command, args []string, app *App, out *OutputFormatter) error {
			password, err := opts.password(r)
			if err != nil {
				return err
			}
			name := strings.Join(args[1:], " ")

			user, err := app.Session.SignUp(cmd.Context(), args[0], password, name)
			if err != nil {
				return app.formError(out, err)
			}
			return out.Success(newUserView(user), func(w io.Writer) {
				fmt.Fprintf(w, "Welcome, %s! You are logged in as %s.\n", user.Name, user.Username)
			})
		}),
	}

	cmd.Flags().StringVarP(&opts.Password, "password", "p", "", "account password (default $HNS_PASSWORD)")
	return cmd
}

// NewLoginCommand logs in and remembers the session for later commands.
func NewLoginCommand(r *runner) *cobra.Command {
	opts := &CredentialOptions{}

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and remember the session",
		Args:  exactArgs(1, "<username>"),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, app *App, out *OutputFormatter) error {
			password, err := opts.password(r)
			if err != nil {
				return err
			}

			user, err := app.Session.LogIn(cmd.Context(), args[0], password)
			if err != nil {
				return app.formError(out, err)
			}
			return out.Success(newUserView(user), func(w io.Writer) {
				fmt.Fprintf(w, "Logged in as %s.\n", user.Username)
			})
		}),
	}

	cmd.Flags().StringVarP(&opts.Password, "password", "p", "", "account password (default $HNS_PASSWORD)")
	return cmd
}

// NewLogoutCommand forgets the stored session.
func NewLogoutCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  exactArgs(0, "no arguments"),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, app *App, out *OutputFormatter) error {
			if err := app.Session.LogOut(cmd.Context()); err != nil {
				return err
			}
			return out.Success(map[string]bool{"loggedOut": true}, func(w io.Writer) {
				fmt.Fprintln(w, "Logged out.")
			})
		}),
	}
}

// NewWhoamiCommand shows the logged-in user.
func NewWhoamiCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in user",
		Args:  exactArgs(0, "no arguments"),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, app *App, out *OutputFormatter) error {
			user, err := app.RequireUser()
			if err != nil {
				return err
			}
			view := newUserView(user)
			return out.Success(view, func(w io.Writer) {
				fmt.Fprintf(w, "%s (%s)\n", view.Username, view.Name)
				if view.CreatedAt != "" {
					fmt.Fprintf(w, "member since %s\n", view.CreatedAt)
				}
				fmt.Fprintf(w, "%d favorites, %d stories\n", view.Favorites, view.Stories)
			})
		}),
	}
}
