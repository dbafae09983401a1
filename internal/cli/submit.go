package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sakif/hackorsnooze/internal/model"
)

// SubmitOptions holds flags for the submit command.
type SubmitOptions struct {
	Author string
	Title  string
	URL    string
}

// NewSubmitCommand posts a new story as the logged-in user.
func NewSubmitCommand(r *runner) *cobra.Command {
	opts := &SubmitOptions{}

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a story",
		Args:  exactArgs(0, "no arguments (use --author, --title and --url)"),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, app *App, out *OutputFormatter) error {
			user, err := app.RequireUser()
			if err != nil {
				return err
			}

			draft := model.StoryDraft{Author: opts.Author, Title: opts.Title, URL: opts.URL}
			story, err := app.Stories.Create(cmd.Context(), user.Token, draft)
			if err != nil {
				return app.formError(out, err)
			}
			app.Session.RecordStory(*story)

			return out.Success(newStoryViews([]model.Story{*story}, app.Session.User())[0], func(w io.Writer) {
				renderStory(w, *story, app.Session.User())
			})
		}),
	}

	cmd.Flags().StringVar(&opts.Author, "author", "", "who wrote the linked article")
	cmd.Flags().StringVar(&opts.Title, "title", "", "story title")
	cmd.Flags().StringVar(&opts.URL, "url", "", "link, including http:// or https://")

	return cmd
}

// NewRemoveCommand deletes one of the user's own stories.
func NewRemoveCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <story-id>",
		Short: "Remove a story you submitted",
		Args:  exactArgs(1, "<story-id>"),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, app *App, out *OutputFormatter) error {
			user, err := app.RequireUser()
			if err != nil {
				return err
			}

			if err := app.Stories.Remove(cmd.Context(), user.Token, args[0]); err != nil {
				return err
			}
			app.Session.ForgetStory(args[0])

			return out.Success(map[string]string{"removed": args[0]}, func(w io.Writer) {
				fmt.Fprintf(w, "Removed story %s.\n", args[0])
			})
		}),
	}
}
