package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// NewFavoriteCommand builds "favorite" (add) or "unfavorite" (remove).
// Both are idempotent: favoriting a favorite succeeds without change.
func NewFavoriteCommand(r *runner, add bool) *cobra.Command {
	use, short, done := "unfavorite", "Remove a story from your favorites", "Removed %s from favorites.\n"
	if add {
		use, short, done = "favorite", "Add a story to your favorites", "Added %s to favorites.\n"
	}

	return &cobra.Command{
		Use:   use + " <story-id>",
		Short: short,
		Args:  exactArgs(1, "<story-id>"),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, app *App, out *OutputFormatter) error {
			if _, err := app.RequireUser(); err != nil {
				return err
			}

			storyID := args[0]
			if err := app.Session.SetFavorite(cmd.Context(), storyID, add); err != nil {
				return err
			}

			return out.Success(map[string]any{"storyId": storyID, "favorite": add}, func(w io.Writer) {
				fmt.Fprintf(w, done, storyID)
			})
		}),
	}
}

// NewFavoritesCommand lists the user's favorites.
func NewFavoritesCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "favorites",
		Short: "List your favorite stories",
		Args:  exactArgs(0, "no arguments"),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, app *App, out *OutputFormatter) error {
			user, err := app.RequireUser()
			if err != nil {
				return err
			}
			return out.Success(newStoryViews(user.Favorites, user), func(w io.Writer) {
				renderStories(w, user.Favorites, user, "No favorites added!")
			})
		}),
	}
}

// NewMineCommand lists the stories the user submitted.
func NewMineCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "mine",
		Short: "List the stories you submitted",
		Args:  exactArgs(0, "no arguments"),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, app *App, out *OutputFormatter) error {
			user, err := app.RequireUser()
			if err != nil {
				return err
			}
			return out.Success(newStoryViews(user.OwnStories, user), func(w io.Writer) {
				renderStories(w, user.OwnStories, user, "No stories added by user yet!")
			})
		}),
	}
}
