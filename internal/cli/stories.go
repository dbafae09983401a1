package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sakif/hackorsnooze/internal/model"
	"github.com/sakif/hackorsnooze/internal/service"
)

const noStoriesMessage = "No stories yet!"

// StoriesOptions holds flags for the stories command.
type StoriesOptions struct {
	Skip  int
	Limit int
}

// NewStoriesCommand prints one page of the feed.
func NewStoriesCommand(r *runner) *cobra.Command {
	opts := &StoriesOptions{}

	cmd := &cobra.Command{
		Use:   "stories",
		Short: "List one page of stories, newest first",
		Args:  exactArgs(0, "no arguments"),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, app *App, out *OutputFormatter) error {
			app.warnRestore(out)

			limit := opts.Limit
			if limit == 0 {
				limit = r.deps.Config.PageSize
			}
			stories, err := app.Stories.FetchPage(cmd.Context(), opts.Skip, limit)
			if err != nil {
				return err
			}

			user := app.Session.User()
			return out.Success(newStoryViews(stories, user), func(w io.Writer) {
				renderStories(w, stories, user, noStoriesMessage)
			})
		}),
	}

	cmd.Flags().IntVar(&opts.Skip, "skip", 0, "number of newest stories to skip")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "page size (default $HNS_PAGE_SIZE)")

	return cmd
}

const browseHelp = "[enter] more  f <id> toggle favorite  q quit"

// NewBrowseCommand pages through the feed interactively. Each line read from
// stdin is one action; a failed page keeps what is already on screen.
func NewBrowseCommand(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Scroll through the feed, one page per Enter",
		Args:  exactArgs(0, "no arguments"),
		RunE: r.withApp(func(cmd *cobra.Command, args []string, app *App, out *OutputFormatter) error {
			if out.Format != "text" {
				return NewExitError(ExitCommandError, "browse only supports --format text")
			}
			app.warnRestore(out)

			b := &browser{app: app, out: out, feed: app.NewFeed()}
			defer b.feed.Leave()
			return b.run(cmd, bufio.NewScanner(cmd.InOrStdin()))
		}),
	}
}

type browser struct {
	app  *App
	out  *OutputFormatter
	feed *service.Feed
}

func (b *browser) run(cmd *cobra.Command, in *bufio.Scanner) error {
	ctx := cmd.Context()

	page, err := b.feed.Load(ctx)
	switch {
	case err != nil:
		b.app.Flash.SetError(err)
	case len(page) == 0:
		fmt.Fprintln(b.out.Writer, noStoriesMessage)
	default:
		renderStories(b.out.Writer, page, b.app.Session.User(), "")
	}

	for {
		b.prompt()
		if !in.Scan() {
			return in.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(in.Text())
		switch {
		case line == "q":
			return nil
		case line == "":
			b.more(cmd)
		case strings.HasPrefix(line, "f "):
			b.toggle(cmd, strings.TrimSpace(strings.TrimPrefix(line, "f ")))
		default:
			b.app.Flash.Set(fmt.Sprintf("Unknown command %q.", line))
		}
	}
}

func (b *browser) prompt() {
	w := b.out.GetErrWriter()
	if msg := b.app.Flash.Message(); msg != "" {
		fmt.Fprintf(w, "! %s\n", msg)
	}
	fmt.Fprintf(w, "-- %d stories shown -- %s\n", len(b.feed.Items()), browseHelp)
}

func (b *browser) more(cmd *cobra.Command) {
	if b.feed.Exhausted() {
		b.app.Flash.Set("No more stories.")
		return
	}
	page, err := b.feed.LoadMore(cmd.Context())
	if err != nil {
		if !errors.Is(err, service.ErrStaleView) {
			b.app.Flash.SetError(err)
		}
		return
	}
	if len(page) == 0 {
		b.app.Flash.Set("No more stories.")
		return
	}
	renderStories(b.out.Writer, page, b.app.Session.User(), "")
}

func (b *browser) toggle(cmd *cobra.Command, storyID string) {
	items := b.feed.Items()
	i := slices.IndexFunc(items, func(s model.Story) bool { return s.StoryID == storyID })
	if i < 0 {
		b.app.Flash.Set(fmt.Sprintf("Story %s is not on screen.", storyID))
		return
	}
	story := items[i]

	favorite, err := b.app.Session.ToggleFavorite(cmd.Context(), story)
	if err != nil {
		b.app.Flash.SetError(err)
		return
	}
	renderStory(b.out.Writer, story, b.app.Session.User())
	if favorite {
		b.app.Flash.Set("Added to favorites.")
	} else {
		b.app.Flash.Set("Removed from favorites.")
	}
}
