package cli

import (
	"fmt"
	"io"

	"github.com/sakif/hackorsnooze/internal/model"
)

// storyView is a Story decorated for the current viewer. JSON and YAML output
// use it directly; text output goes through renderStory.
type storyView struct {
	model.Story `yaml:",inline"`
	Hostname    string `json:"hostname"           yaml:"hostname"`
	Favorite    *bool  `json:"favorite,omitempty" yaml:"favorite,omitempty"` // nil when logged out
	Own         bool   `json:"own"                yaml:"own"`
}

func newStoryViews(stories []model.Story, user *model.User) []storyView {
	views := make([]storyView, 0, len(stories))
	for _, s := range stories {
		v := storyView{Story: s, Hostname: s.Hostname()}
		if user.IsAuthenticated() {
			fav := user.IsFavorite(s.StoryID)
			v.Favorite = &fav
			v.Own = user.Owns(s.StoryID)
		}
		views = append(views, v)
	}
	return views
}

// renderStories writes one two-line entry per story, or empty when there are
// none:
//
//	★ Title (host)
//	    by Author | posted by username | id storyId [own]
//
// The star only appears for a logged-in viewer.
func renderStories(w io.Writer, stories []model.Story, user *model.User, empty string) {
	if len(stories) == 0 {
		fmt.Fprintln(w, empty)
		return
	}
	for _, s := range stories {
		renderStory(w, s, user)
	}
}

func renderStory(w io.Writer, s model.Story, user *model.User) {
	var star, own string
	if user.IsAuthenticated() {
		star = "☆ "
		if user.IsFavorite(s.StoryID) {
			star = "★ "
		}
		if user.Owns(s.StoryID) {
			own = " [own]"
		}
	}
	fmt.Fprintf(w, "%s%s (%s)\n", star, s.Title, s.Hostname())
	fmt.Fprintf(w, "    by %s | posted by %s | id %s%s\n", s.Author, s.Username, s.StoryID, own)
}

// userView is what whoami prints in JSON and YAML.
type userView struct {
	Username  string `json:"username"  yaml:"username"`
	Name      string `json:"name"      yaml:"name"`
	CreatedAt string `json:"createdAt" yaml:"createdAt"`
	Favorites int    `json:"favorites" yaml:"favorites"`
	Stories   int    `json:"stories"   yaml:"stories"`
}

func newUserView(u *model.User) userView {
	v := userView{
		Username:  u.Username,
		Name:      u.Name,
		Favorites: len(u.Favorites),
		Stories:   len(u.OwnStories),
	}
	if !u.CreatedAt.IsZero() {
		v.CreatedAt = u.CreatedAt.Format("2006-01-02")
	}
	return v
}
