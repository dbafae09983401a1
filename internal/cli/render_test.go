package cli

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sakif/hackorsnooze/internal/model"
)

func renderFixtures() ([]model.Story, *model.User) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	stories := []model.Story{
		{StoryID: "s1", Title: "Learn Go", Author: "Rob", URL: "https://www.go.dev/learn", Username: "alice", CreatedAt: at, UpdatedAt: at},
		{StoryID: "s2", Title: "Rust book", Author: "Steve", URL: "https://doc.rust-lang.org/book/", Username: "bob", CreatedAt: at, UpdatedAt: at},
		{StoryID: "s3", Title: "No scheme", Author: "X", URL: "example.org/path", Username: "alice", CreatedAt: at, UpdatedAt: at},
	}

	user := model.NewUser("alice", "Alice", at, at)
	user.Token = "tok"
	user.SetFavorites([]model.Story{stories[1]})
	user.OwnStories = []model.Story{stories[0], stories[2]}
	return stories, user
}

func newGolden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

func TestRenderStories_Golden(t *testing.T) {
	stories, user := renderFixtures()

	t.Run("logged in", func(t *testing.T) {
		var buf bytes.Buffer
		renderStories(&buf, stories, user, noStoriesMessage)
		newGolden(t).Assert(t, "stories_logged_in", buf.Bytes())
	})

	t.Run("logged out", func(t *testing.T) {
		var buf bytes.Buffer
		renderStories(&buf, stories, nil, noStoriesMessage)
		newGolden(t).Assert(t, "stories_logged_out", buf.Bytes())
	})
}

func TestRenderStories_Empty(t *testing.T) {
	var buf bytes.Buffer
	renderStories(&buf, nil, nil, "No favorites added!")
	assert.Equal(t, "No favorites added!\n", buf.String())
}

func TestStoryViews(t *testing.T) {
	stories, user := renderFixtures()

	views := newStoryViews(stories, user)
	require.Len(t, views, 3)
	require.NotNil(t, views[1].Favorite)
	assert.True(t, *views[1].Favorite)
	assert.False(t, *views[0].Favorite)
	assert.True(t, views[0].Own)
	assert.Equal(t, "go.dev", views[0].Hostname)

	anonymous := newStoryViews(stories, nil)
	assert.Nil(t, anonymous[0].Favorite)
	assert.False(t, anonymous[0].Own)
}

func TestStoryViews_Encoding(t *testing.T) {
	stories, user := renderFixtures()
	views := newStoryViews(stories[:1], user)

	raw, err := json.Marshal(views[0])
	require.NoError(t, err)
	var fromJSON map[string]any
	require.NoError(t, json.Unmarshal(raw, &fromJSON))
	assert.Equal(t, "s1", fromJSON["storyId"], "story fields are flattened")
	assert.Equal(t, "go.dev", fromJSON["hostname"])
	assert.Equal(t, true, fromJSON["own"])

	raw, err = yaml.Marshal(views[0])
	require.NoError(t, err)
	var fromYAML map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &fromYAML))
	assert.Equal(t, "s1", fromYAML["storyId"])
	assert.Equal(t, "Learn Go", fromYAML["title"])
	assert.Equal(t, false, fromYAML["favorite"])
}
