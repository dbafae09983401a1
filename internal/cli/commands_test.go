package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/sakif/hackorsnooze/internal/apitest"
	"github.com/sakif/hackorsnooze/internal/config"
	"github.com/sakif/hackorsnooze/internal/model"
)

// harness runs commands against a fake API, sharing one session database
// across runs the way consecutive shell invocations would.
type harness struct {
	t   *testing.T
	srv *apitest.Server
	cfg config.Config
}

type result struct {
	stdout string
	stderr string
	err    error
}

func newHarness(t *testing.T, env map[string]string) *harness {
	t.Helper()
	srv := apitest.New(t)

	environ := map[string]string{
		"HNS_API_URL":     srv.URL,
		"HNS_DB_PATH":     filepath.Join(t.TempDir(), "data", "session.db"),
		"HNS_MAX_RETRIES": "0",
	}
	for k, v := range env {
		environ[k] = v
	}
	cfg, err := config.LoadFrom(environ)
	require.NoError(t, err)

	return &harness{t: t, srv: srv, cfg: cfg}
}

func (h *harness) run(args ...string) result {
	return h.runWithInput("", args...)
}

func (h *harness) runWithInput(input string, args ...string) result {
	h.t.Helper()
	cmd := NewRootCommand(Deps{Config: h.cfg})

	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(input))
	cmd.SetArgs(args)

	err := cmd.Execute()
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func (h *harness) login(username string) {
	h.t.Helper()
	h.srv.CreateUser(h.t, username, "pw-"+username, strings.ToUpper(username[:1])+username[1:])
	res := h.run("login", username, "--password", "pw-"+username)
	require.NoError(h.t, res.err, res.stdout)
}

func draft(title string) model.StoryDraft {
	return model.StoryDraft{Author: "Author", Title: title, URL: "https://example.com/" + strings.ReplaceAll(title, " ", "-")}
}

func TestStories_LoggedOut(t *testing.T) {
	h := newHarness(t, nil)
	h.srv.CreateUser(t, "bob", "pw", "Bob")
	h.srv.AddStory(t, "bob", draft("First"))
	h.srv.AddStory(t, "bob", draft("Second"))

	res := h.run("stories")
	require.NoError(t, res.err)

	assert.Contains(t, res.stdout, "Second (example.com)")
	assert.Contains(t, res.stdout, "First (example.com)")
	assert.Less(t, strings.Index(res.stdout, "Second"), strings.Index(res.stdout, "First"), "newest first")
	assert.NotContains(t, res.stdout, "☆", "no stars for a logged-out viewer")
}

func TestStories_Empty(t *testing.T) {
	h := newHarness(t, nil)

	res := h.run("stories")
	require.NoError(t, res.err)
	assert.Equal(t, "No stories yet!\n", res.stdout)
}

func TestStories_SkipAndLimit(t *testing.T) {
	h := newHarness(t, nil)
	h.srv.CreateUser(t, "bob", "pw", "Bob")
	for _, title := range []string{"one", "two", "three"} {
		h.srv.AddStory(t, "bob", draft(title))
	}

	res := h.run("stories", "--skip", "1", "--limit", "1")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "two")
	assert.NotContains(t, res.stdout, "three")
	assert.NotContains(t, res.stdout, "one (")
}

func TestStories_InvalidCursor(t *testing.T) {
	h := newHarness(t, nil)

	res := h.run("stories", "--skip=-1")
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Contains(t, res.stdout, "Error [E002]")
	assert.Empty(t, h.srv.Requests(), "rejected before any request")
}

func TestStories_ServerDown(t *testing.T) {
	h := newHarness(t, nil)
	h.srv.FailNext(http.StatusServiceUnavailable)

	res := h.run("stories")
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.True(t, Reported(res.err))
	assert.Contains(t, res.stdout, "Error [E008]: fetching stories failed, try again")
}

func TestStories_JSON(t *testing.T) {
	h := newHarness(t, nil)
	h.srv.CreateUser(t, "bob", "pw", "Bob")
	story := h.srv.AddStory(t, "bob", draft("Only"))

	res := h.run("stories", "--format", "json")
	require.NoError(t, res.err)

	var resp struct {
		Status string      `json:"status"`
		Data   []storyView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, story.StoryID, resp.Data[0].StoryID)
	assert.Equal(t, "example.com", resp.Data[0].Hostname)
	assert.Nil(t, resp.Data[0].Favorite)
}

func TestStories_YAMLError(t *testing.T) {
	h := newHarness(t, nil)
	h.srv.RespondNext(http.StatusOK, `{"stories": "nope"}`)

	res := h.run("stories", "--format", "yaml")
	require.Error(t, res.err)

	var resp CLIResponse
	require.NoError(t, yaml.Unmarshal([]byte(res.stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeServerData, resp.Error.Code)
	assert.Equal(t, "Invalid data from server", resp.Error.Message)
}

func TestLogin_ThenStoriesShowsFavoritesAndOwn(t *testing.T) {
	h := newHarness(t, nil)
	h.login("alice")
	h.srv.CreateUser(t, "bob", "pw", "Bob")
	mine := h.srv.AddStory(t, "alice", draft("Mine"))
	theirs := h.srv.AddStory(t, "bob", draft("Theirs"))
	h.srv.AddFavorite(t, "alice", theirs.StoryID)

	res := h.run("stories")
	require.NoError(t, res.err)

	assert.Contains(t, res.stdout, "★ Theirs (example.com)")
	assert.Contains(t, res.stdout, "☆ Mine (example.com)")
	assert.Contains(t, res.stdout, "id "+mine.StoryID+" [own]")
	assert.NotContains(t, res.stdout, "id "+theirs.StoryID+" [own]")
}

func TestLogin_BadPassword(t *testing.T) {
	h := newHarness(t, nil)
	h.srv.CreateUser(t, "alice", "right", "Alice")

	res := h.run("login", "alice", "--password", "wrong")
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Contains(t, res.stdout, "Login failed.")

	res = h.run("whoami")
	require.Error(t, res.err)
	assert.Contains(t, res.stdout, "not logged in")
}

func TestLogin_PasswordFromEnvironment(t *testing.T) {
	h := newHarness(t, map[string]string{"HNS_PASSWORD": "secret"})
	h.srv.CreateUser(t, "alice", "secret", "Alice")

	res := h.run("login", "alice")
	require.NoError(t, res.err)
	assert.Equal(t, "Logged in as alice.\n", res.stdout)
}

func TestLogin_MissingPassword(t *testing.T) {
	h := newHarness(t, nil)

	res := h.run("login", "alice")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
	assert.Contains(t, res.stdout, "HNS_PASSWORD")
	assert.Empty(t, h.srv.Requests())
}

func TestSignup(t *testing.T) {
	h := newHarness(t, nil)

	res := h.run("signup", "alice", "Alice", "Smith", "--password", "pw")
	require.NoError(t, res.err)
	assert.Equal(t, "Welcome, Alice Smith! You are logged in as alice.\n", res.stdout)

	res = h.run("whoami")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "alice (Alice Smith)")
	assert.Contains(t, res.stdout, "0 favorites, 0 stories")
}

func TestSignup_DuplicateUsername(t *testing.T) {
	h := newHarness(t, nil)
	h.srv.CreateUser(t, "alice", "pw", "Alice")

	res := h.run("signup", "alice", "Someone", "--password", "other")
	require.Error(t, res.err)
	assert.Equal(t, ExitFailure, GetExitCode(res.err))
	assert.Equal(t, "Error [E003]: Username already exists.\n", res.stdout)
}

func TestSignup_MissingName(t *testing.T) {
	h := newHarness(t, nil)

	res := h.run("signup", "alice", "--password", "pw")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
}

func TestLogout(t *testing.T) {
	h := newHarness(t, nil)
	h.login("alice")

	res := h.run("logout")
	require.NoError(t, res.err)
	assert.Equal(t, "Logged out.\n", res.stdout)

	res = h.run("whoami")
	require.Error(t, res.err)
	assert.Contains(t, res.stdout, "Error [E004]")
}

func TestWhoami_ExpiredSession(t *testing.T) {
	h := newHarness(t, nil)
	h.login("alice")
	h.srv.RevokeTokens()

	res := h.run("whoami")
	require.Error(t, res.err)
	assert.Contains(t, res.stdout, "Error [E005]: session for alice has expired")

	// The stale session was cleared, so the next run is simply logged out.
	res = h.run("whoami")
	require.Error(t, res.err)
	assert.Contains(t, res.stdout, "Error [E004]")
}

func TestStories_ExpiredSessionStillLists(t *testing.T) {
	h := newHarness(t, nil)
	h.login("alice")
	h.srv.AddStory(t, "alice", draft("Still here"))
	h.srv.RevokeTokens()

	res := h.run("stories")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Still here (example.com)")
	assert.Contains(t, res.stderr, "Showing stories logged out")
}

func TestSubmitMineAndRemove(t *testing.T) {
	h := newHarness(t, nil)
	h.login("alice")

	res := h.run("submit", "--author", "Rob", "--title", "Go 2", "--url", "https://go.dev/blog", "--format", "json")
	require.NoError(t, res.err)

	var resp struct {
		Data storyView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(res.stdout), &resp))
	id := resp.Data.StoryID
	require.NotEmpty(t, id)
	assert.Equal(t, "alice", resp.Data.Username)
	assert.True(t, resp.Data.Own)
	assert.True(t, h.srv.HasStory(t, id))

	res = h.run("mine")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "Go 2 (go.dev)")

	res = h.run("remove", id)
	require.NoError(t, res.err)
	assert.Equal(t, "Removed story "+id+".\n", res.stdout)
	assert.False(t, h.srv.HasStory(t, id))

	res = h.run("mine")
	require.NoError(t, res.err)
	assert.Equal(t, "No stories added by user yet!\n", res.stdout)
}

func TestSubmit_InvalidURLNeverReachesServer(t *testing.T) {
	h := newHarness(t, nil)
	h.login("alice")
	h.srv.ResetRequests()

	res := h.run("submit", "--author", "Rob", "--title", "Go", "--url", "go.dev")
	require.Error(t, res.err)
	assert.Contains(t, res.stdout, "Error [E002]")

	for _, req := range h.srv.Requests() {
		assert.NotEqual(t, http.MethodPost, req.Method, "no story was posted")
	}
}

func TestSubmit_LoggedOut(t *testing.T) {
	h := newHarness(t, nil)

	res := h.run("submit", "--author", "Rob", "--title", "Go", "--url", "https://go.dev")
	require.Error(t, res.err)
	assert.Contains(t, res.stdout, "Error [E004]")
	assert.Empty(t, h.srv.Requests())
}

func TestRemove_SomeoneElsesStory(t *testing.T) {
	h := newHarness(t, nil)
	h.login("alice")
	h.srv.CreateUser(t, "bob", "pw", "Bob")
	story := h.srv.AddStory(t, "bob", draft("Bob's"))

	res := h.run("remove", story.StoryID)
	require.Error(t, res.err)
	assert.Contains(t, res.stdout, "Error [E006]")
	assert.True(t, h.srv.HasStory(t, story.StoryID))
}

func TestFavoriteAndUnfavorite(t *testing.T) {
	h := newHarness(t, nil)
	h.login("alice")
	h.srv.CreateUser(t, "bob", "pw", "Bob")
	story := h.srv.AddStory(t, "bob", draft("Nice read"))

	res := h.run("favorite", story.StoryID)
	require.NoError(t, res.err)
	assert.Equal(t, "Added "+story.StoryID+" to favorites.\n", res.stdout)
	assert.Equal(t, 1, h.srv.FavoriteCount(t, "alice", story.StoryID))

	// Favoriting twice is a no-op, not a duplicate.
	res = h.run("favorite", story.StoryID)
	require.NoError(t, res.err)
	assert.Equal(t, 1, h.srv.FavoriteCount(t, "alice", story.StoryID))

	res = h.run("favorites")
	require.NoError(t, res.err)
	assert.Contains(t, res.stdout, "★ Nice read (example.com)")

	res = h.run("unfavorite", story.StoryID)
	require.NoError(t, res.err)
	assert.Equal(t, 0, h.srv.FavoriteCount(t, "alice", story.StoryID))

	res = h.run("favorites")
	require.NoError(t, res.err)
	assert.Equal(t, "No favorites added!\n", res.stdout)
}

func TestFavorite_UnknownStory(t *testing.T) {
	h := newHarness(t, nil)
	h.login("alice")

	res := h.run("favorite", "nope")
	require.Error(t, res.err)
	assert.Contains(t, res.stdout, "Error [E007]")
}

func TestBrowse_PagesUntilExhausted(t *testing.T) {
	h := newHarness(t, map[string]string{"HNS_PAGE_SIZE": "2"})
	h.srv.CreateUser(t, "bob", "pw", "Bob")
	for _, title := range []string{"one", "two", "three"} {
		h.srv.AddStory(t, "bob", draft(title))
	}

	res := h.runWithInput("\n\nq\n", "browse")
	require.NoError(t, res.err)

	assert.Contains(t, res.stdout, "three (example.com)")
	assert.Contains(t, res.stdout, "two (example.com)")
	assert.Contains(t, res.stdout, "one (example.com)")
	assert.Contains(t, res.stderr, "-- 2 stories shown --")
	assert.Contains(t, res.stderr, "-- 3 stories shown --")
	assert.Contains(t, res.stderr, "! No more stories.")
}

func TestBrowse_FailedPageKeepsItems(t *testing.T) {
	h := newHarness(t, map[string]string{"HNS_PAGE_SIZE": "2"})
	h.srv.CreateUser(t, "bob", "pw", "Bob")
	for _, title := range []string{"one", "two", "three"} {
		h.srv.AddStory(t, "bob", draft(title))
	}

	// Fail the page after the first one.
	var pages atomic.Int32
	h.srv.OnRequest(func(req apitest.Request) {
		if req.Method == http.MethodGet && req.Path == "/stories" && pages.Add(1) == 1 {
			h.srv.FailNext(http.StatusInternalServerError)
		}
	})

	res := h.runWithInput("\n\nq\n", "browse")
	require.NoError(t, res.err)

	assert.Contains(t, res.stderr, "! fetching stories failed, try again\n-- 2 stories shown --")
	assert.Contains(t, res.stderr, "-- 3 stories shown --")
	assert.Contains(t, res.stdout, "one (example.com)")
}

func TestBrowse_ToggleFavorite(t *testing.T) {
	h := newHarness(t, nil)
	h.login("alice")
	h.srv.CreateUser(t, "bob", "pw", "Bob")
	story := h.srv.AddStory(t, "bob", draft("Toggle me"))

	res := h.runWithInput("f "+story.StoryID+"\nq\n", "browse")
	require.NoError(t, res.err)

	assert.Contains(t, res.stdout, "★ Toggle me (example.com)")
	assert.Contains(t, res.stderr, "! Added to favorites.")
	assert.Equal(t, 1, h.srv.FavoriteCount(t, "alice", story.StoryID))
}

func TestBrowse_TextOnly(t *testing.T) {
	h := newHarness(t, nil)

	res := h.run("browse", "--format", "json")
	require.Error(t, res.err)
	assert.Equal(t, ExitCommandError, GetExitCode(res.err))
}
