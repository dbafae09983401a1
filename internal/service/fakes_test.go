package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/sakif/hackorsnooze/internal/apperror"
	"github.com/sakif/hackorsnooze/internal/model"
	"github.com/sakif/hackorsnooze/internal/repository"
)

// Hand-written fakes for the repository interfaces. Each keeps its state in
// memory, counts calls and can be told to fail the next call.

var testTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeStories is a feed held newest first.
type fakeStories struct {
	mu      sync.Mutex
	stories []model.Story
	nextID  int
	listErr []error // consumed one per List call
	calls   []repository.ListOptions

	// gate, when set, makes List wait for a value (or ctx) before answering.
	gate chan struct{}
	// started receives once per List call, before waiting on gate.
	started chan struct{}
}

func newFakeStories(n int) *fakeStories {
	f := &fakeStories{}
	for range n {
		f.add("seed", model.StoryDraft{Title: "seeded", Author: "a", URL: "https://example.com"})
	}
	return f
}

func (f *fakeStories) add(username string, d model.StoryDraft) model.Story {
	f.nextID++
	s := model.Story{
		StoryID:   fmt.Sprintf("s%d", f.nextID),
		Title:     d.Title,
		Author:    d.Author,
		URL:       d.URL,
		Username:  username,
		CreatedAt: testTime,
		UpdatedAt: testTime,
	}
	f.stories = append([]model.Story{s}, f.stories...)
	return s
}

func (f *fakeStories) List(ctx context.Context, opts repository.ListOptions) ([]model.Story, error) {
	f.mu.Lock()
	f.calls = append(f.calls, opts)
	gate, started := f.gate, f.started
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.listErr) > 0 {
		err := f.listErr[0]
		f.listErr = f.listErr[1:]
		return nil, err
	}
	if opts.Skip >= len(f.stories) {
		return []model.Story{}, nil
	}
	end := min(opts.Skip+opts.Limit, len(f.stories))
	return append([]model.Story(nil), f.stories[opts.Skip:end]...), nil
}

func (f *fakeStories) Create(_ context.Context, token string, d model.StoryDraft) (*model.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if token == "bad" {
		return nil, apperror.Unauthenticated("bad token")
	}
	s := f.add(token, d)
	return &s, nil
}

func (f *fakeStories) Delete(_ context.Context, token, storyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, s := range f.stories {
		if s.StoryID != storyID {
			continue
		}
		if s.Username != token {
			return apperror.Forbidden("not yours")
		}
		f.stories = append(f.stories[:i], f.stories[i+1:]...)
		return nil
	}
	return apperror.NotFound("story", storyID)
}

func (f *fakeStories) listCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeAccounts issues "tok-<username>" tokens and keeps favorites per user.
type fakeAccounts struct {
	mu        sync.Mutex
	passwords map[string]string
	favorites map[string][]model.Story
	catalog   map[string]model.Story
	revoked   bool
	failNext  error
	calls     map[string]int

	// block, when set, holds AddFavorite/RemoveFavorite until closed.
	block chan struct{}
}

func newFakeAccounts() *fakeAccounts {
	return &fakeAccounts{
		passwords: map[string]string{},
		favorites: map[string][]model.Story{},
		catalog:   map[string]model.Story{},
		calls:     map[string]int{},
	}
}

func (f *fakeAccounts) record(op string) error {
	f.calls[op]++
	if err := f.failNext; err != nil {
		f.failNext = nil
		return err
	}
	return nil
}

func (f *fakeAccounts) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAccounts) Signup(_ context.Context, username, password, name string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("signup"); err != nil {
		return nil, err
	}
	if _, ok := f.passwords[username]; ok {
		return nil, apperror.DuplicateUsername(username)
	}
	f.passwords[username] = password
	u := model.NewUser(username, name, testTime, testTime)
	u.Token = "tok-" + username
	return u, nil
}

func (f *fakeAccounts) Login(_ context.Context, username, password string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("login"); err != nil {
		return nil, err
	}
	if pw, ok := f.passwords[username]; !ok || pw != password {
		return nil, apperror.Unauthenticated("Login failed.")
	}
	return f.profileLocked(username, "tok-"+username), nil
}

func (f *fakeAccounts) GetUser(_ context.Context, token, username string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.record("getUser"); err != nil {
		return nil, err
	}
	if f.revoked || token != "tok-"+username {
		return nil, apperror.SessionExpired(username)
	}
	return f.profileLocked(username, token), nil
}

func (f *fakeAccounts) profileLocked(username, token string) *model.User {
	u := model.NewUser(username, username, testTime, testTime)
	u.Token = token
	u.SetFavorites(f.favorites[username])
	return u
}

func (f *fakeAccounts) AddFavorite(_ context.Context, token, username, storyID string) error {
	return f.toggle("addFavorite", token, username, storyID, true)
}

func (f *fakeAccounts) RemoveFavorite(_ context.Context, token, username, storyID string) error {
	return f.toggle("removeFavorite", token, username, storyID, false)
}

func (f *fakeAccounts) toggle(op, token, username, storyID string, add bool) error {
	f.mu.Lock()
	block := f.block
	if err := f.record(op); err != nil {
		f.mu.Unlock()
		return err
	}
	f.mu.Unlock()

	if block != nil {
		<-block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if token != "tok-"+username {
		return apperror.Forbidden("token does not belong to " + username)
	}
	story, ok := f.catalog[storyID]
	if !ok {
		return apperror.NotFound("story", storyID)
	}
	favs := f.favorites[username]
	for i, s := range favs {
		if s.StoryID == storyID {
			if !add {
				f.favorites[username] = append(favs[:i], favs[i+1:]...)
			}
			return nil
		}
	}
	if add {
		f.favorites[username] = append(favs, story)
	}
	return nil
}

// fakeSessionStore is an in-memory repository.SessionStore.
type fakeSessionStore struct {
	mu       sync.Mutex
	session  model.Session
	saves    int
	clears   int
	loadErr  error
	clearErr error
}

func (f *fakeSessionStore) Load(context.Context) (model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.session, f.loadErr
}

func (f *fakeSessionStore) Save(_ context.Context, s model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	f.session = s
	return nil
}

func (f *fakeSessionStore) Clear(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clears++
	if f.clearErr != nil {
		return f.clearErr
	}
	f.session = model.Session{}
	return nil
}

func newTestSession(t *testing.T) (*Session, *fakeAccounts, *fakeSessionStore) {
	t.Helper()
	accounts := newFakeAccounts()
	store := &fakeSessionStore{}
	logger := discardLogger()
	return NewSession(NewAccountService(accounts, logger), store, logger), accounts, store
}
