package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/sakif/hackorsnooze/internal/apperror"
	"github.com/sakif/hackorsnooze/internal/model"
	"github.com/sakif/hackorsnooze/internal/repository"
)

// Session owns the current user for the life of the process.
//
// OWNERSHIP:
// There is exactly one Session per process and it is passed explicitly to
// whatever needs the current user. It is the only writer of the persisted
// session: LogIn and SignUp save it, LogOut clears it, and Restore clears it
// when the server says the stored token is no longer valid. Everything else
// only reads.
//
// FAVORITES:
// A favorite toggle waits for the server. Local state changes only after the
// server confirmed the call, so a failed toggle needs no undo: the user value
// was never touched. Concurrent toggles of the same story share one request.
type Session struct {
	accounts *AccountService
	store    repository.SessionStore
	logger   *slog.Logger

	mu   sync.RWMutex
	user *model.User

	toggles singleflight.Group
}

func NewSession(accounts *AccountService, store repository.SessionStore, logger *slog.Logger) *Session {
	return &Session{
		accounts: accounts,
		store:    store,
		logger:   logger,
	}
}

// Restore loads the stored session and hydrates it. It returns (nil, nil)
// when nothing is stored.
func (s *Session) Restore(ctx context.Context) (*model.User, error) {
	saved, err := s.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading stored session: %w", err)
	}

	user, err := s.accounts.HydrateFromPersistedSession(ctx, saved.Token, saved.Username)
	if err != nil {
		if errors.Is(err, apperror.ErrSessionExpired) {
			return nil, s.expire(ctx, saved.Username, err)
		}
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	s.setUser(user)
	return user.Clone(), nil
}

// SignUp creates an account and makes it the current, persisted session.
func (s *Session) SignUp(ctx context.Context, username, password, fullName string) (*model.User, error) {
	user, err := s.accounts.CreateAccount(ctx, username, password, fullName)
	if err != nil {
		return nil, err
	}
	return s.begin(ctx, user)
}

// LogIn authenticates and makes the user the current, persisted session.
func (s *Session) LogIn(ctx context.Context, username, password string) (*model.User, error) {
	user, err := s.accounts.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return s.begin(ctx, user)
}

func (s *Session) begin(ctx context.Context, user *model.User) (*model.User, error) {
	if err := s.store.Save(ctx, user.Session()); err != nil {
		return nil, fmt.Errorf("saving session for %s: %w", user.Username, err)
	}
	s.setUser(user)
	return user.Clone(), nil
}

// LogOut forgets the current user and clears the stored session. The
// in-memory user is dropped even if clearing the store fails.
func (s *Session) LogOut(ctx context.Context) error {
	s.mu.Lock()
	username := ""
	if s.user != nil {
		username = s.user.Username
	}
	s.user = nil
	s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing stored session: %w", err)
	}
	s.logger.Info("logged out", slog.String("username", username))
	return nil
}

// User returns a copy of the current user, or nil when logged out.
func (s *Session) User() *model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user.Clone()
}

// ToggleFavorite flips story's favorite state and reports the new state.
// On error the state is unchanged.
func (s *Session) ToggleFavorite(ctx context.Context, story model.Story) (bool, error) {
	current := s.User()
	if !current.IsAuthenticated() {
		return false, apperror.Unauthenticated("log in to manage favorites")
	}

	want := !current.IsFavorite(story.StoryID)
	if err := s.setFavorite(ctx, story, want); err != nil {
		return !want, err
	}
	return want, nil
}

// SetFavorite makes storyID a favorite (want) or not. Setting the state it
// already has still asks the server, which treats it as a no-op.
func (s *Session) SetFavorite(ctx context.Context, storyID string, want bool) error {
	return s.setFavorite(ctx, knownStory(s.User(), storyID), want)
}

func (s *Session) setFavorite(ctx context.Context, story model.Story, want bool) error {
	current := s.User()
	if !current.IsAuthenticated() {
		return apperror.Unauthenticated("log in to manage favorites")
	}
	token, username := current.Token, current.Username

	key := "remove:" + story.StoryID
	if want {
		key = "add:" + story.StoryID
	}
	_, err, shared := s.toggles.Do(key, func() (any, error) {
		var err error
		if want {
			err = s.accounts.AddFavorite(ctx, token, username, story.StoryID)
		} else {
			err = s.accounts.RemoveFavorite(ctx, token, username, story.StoryID)
		}
		if err != nil {
			return nil, err
		}

		// Confirmed by the server. A favorite we only know by ID gets its
		// full record from a profile refresh.
		if want && story.URL == "" {
			if story, err = s.refreshStory(ctx, token, username, story); err != nil {
				return nil, err
			}
		}
		s.apply(username, func(u *model.User) {
			if want {
				u.MarkFavorite(story)
			} else {
				u.UnmarkFavorite(story.StoryID)
			}
		})
		return nil, nil
	})
	if err != nil {
		s.logger.Warn("favorite not changed",
			slog.String("storyID", story.StoryID),
			slog.Bool("favorite", want),
			slog.String("error", err.Error()),
		)
		return err
	}

	s.logger.Info("favorite changed",
		slog.String("storyID", story.StoryID),
		slog.Bool("favorite", want),
		slog.Bool("shared", shared),
	)
	return nil
}

// refreshStory looks story up in a freshly loaded profile. A refresh that
// fails for any reason but an expired token still returns story (known only
// by ID) so the confirmed favorite is recorded. An expired token ends the
// session: the user is dropped, the stored session cleared and the error
// returned.
func (s *Session) refreshStory(ctx context.Context, token, username string, story model.Story) (model.Story, error) {
	fresh, err := s.accounts.HydrateFromPersistedSession(ctx, token, username)
	if errors.Is(err, apperror.ErrSessionExpired) {
		return story, s.expire(ctx, username, err)
	}
	if err != nil || fresh == nil {
		s.logger.Warn("could not refresh favorites, recording the story by ID",
			slog.String("storyID", story.StoryID),
			slog.Any("error", err),
		)
		return story, nil
	}
	if i := slices.IndexFunc(fresh.Favorites, func(f model.Story) bool { return f.StoryID == story.StoryID }); i >= 0 {
		return fresh.Favorites[i], nil
	}
	return story, nil
}

// expire ends username's session after the server rejected its token. The
// in-memory user is dropped even if clearing the store fails.
func (s *Session) expire(ctx context.Context, username string, cause error) error {
	s.mu.Lock()
	if s.user != nil && s.user.Username == username {
		s.user = nil
	}
	s.mu.Unlock()

	if err := s.store.Clear(ctx); err != nil {
		return errors.Join(cause, fmt.Errorf("clearing expired session: %w", err))
	}
	s.logger.Warn("stored session expired and was cleared", slog.String("username", username))
	return cause
}

// RecordStory adds a story the current user just submitted.
func (s *Session) RecordStory(story model.Story) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user != nil && s.user.Username == story.Username {
		s.user.AddOwnStory(story)
	}
}

// ForgetStory drops a story the current user just deleted.
func (s *Session) ForgetStory(storyID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user != nil {
		s.user.ForgetStory(storyID)
	}
}

// apply mutates the current user if it is still username; a logout or a
// different login in the meantime makes the update moot.
func (s *Session) apply(username string, fn func(*model.User)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user != nil && s.user.Username == username {
		fn(s.user)
	}
}

func (s *Session) setUser(user *model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user.Clone()
}

// knownStory finds storyID among the user's stories so a new favorite can
// be recorded with its full record.
func knownStory(u *model.User, storyID string) model.Story {
	if u == nil {
		return model.Story{StoryID: storyID}
	}
	for _, list := range [][]model.Story{u.Favorites, u.OwnStories} {
		if i := slices.IndexFunc(list, func(st model.Story) bool { return st.StoryID == storyID }); i >= 0 {
			return list[i]
		}
	}
	return model.Story{StoryID: storyID}
}
