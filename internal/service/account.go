// Package service contains the client's business rules.
//
// LAYERING:
//
//	cli (presentation) → service (rules, state) → repository (wire, storage)
//
// The services take repository interfaces, never *httpapi.Client or
// *sqlite.DB, so tests drive them with in-memory fakes (see fakes_test.go)
// and the cli package drives them the same way whichever backend is wired in.
//
// Errors come back as apperror kinds, wrapped with the operation that failed.
// The cli layer decides how to show them; nothing here prints.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/hackorsnooze/internal/apperror"
	"github.com/sakif/hackorsnooze/internal/model"
	"github.com/sakif/hackorsnooze/internal/repository"
)

// AccountService is stateless access to accounts: every call takes the
// token and username it acts for. The current-user state lives in Session.
type AccountService struct {
	accounts repository.AccountRepository
	logger   *slog.Logger
}

func NewAccountService(accounts repository.AccountRepository, logger *slog.Logger) *AccountService {
	return &AccountService{
		accounts: accounts,
		logger:   logger,
	}
}

// CreateAccount registers a new user. The returned user carries a token but
// no favorites or stories yet.
//
// Fails with ErrConflict (Value = the attempted username) when the name is
// taken and ErrValidation when a field is empty or the server rejects it.
func (s *AccountService) CreateAccount(ctx context.Context, username, password, fullName string) (*model.User, error) {
	username = strings.TrimSpace(username)
	fullName = strings.TrimSpace(fullName)

	switch {
	case username == "":
		return nil, apperror.ValidationFailed("username", "username is required")
	case password == "":
		return nil, apperror.ValidationFailed("password", "password is required")
	case fullName == "":
		return nil, apperror.ValidationFailed("name", "name is required")
	}

	user, err := s.accounts.Signup(ctx, username, password, fullName)
	if err != nil {
		return nil, fmt.Errorf("creating account %s: %w", username, err)
	}

	s.logger.Info("account created", slog.String("username", user.Username))
	return user, nil
}

// Login exchanges credentials for a fully hydrated user.
func (s *AccountService) Login(ctx context.Context, username, password string) (*model.User, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if password == "" {
		return nil, apperror.ValidationFailed("password", "password is required")
	}

	user, err := s.accounts.Login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("logging in %s: %w", username, err)
	}

	s.logger.Info("logged in",
		slog.String("username", user.Username),
		slog.Int("favorites", len(user.FavoriteIDs)),
		slog.Int("stories", len(user.OwnStories)),
	)
	return user, nil
}

// HydrateFromPersistedSession rebuilds the user behind a stored session.
//
// With either argument empty there is nothing to restore: it returns
// (nil, nil) and makes no request. Every other outcome comes from the server,
// including ErrSessionExpired, which the caller must react to by clearing
// the stored session.
func (s *AccountService) HydrateFromPersistedSession(ctx context.Context, token, username string) (*model.User, error) {
	if token == "" || username == "" {
		return nil, nil
	}

	user, err := s.accounts.GetUser(ctx, token, username)
	if err != nil {
		return nil, fmt.Errorf("restoring session for %s: %w", username, err)
	}
	return user, nil
}

// AddFavorite stars storyID on the server. No User value is touched; the
// caller reconciles its own state once this returns nil.
func (s *AccountService) AddFavorite(ctx context.Context, token, username, storyID string) error {
	if err := s.accounts.AddFavorite(ctx, token, username, storyID); err != nil {
		return fmt.Errorf("adding favorite %s: %w", storyID, err)
	}
	return nil
}

// RemoveFavorite unstars storyID on the server. Like AddFavorite it leaves
// local state to the caller.
func (s *AccountService) RemoveFavorite(ctx context.Context, token, username, storyID string) error {
	if err := s.accounts.RemoveFavorite(ctx, token, username, storyID); err != nil {
		return fmt.Errorf("removing favorite %s: %w", storyID, err)
	}
	return nil
}
