// Package repository declares the storage-facing interfaces the services
// depend on. The remote story API (repository/httpapi) and the local session
// file (repository/sqlite) each implement one side of them.
package repository

import (
	"context"

	"github.com/sakif/hackorsnooze/internal/model"
)

type ListOptions struct {
	Skip  int
	Limit int
}

// StoryRepository is the global story feed.
type StoryRepository interface {
	List(ctx context.Context, opts ListOptions) ([]model.Story, error)
	Create(ctx context.Context, token string, draft model.StoryDraft) (*model.Story, error)
	Delete(ctx context.Context, token, storyID string) error
}

// AccountRepository covers signup, login and per-user state on the server.
type AccountRepository interface {
	Signup(ctx context.Context, username, password, name string) (*model.User, error)
	Login(ctx context.Context, username, password string) (*model.User, error)
	GetUser(ctx context.Context, token, username string) (*model.User, error)
	AddFavorite(ctx context.Context, token, username, storyID string) error
	RemoveFavorite(ctx context.Context, token, username, storyID string) error
}

// SessionStore persists the {token, username} pair between runs.
// Clear removes both fields in one step.
type SessionStore interface {
	Load(ctx context.Context) (model.Session, error)
	Save(ctx context.Context, session model.Session) error
	Clear(ctx context.Context) error
}
