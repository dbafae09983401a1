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

// StoryService applies the feed's rules on top of a StoryRepository.
type StoryService struct {
	stories repository.StoryRepository
	logger  *slog.Logger
}

func NewStoryService(stories repository.StoryRepository, logger *slog.Logger) *StoryService {
	return &StoryService{
		stories: stories,
		logger:  logger,
	}
}

// FetchPage returns the stories at [skip, skip+limit). An empty, non-nil
// slice means the end of the feed.
func (s *StoryService) FetchPage(ctx context.Context, skip, limit int) ([]model.Story, error) {
	cursor := model.Cursor{Skip: skip, Limit: limit}
	if err := cursor.Validate(); err != nil {
		return nil, err
	}

	stories, err := s.stories.List(ctx, repository.ListOptions{Skip: skip, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("fetching stories at %d: %w", skip, err)
	}
	if stories == nil {
		stories = []model.Story{}
	}
	return stories, nil
}

// Create validates draft locally and submits it under token's identity.
func (s *StoryService) Create(ctx context.Context, token string, draft model.StoryDraft) (*model.Story, error) {
	if token == "" {
		return nil, apperror.Unauthenticated("log in to submit a story")
	}
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	story, err := s.stories.Create(ctx, token, draft)
	if err != nil {
		s.logger.Warn("story not created",
			slog.String("title", draft.Title),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating story: %w", err)
	}

	s.logger.Info("story created",
		slog.String("storyID", story.StoryID),
		slog.String("title", story.Title),
	)
	return story, nil
}

// Remove deletes a story owned by token's user.
func (s *StoryService) Remove(ctx context.Context, token, storyID string) error {
	if token == "" {
		return apperror.Unauthenticated("log in to remove a story")
	}
	storyID = strings.TrimSpace(storyID)
	if storyID == "" {
		return apperror.ValidationFailed("storyId", "story ID is required")
	}

	if err := s.stories.Delete(ctx, token, storyID); err != nil {
		return fmt.Errorf("removing story %s: %w", storyID, err)
	}

	s.logger.Info("story removed", slog.String("storyID", storyID))
	return nil
}
