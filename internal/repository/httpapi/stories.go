package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sakif/hackorsnooze/internal/apperror"
	"github.com/sakif/hackorsnooze/internal/model"
	"github.com/sakif/hackorsnooze/internal/repository"
)

// List fetches one page of the feed: GET /stories?skip=&limit=.
//
// An empty slice means the feed is exhausted. A body without a "stories"
// array is a contract violation and is never retried.
func (c *Client) List(ctx context.Context, opts repository.ListOptions) ([]model.Story, error) {
	var envelope storiesEnvelope
	err := c.send(ctx, call{
		op:     "fetching stories",
		method: http.MethodGet,
		path:   []string{"stories"},
		query: url.Values{
			"skip":  {strconv.Itoa(opts.Skip)},
			"limit": {strconv.Itoa(opts.Limit)},
		},
		retry: true,
	}, &envelope)
	if err != nil {
		return nil, err
	}

	stories, err := decodeStoryArray(envelope.Stories, apperror.InvalidServerData("Invalid data from server"))
	if err != nil {
		return nil, fmt.Errorf("httpapi: listing stories: %w", err)
	}
	return stories, nil
}

// Create submits a story under token's identity: POST /stories.
func (c *Client) Create(ctx context.Context, token string, draft model.StoryDraft) (*model.Story, error) {
	var envelope storyEnvelope
	err := c.send(ctx, call{
		op:     "submitting story",
		method: http.MethodPost,
		path:   []string{"stories"},
		body:   storyRequest{Token: token, Story: draft},
		errs:   storyWriteErrors(""),
	}, &envelope)
	if err != nil {
		return nil, err
	}

	if envelope.Story == nil {
		return nil, apperror.UnexpectedResponse("story response is missing the created story")
	}
	story, err := decodeStory(*envelope.Story)
	if err != nil {
		return nil, fmt.Errorf("httpapi: created story: %w", err)
	}
	return &story, nil
}

// Delete removes a story the caller owns: DELETE /stories/{id}?token=.
func (c *Client) Delete(ctx context.Context, token, storyID string) error {
	return c.send(ctx, call{
		op:     "removing story",
		method: http.MethodDelete,
		path:   []string{"stories", storyID},
		query:  url.Values{"token": {token}},
		errs:   storyWriteErrors(storyID),
	}, nil)
}

func storyWriteErrors(storyID string) statusMap {
	return statusMap{
		http.StatusUnauthorized: func(e apiError) error {
			return apperror.Unauthenticated(messageOr(e, "your session is no longer valid, log in again"))
		},
		http.StatusForbidden: func(e apiError) error {
			return apperror.Forbidden(messageOr(e, "you can only remove stories you submitted"))
		},
		http.StatusNotFound: func(apiError) error {
			return apperror.NotFound("story", storyID)
		},
	}
}
