package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/sakif/hackorsnooze/internal/apperror"
	"github.com/sakif/hackorsnooze/internal/model"
)

// Signup creates an account: POST /signup. The returned user carries its
// token but no favorites or stories.
func (c *Client) Signup(ctx context.Context, username, password, name string) (*model.User, error) {
	var envelope userEnvelope
	err := c.send(ctx, call{
		op:     "creating account",
		method: http.MethodPost,
		path:   []string{"signup"},
		body:   userRequest{User: credentials{Username: username, Password: password, Name: name}},
		errs: statusMap{
			http.StatusConflict: func(apiError) error {
				return apperror.DuplicateUsername(username)
			},
		},
	}, &envelope)
	if err != nil {
		return nil, err
	}

	user, err := decodeUser(envelope.User, false)
	if err != nil {
		return nil, fmt.Errorf("httpapi: signup response: %w", err)
	}
	if envelope.Token == "" {
		return nil, apperror.UnexpectedResponse("signup response is missing the token")
	}
	user.Token = envelope.Token
	return user, nil
}

// Login exchanges credentials for a session: POST /login.
func (c *Client) Login(ctx context.Context, username, password string) (*model.User, error) {
	badCredentials := func(apiError) error {
		return apperror.Unauthenticated("Login failed.")
	}

	var envelope userEnvelope
	err := c.send(ctx, call{
		op:     "logging in",
		method: http.MethodPost,
		path:   []string{"login"},
		body:   userRequest{User: credentials{Username: username, Password: password}},
		errs: statusMap{
			http.StatusUnauthorized: badCredentials,
			http.StatusForbidden:    badCredentials,
			http.StatusNotFound:     badCredentials,
		},
	}, &envelope)
	if err != nil {
		return nil, err
	}

	user, err := decodeUser(envelope.User, true)
	if err != nil {
		return nil, fmt.Errorf("httpapi: login response: %w", err)
	}
	if envelope.Token == "" {
		return nil, apperror.UnexpectedResponse("login response is missing the token")
	}
	user.Token = envelope.Token
	return user, nil
}

// GetUser fetches the profile behind a stored token: GET /users/{username}?token=.
// A rejected token surfaces as apperror.ErrSessionExpired.
func (c *Client) GetUser(ctx context.Context, token, username string) (*model.User, error) {
	expired := func(apiError) error {
		return apperror.SessionExpired(username)
	}

	var envelope userEnvelope
	err := c.send(ctx, call{
		op:     "loading profile",
		method: http.MethodGet,
		path:   []string{"users", username},
		query:  url.Values{"token": {token}},
		errs: statusMap{
			http.StatusUnauthorized: expired,
			http.StatusForbidden:    expired,
			http.StatusNotFound: func(apiError) error {
				return apperror.NotFound("user", username)
			},
		},
		retry: true,
	}, &envelope)
	if err != nil {
		return nil, err
	}

	user, err := decodeUser(envelope.User, true)
	if err != nil {
		return nil, fmt.Errorf("httpapi: profile response: %w", err)
	}
	user.Token = token
	return user, nil
}

// AddFavorite stars a story: POST /users/{username}/favorites/{storyId}.
// The server treats a repeated add as a no-op.
func (c *Client) AddFavorite(ctx context.Context, token, username, storyID string) error {
	return c.send(ctx, call{
		op:     "adding favorite",
		method: http.MethodPost,
		path:   []string{"users", username, "favorites", storyID},
		body:   tokenRequest{Token: token},
		errs:   favoriteErrors(storyID),
		retry:  true,
	}, nil)
}

// RemoveFavorite unstars a story: DELETE /users/{username}/favorites/{storyId}?token=.
func (c *Client) RemoveFavorite(ctx context.Context, token, username, storyID string) error {
	return c.send(ctx, call{
		op:     "removing favorite",
		method: http.MethodDelete,
		path:   []string{"users", username, "favorites", storyID},
		query:  url.Values{"token": {token}},
		errs:   favoriteErrors(storyID),
		retry:  true,
	}, nil)
}

func favoriteErrors(storyID string) statusMap {
	notYours := func(e apiError) error {
		return apperror.Forbidden(messageOr(e, "token does not belong to this user"))
	}
	return statusMap{
		http.StatusUnauthorized: notYours,
		http.StatusForbidden:    notYours,
		http.StatusNotFound: func(apiError) error {
			return apperror.NotFound("story", storyID)
		},
	}
}
