// Package httpapi implements the repository interfaces against the remote
// story server's HTTP/JSON API.
//
// LAYERING:
//
//	service (business rules) → httpapi.Client (this package) → net/http
//
// Everything HTTP-specific stops here. Callers only ever see model values and
// apperror kinds: a 409 from /signup becomes apperror.ErrConflict, a dropped
// connection becomes apperror.ErrTransient, and a payload that breaks the
// contract becomes apperror.ErrInvalidServerData or ErrMalformedRecord.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/sakif/hackorsnooze/internal/apperror"
	"github.com/sakif/hackorsnooze/internal/repository"
)

const (
	DefaultTimeout   = 5 * time.Second
	DefaultRetryWait = 200 * time.Millisecond
)

// Config holds client configuration.
type Config struct {
	BaseURL    string
	Timeout    time.Duration // per request, including reading the body
	MaxRetries int           // extra attempts for idempotent calls on transient failures
	RetryWait  time.Duration // first backoff interval
	HTTPClient *http.Client  // optional; its Transport is wrapped with request logging
}

// Client talks to the story API. It is safe for concurrent use.
type Client struct {
	baseURL    *url.URL
	http       *http.Client
	maxRetries int
	retryWait  time.Duration
	logger     *slog.Logger
}

var (
	_ repository.StoryRepository   = (*Client)(nil)
	_ repository.AccountRepository = (*Client)(nil)
)

// New validates cfg and builds a Client.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("httpapi: invalid base URL %q", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retryWait := cfg.RetryWait
	if retryWait <= 0 {
		retryWait = DefaultRetryWait
	}

	var transport http.RoundTripper
	if cfg.HTTPClient != nil {
		transport = cfg.HTTPClient.Transport
	}

	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout:   timeout,
			Transport: newLoggingTransport(transport, logger),
		},
		maxRetries: max(cfg.MaxRetries, 0),
		retryWait:  retryWait,
		logger:     logger,
	}, nil
}

// call describes one API request.
type call struct {
	op     string // human description used in errors and logs, e.g. "fetching stories"
	method string
	path   []string
	query  url.Values
	body   any
	errs   statusMap
	retry  bool // only for idempotent requests
}

// send performs cl and decodes a successful response body into out (if non-nil).
func (c *Client) send(ctx context.Context, cl call, out any) error {
	if !cl.retry || c.maxRetries == 0 {
		return c.sendOnce(ctx, cl, out)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryWait

	_, err := backoff.Retry(ctx,
		func() (struct{}, error) {
			err := c.sendOnce(ctx, cl, out)
			if err != nil && !apperror.Retryable(err) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.WarnContext(ctx, "retrying request",
				slog.String("op", cl.op),
				slog.Duration("wait", wait),
				slog.String("error", err.Error()),
			)
		}),
	)
	if err != nil && ctx.Err() != nil && !errors.Is(err, ctx.Err()) {
		return fmt.Errorf("%s: %w", cl.op, ctx.Err())
	}
	return err
}

func (c *Client) sendOnce(ctx context.Context, cl call, out any) error {
	req, err := c.newRequest(ctx, cl)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// A caller that gave up is not a network problem.
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", cl.op, ctxErr)
		}
		return apperror.Transient(cl.op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return cl.errs.toError(cl.op, resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", cl.op, ctxErr)
		}
		if isDecodeError(err) {
			return &apperror.AppError{
				Err:     apperror.ErrInvalidServerData,
				Message: cl.op + ": response is not the expected JSON",
				Cause:   err,
			}
		}
		// Connection dropped or timed out mid-body.
		return apperror.Transient(cl.op, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, cl call) (*http.Request, error) {
	u := c.baseURL.JoinPath(cl.path...)
	if len(cl.query) > 0 {
		u.RawQuery = cl.query.Encode()
	}

	var body io.Reader
	if cl.body != nil {
		buf, err := json.Marshal(cl.body)
		if err != nil {
			return nil, fmt.Errorf("httpapi: encoding %s request: %w", cl.op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("httpapi: building %s request: %w", cl.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	var netErr net.Error
	switch {
	case errors.As(err, &netErr):
		return false
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return true
	case errors.Is(err, io.EOF):
		// Empty body where JSON was required.
		return true
	}
	return false
}
