package model

import "github.com/sakif/hackorsnooze/internal/apperror"

// Session is the persisted login: the pair written on login/signup, cleared
// on logout and read once at startup.
type Session struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// IsZero reports whether there is nothing to restore.
func (s Session) IsZero() bool {
	return s.Token == "" || s.Username == ""
}

// DefaultPageSize is the page size used when none is configured.
const DefaultPageSize = 25

// Cursor is the (skip, limit) window into the feed.
type Cursor struct {
	Skip  int `json:"skip"`
	Limit int `json:"limit"`
}

// NewCursor starts at the top of the feed.
func NewCursor(limit int) Cursor {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	return Cursor{Skip: 0, Limit: limit}
}

// Validate enforces skip >= 0 and limit > 0.
func (c Cursor) Validate() error {
	if c.Skip < 0 {
		return apperror.ValidationFailed("skip", "skip must not be negative")
	}
	if c.Limit <= 0 {
		return apperror.ValidationFailed("limit", "limit must be positive")
	}
	return nil
}

// Advance moves past the n items a page actually returned. Advancing by the
// returned count rather than by Limit tolerates a short last page; it does not
// give a stable snapshot if stories are inserted or deleted between pages.
func (c Cursor) Advance(n int) Cursor {
	if n > 0 {
		c.Skip += n
	}
	return c
}
