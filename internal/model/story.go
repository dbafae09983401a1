// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"mvdan.cc/xurls/v2"

	"github.com/sakif/hackorsnooze/internal/apperror"
)

// Story is a single submitted link as the server reports it.
//
// VALUE SEMANTICS:
// Stories are passed around by value and nothing in this module mutates one
// after the wire layer built it. The same Story can sit in the feed, in
// User.Favorites and in User.OwnStories without any back-references.
//
// The `json:"..."` tags match the server's field names, so the CLI can print
// a Story as JSON in the same shape the API uses.
type Story struct {
	StoryID   string    `json:"storyId"   yaml:"storyId"`
	Title     string    `json:"title"     yaml:"title"`
	Author    string    `json:"author"    yaml:"author"`
	URL       string    `json:"url"       yaml:"url"`
	Username  string    `json:"username"  yaml:"username"` // submitter
	CreatedAt time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" yaml:"updatedAt"`
}

// Hostname returns the story URL's host without a leading "www.".
// URLs without a scheme are treated as "host/path".
func (s Story) Hostname() string {
	raw := strings.TrimSpace(s.URL)
	var host string
	if strings.Contains(raw, "://") {
		if u, err := url.Parse(raw); err == nil {
			host = u.Hostname()
		}
	} else {
		host, _, _ = strings.Cut(raw, "/")
	}
	return strings.TrimPrefix(host, "www.")
}

// StoryDraft is what a user submits; the server assigns everything else.
type StoryDraft struct {
	Author string `json:"author"`
	Title  string `json:"title"`
	URL    string `json:"url"`
}

const (
	MaxTitleLength  = 200
	MaxAuthorLength = 100
)

// draftURLRe matches absolute http(s) URLs only.
var draftURLRe = mustStrictURLRegexp(`https?://`)

func mustStrictURLRegexp(scheme string) *regexp.Regexp {
	re, err := xurls.StrictMatchingScheme(scheme)
	if err != nil {
		panic(err)
	}
	return re
}

// Normalize returns a copy with surrounding whitespace removed.
func (d StoryDraft) Normalize() StoryDraft {
	return StoryDraft{
		Author: strings.TrimSpace(d.Author),
		Title:  strings.TrimSpace(d.Title),
		URL:    strings.TrimSpace(d.URL),
	}
}

// Validate checks the draft before it is sent. The server has the final say;
// this only catches the mistakes a user can fix without a round trip.
func (d StoryDraft) Validate() error {
	d = d.Normalize()

	switch {
	case d.Title == "":
		return apperror.ValidationFailed("title", "story title is required")
	case len(d.Title) > MaxTitleLength:
		return apperror.ValidationFailed("title", "story title is too long")
	case d.Author == "":
		return apperror.ValidationFailed("author", "story author is required")
	case len(d.Author) > MaxAuthorLength:
		return apperror.ValidationFailed("author", "story author is too long")
	case d.URL == "":
		return apperror.ValidationFailed("url", "story url is required")
	}

	// The whole string has to be one URL, not text that merely contains one.
	if draftURLRe.FindString(d.URL) != d.URL {
		return apperror.ValidationFailed("url", "story url must be a full http(s) link")
	}
	return nil
}
