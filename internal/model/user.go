package model

import (
	"slices"
	"time"
)

// User represents an account on the story server.
//
// AUTHENTICATED VS PLAIN:
// A User built with NewUser is just a profile: no token, no favorites, no own
// stories. Only login and session hydration fill Token and the two collections,
// so a non-empty Token always means "this value came from a real session".
//
// FavoriteIDs is a set (order irrelevant) used for the ★ lookups; Favorites
// keeps the full stories in server order for the favorites view. OwnStories is
// most-recent-first, as the server returns it.
type User struct {
	Username    string              `json:"username"  yaml:"username"`
	Name        string              `json:"name"      yaml:"name"`
	CreatedAt   time.Time           `json:"createdAt" yaml:"createdAt"`
	UpdatedAt   time.Time           `json:"updatedAt" yaml:"updatedAt"`
	Token       string              `json:"-"         yaml:"-"`
	FavoriteIDs map[string]struct{} `json:"-"         yaml:"-"`
	Favorites   []Story             `json:"favorites" yaml:"favorites"`
	OwnStories  []Story             `json:"stories"   yaml:"stories"`
}

// NewUser builds an unauthenticated profile.
func NewUser(username, name string, createdAt, updatedAt time.Time) *User {
	return &User{
		Username:    username,
		Name:        name,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
		FavoriteIDs: map[string]struct{}{},
	}
}

// IsAuthenticated reports whether the user carries a session token.
func (u *User) IsAuthenticated() bool {
	return u != nil && u.Token != ""
}

// IsFavorite reports whether storyID is among the user's favorites.
func (u *User) IsFavorite(storyID string) bool {
	if u == nil {
		return false
	}
	_, ok := u.FavoriteIDs[storyID]
	return ok
}

// Owns reports whether the user submitted storyID.
func (u *User) Owns(storyID string) bool {
	if u == nil {
		return false
	}
	return slices.ContainsFunc(u.OwnStories, func(s Story) bool { return s.StoryID == storyID })
}

// Session returns the persisted form of this user's login.
func (u *User) Session() Session {
	if u == nil {
		return Session{}
	}
	return Session{Token: u.Token, Username: u.Username}
}

// SetFavorites replaces both favorite collections from a server listing.
func (u *User) SetFavorites(stories []Story) {
	u.Favorites = slices.Clone(stories)
	u.FavoriteIDs = make(map[string]struct{}, len(stories))
	for _, s := range stories {
		u.FavoriteIDs[s.StoryID] = struct{}{}
	}
}

// MarkFavorite records a favorite the server has confirmed.
func (u *User) MarkFavorite(story Story) {
	if u.FavoriteIDs == nil {
		u.FavoriteIDs = map[string]struct{}{}
	}
	if _, ok := u.FavoriteIDs[story.StoryID]; ok {
		return
	}
	u.FavoriteIDs[story.StoryID] = struct{}{}
	u.Favorites = append(u.Favorites, story)
}

// UnmarkFavorite drops a favorite the server has confirmed removed.
func (u *User) UnmarkFavorite(storyID string) {
	delete(u.FavoriteIDs, storyID)
	u.Favorites = slices.DeleteFunc(u.Favorites, func(s Story) bool { return s.StoryID == storyID })
}

// Clone returns a deep copy, so callers can't reach into the session's user.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	c.FavoriteIDs = make(map[string]struct{}, len(u.FavoriteIDs))
	for id := range u.FavoriteIDs {
		c.FavoriteIDs[id] = struct{}{}
	}
	c.Favorites = slices.Clone(u.Favorites)
	c.OwnStories = slices.Clone(u.OwnStories)
	return &c
}

// AddOwnStory records a story the user just submitted. OwnStories stays
// newest first.
func (u *User) AddOwnStory(story Story) {
	if u.Owns(story.StoryID) {
		return
	}
	u.OwnStories = append([]Story{story}, u.OwnStories...)
}

// ForgetStory drops a deleted story from both collections.
func (u *User) ForgetStory(storyID string) {
	u.UnmarkFavorite(storyID)
	u.OwnStories = slices.DeleteFunc(u.OwnStories, func(s Story) bool { return s.StoryID == storyID })
}
