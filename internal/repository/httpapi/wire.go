package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sakif/hackorsnooze/internal/apperror"
	"github.com/sakif/hackorsnooze/internal/model"
)

// Wire records decode every field through a pointer so "absent" (or null)
// can be told apart from "empty string". The server's contract says all seven
// story fields are always present.

type storyRecord struct {
	StoryID   *string `json:"storyId"`
	Title     *string `json:"title"`
	Author    *string `json:"author"`
	URL       *string `json:"url"`
	Username  *string `json:"username"`
	CreatedAt *string `json:"createdAt"`
	UpdatedAt *string `json:"updatedAt"`
}

type userRecord struct {
	Username  *string          `json:"username"`
	Name      *string          `json:"name"`
	CreatedAt *string          `json:"createdAt"`
	UpdatedAt *string          `json:"updatedAt"`
	Favorites *json.RawMessage `json:"favorites"`
	Stories   *json.RawMessage `json:"stories"`
}

// Request bodies.

type storyRequest struct {
	Token string           `json:"token"`
	Story model.StoryDraft `json:"story"`
}

type tokenRequest struct {
	Token string `json:"token"`
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

type userRequest struct {
	User credentials `json:"user"`
}

// Response envelopes. Raw messages are validated by hand below.

type storiesEnvelope struct {
	Stories *json.RawMessage `json:"stories"`
}

type storyEnvelope struct {
	Story *json.RawMessage `json:"story"`
}

type userEnvelope struct {
	Token string           `json:"token"`
	User  *json.RawMessage `json:"user"`
}

// decodeStory builds a Story from one record of a response.
func decodeStory(raw json.RawMessage) (model.Story, error) {
	var rec storyRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return model.Story{}, malformedFrom("story", err)
	}

	required := []struct {
		name  string
		value *string
	}{
		{"storyId", rec.StoryID},
		{"title", rec.Title},
		{"author", rec.Author},
		{"url", rec.URL},
		{"username", rec.Username},
		{"createdAt", rec.CreatedAt},
		{"updatedAt", rec.UpdatedAt},
	}
	for _, f := range required {
		if f.value == nil {
			return model.Story{}, apperror.MalformedRecord(f.name, "story record is missing "+f.name)
		}
	}
	if *rec.StoryID == "" {
		return model.Story{}, apperror.MalformedRecord("storyId", "story record has an empty storyId")
	}

	createdAt, err := parseTime("createdAt", *rec.CreatedAt)
	if err != nil {
		return model.Story{}, err
	}
	updatedAt, err := parseTime("updatedAt", *rec.UpdatedAt)
	if err != nil {
		return model.Story{}, err
	}

	return model.Story{
		StoryID:   *rec.StoryID,
		Title:     *rec.Title,
		Author:    *rec.Author,
		URL:       *rec.URL,
		Username:  *rec.Username,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// decodeStoryArray requires raw to be a JSON array of story records.
// notArray is returned when it is not one.
func decodeStoryArray(raw *json.RawMessage, notArray error) ([]model.Story, error) {
	if raw == nil || !isJSONArray(*raw) {
		return nil, notArray
	}
	var items []json.RawMessage
	if err := json.Unmarshal(*raw, &items); err != nil {
		return nil, notArray
	}

	stories := make([]model.Story, 0, len(items))
	for i, item := range items {
		s, err := decodeStory(item)
		if err != nil {
			return nil, fmt.Errorf("story %d: %w", i, err)
		}
		stories = append(stories, s)
	}
	return stories, nil
}

// decodeUser builds a User. With hydrate set, the favorites and stories
// arrays are required and loaded; otherwise the collections stay empty.
func decodeUser(raw *json.RawMessage, hydrate bool) (*model.User, error) {
	if raw == nil || !isJSONObject(*raw) {
		return nil, apperror.UnexpectedResponse("Missing User field")
	}

	var rec userRecord
	if err := json.Unmarshal(*raw, &rec); err != nil {
		return nil, malformedFrom("user", err)
	}
	if rec.Username == nil || *rec.Username == "" {
		return nil, apperror.MalformedRecord("username", "user record is missing username")
	}

	var name string
	if rec.Name != nil {
		name = *rec.Name
	}
	var createdAt, updatedAt time.Time
	var err error
	if rec.CreatedAt != nil {
		if createdAt, err = parseTime("createdAt", *rec.CreatedAt); err != nil {
			return nil, err
		}
	}
	if rec.UpdatedAt != nil {
		if updatedAt, err = parseTime("updatedAt", *rec.UpdatedAt); err != nil {
			return nil, err
		}
	}

	user := model.NewUser(*rec.Username, name, createdAt, updatedAt)
	if !hydrate {
		return user, nil
	}

	favorites, err := decodeStoryArray(rec.Favorites, apperror.UnexpectedResponse("user response is missing favorites"))
	if err != nil {
		return nil, fmt.Errorf("favorites: %w", err)
	}
	own, err := decodeStoryArray(rec.Stories, apperror.UnexpectedResponse("user response is missing stories"))
	if err != nil {
		return nil, fmt.Errorf("stories: %w", err)
	}
	user.SetFavorites(favorites)
	user.OwnStories = own
	return user, nil
}

func parseTime(field, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, apperror.MalformedRecord(field, fmt.Sprintf("%s is not an RFC 3339 timestamp: %q", field, value))
	}
	return t, nil
}

func malformedFrom(record string, err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return apperror.MalformedRecord(typeErr.Field,
			fmt.Sprintf("%s record has %s of type %s, want %s", record, typeErr.Field, typeErr.Value, typeErr.Type))
	}
	return &apperror.AppError{
		Err:     apperror.ErrMalformedRecord,
		Message: record + " record is not a JSON object",
		Cause:   err,
	}
}

func isJSONArray(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func isJSONObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}
