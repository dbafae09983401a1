package apitest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/hackorsnooze/internal/apperror"
)

// api holds the route handlers. Handlers only parse requests and write
// responses; storage lives in store.
type api struct {
	store  *store
	tokens *tokenService
	logger *slog.Logger
}

type credentialsBody struct {
	User struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Name     string `json:"name"`
	} `json:"user"`
}

type storyBody struct {
	Token string `json:"token"`
	Story struct {
		Author string `json:"author"`
		Title  string `json:"title"`
		URL    string `json:"url"`
	} `json:"story"`
}

type tokenBody struct {
	Token string `json:"token"`
}

// GET /stories?skip=&limit=
func (a *api) listStories(w http.ResponseWriter, r *http.Request) {
	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	stories, err := a.store.ListStories(r.Context(), skip, limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stories": stories})
}

// POST /stories {token, story:{author,title,url}}
func (a *api) createStory(w http.ResponseWriter, r *http.Request) {
	var body storyBody
	if !a.decode(w, r, &body) {
		return
	}
	username, ok := a.authenticate(w, body.Token)
	if !ok {
		return
	}

	st := body.Story
	for _, f := range []struct{ name, value string }{
		{"author", st.Author}, {"title", st.Title}, {"url", st.URL},
	} {
		if strings.TrimSpace(f.value) == "" {
			a.writeError(w, apperror.ValidationFailed(f.name, "story requires property "+f.name))
			return
		}
	}
	if !strings.HasPrefix(st.URL, "http://") && !strings.HasPrefix(st.URL, "https://") {
		a.writeError(w, apperror.ValidationFailed("url", "story url must be a valid http(s) URL"))
		return
	}

	created, err := a.store.CreateStory(r.Context(), username, st.Title, st.Author, st.URL)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"story": created})
}

// DELETE /stories/{storyId}?token=
func (a *api) deleteStory(w http.ResponseWriter, r *http.Request) {
	username, ok := a.authenticate(w, r.URL.Query().Get("token"))
	if !ok {
		return
	}
	storyID := chi.URLParam(r, "storyId")

	st, err := a.store.Story(r.Context(), storyID)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if st.Username != username {
		a.writeError(w, apperror.Forbidden("you can only delete your own stories"))
		return
	}
	if err := a.store.DeleteStory(r.Context(), storyID); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "Deleted", "story": st})
}

// POST /signup {user:{username,password,name}}
func (a *api) signup(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if !a.decode(w, r, &body) {
		return
	}
	u := body.User
	for _, f := range []struct{ name, value string }{
		{"username", u.Username}, {"password", u.Password}, {"name", u.Name},
	} {
		if f.value == "" {
			a.writeError(w, apperror.ValidationFailed(f.name, "user requires property "+f.name))
			return
		}
	}

	hash, err := hashPassword(u.Password)
	if err != nil {
		a.writeError(w, err)
		return
	}
	row, err := a.store.CreateUser(r.Context(), u.Username, u.Name, hash)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeSession(w, r, http.StatusCreated, row)
}

// POST /login {user:{username,password}}
func (a *api) login(w http.ResponseWriter, r *http.Request) {
	var body credentialsBody
	if !a.decode(w, r, &body) {
		return
	}

	row, err := a.store.User(r.Context(), body.User.Username)
	if err != nil {
		a.writeError(w, err)
		return
	}
	if err := row.checkPassword(body.User.Password); err != nil {
		a.writeError(w, err)
		return
	}
	a.writeSession(w, r, http.StatusOK, row)
}

// GET /users/{username}?token=
func (a *api) getUser(w http.ResponseWriter, r *http.Request) {
	row, ok := a.authorizeUser(w, r, r.URL.Query().Get("token"))
	if !ok {
		return
	}
	profile, err := a.store.Profile(r.Context(), row)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": profile})
}

// POST /users/{username}/favorites/{storyId} {token}
func (a *api) addFavorite(w http.ResponseWriter, r *http.Request) {
	var body tokenBody
	if !a.decode(w, r, &body) {
		return
	}
	a.toggleFavorite(w, r, body.Token, true)
}

// DELETE /users/{username}/favorites/{storyId}?token=
func (a *api) removeFavorite(w http.ResponseWriter, r *http.Request) {
	a.toggleFavorite(w, r, r.URL.Query().Get("token"), false)
}

func (a *api) toggleFavorite(w http.ResponseWriter, r *http.Request, token string, add bool) {
	row, ok := a.authorizeUser(w, r, token)
	if !ok {
		return
	}
	storyID := chi.URLParam(r, "storyId")
	if _, err := a.store.Story(r.Context(), storyID); err != nil {
		a.writeError(w, err)
		return
	}

	var err error
	message := "Favorite added!"
	if add {
		err = a.store.AddFavorite(r.Context(), row.Username, storyID)
	} else {
		err = a.store.RemoveFavorite(r.Context(), row.Username, storyID)
		message = "Favorite removed!"
	}
	if err != nil {
		a.writeError(w, err)
		return
	}

	profile, err := a.store.Profile(r.Context(), row)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": message, "user": profile})
}

// authorizeUser checks that token belongs to the {username} in the path.
func (a *api) authorizeUser(w http.ResponseWriter, r *http.Request, token string) (userRow, bool) {
	subject, ok := a.authenticate(w, token)
	if !ok {
		return userRow{}, false
	}
	username := chi.URLParam(r, "username")
	if subject != username {
		a.writeError(w, apperror.Forbidden("token does not belong to "+username))
		return userRow{}, false
	}
	row, err := a.store.User(r.Context(), username)
	if err != nil {
		a.writeError(w, err)
		return userRow{}, false
	}
	return row, true
}

func (a *api) authenticate(w http.ResponseWriter, token string) (string, bool) {
	username, err := a.tokens.Validate(token)
	if err != nil {
		a.writeError(w, apperror.Unauthenticated("A valid token is required."))
		return "", false
	}
	return username, true
}

func (a *api) writeSession(w http.ResponseWriter, r *http.Request, status int, row userRow) {
	token, err := a.tokens.Generate(row.Username)
	if err != nil {
		a.writeError(w, err)
		return
	}
	profile, err := a.store.Profile(r.Context(), row)
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, status, map[string]any{"token": token, "user": profile})
}

func (a *api) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		a.writeError(w, apperror.ValidationFailed("body", "request body must be JSON"))
		return false
	}
	return true
}

// errorBody is the error envelope every endpoint answers with:
//
//	{"error": {"status": 404, "title": "Not Found", "message": "...", "field": "..."}}
type errorBody struct {
	Status  int    `json:"status"`
	Title   string `json:"title"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are gone; nothing left to tell the client.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps an apperror kind to its status code. Anything that is not
// an *apperror.AppError is an internal failure and its text is not exposed.
func (a *api) writeError(w http.ResponseWriter, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		a.logger.Error("internal error", slog.String("error", err.Error()))
		writeErrorBody(w, errorBody{
			Status:  http.StatusInternalServerError,
			Message: "An internal error occurred",
		})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperror.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, apperror.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, apperror.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperror.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperror.ErrConflict):
		status = http.StatusConflict
	}
	writeErrorBody(w, errorBody{
		Status:  status,
		Message: appErr.Message,
		Field:   appErr.Field,
	})
}

func writeErrorBody(w http.ResponseWriter, e errorBody) {
	if e.Title == "" {
		e.Title = http.StatusText(e.Status)
	}
	writeJSON(w, e.Status, map[string]errorBody{"error": e})
}
