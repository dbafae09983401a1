// Package apitest runs an in-process implementation of the story API for
// tests.
//
// The fake speaks the same JSON contract as the real server (routes, error
// envelope, token rules) and is backed by an in-memory sqlite database, so
// client code under test goes through real HTTP:
//
//	srv := apitest.New(t)
//	client, _ := httpapi.New(httpapi.Config{BaseURL: srv.URL}, logger)
//
// Besides serving the API it can inject failures (FailNext, RespondNext),
// record what it received (Requests) and run a hook before each request
// (OnRequest), which is how cancellation and in-flight tests get their timing.
package apitest

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"

	"github.com/sakif/hackorsnooze/internal/model"
)

// Request is what the server saw of one incoming request.
type Request struct {
	Method    string
	Path      string
	Query     url.Values
	Body      []byte
	RequestID string
}

type cannedResponse struct {
	status int
	body   string
}

// Server is a running fake API. URL is its base URL.
type Server struct {
	URL string

	srv    *httptest.Server
	store  *store
	api    *api
	logger *slog.Logger

	mu        sync.Mutex
	canned    []cannedResponse
	requests  []Request
	onRequest func(Request)
}

// New starts a server and stops it when t finishes.
func New(t testing.TB) *Server {
	t.Helper()

	st, err := openStore(context.Background())
	require.NoError(t, err, "failed to open fake API store")

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	s := &Server{
		store:  st,
		logger: logger,
		api: &api{
			store:  st,
			tokens: newTokenService(),
			logger: logger,
		},
	}
	s.srv = httptest.NewServer(s.routes())
	s.URL = s.srv.URL

	t.Cleanup(s.Close)
	return s
}

// routes mirrors the real API:
//
//	GET    /stories?skip=&limit=
//	POST   /stories                              {token, story}
//	DELETE /stories/{storyId}?token=
//	POST   /signup                               {user}
//	POST   /login                                {user}
//	GET    /users/{username}?token=
//	POST   /users/{username}/favorites/{storyId} {token}
//	DELETE /users/{username}/favorites/{storyId}?token=
//
// Middleware order: request ID, panic recovery, recording and fault
// injection, then the access log.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(s.record)
	r.Use(accessLog(s.logger))

	r.Get("/stories", s.api.listStories)
	r.Post("/stories", s.api.createStory)
	r.Delete("/stories/{storyId}", s.api.deleteStory)
	r.Post("/signup", s.api.signup)
	r.Post("/login", s.api.login)
	r.Route("/users/{username}", func(r chi.Router) {
		r.Get("/", s.api.getUser)
		r.Post("/favorites/{storyId}", s.api.addFavorite)
		r.Delete("/favorites/{storyId}", s.api.removeFavorite)
	})
	return r
}

// record stores the request, runs the OnRequest hook and serves a queued
// canned response if there is one.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))

		req := Request{
			Method:    r.Method,
			Path:      r.URL.Path,
			Query:     r.URL.Query(),
			Body:      body,
			RequestID: chimiddleware.GetReqID(r.Context()),
		}

		s.mu.Lock()
		s.requests = append(s.requests, req)
		hook := s.onRequest
		var canned *cannedResponse
		if len(s.canned) > 0 {
			canned = &s.canned[0]
			s.canned = s.canned[1:]
		}
		s.mu.Unlock()

		if hook != nil {
			hook(req)
		}
		if canned != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(canned.status)
			_, _ = io.WriteString(w, canned.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FailNext answers the next request with status and a standard error body,
// without touching the store.
func (s *Server) FailNext(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canned = append(s.canned, cannedResponse{
		status: status,
		body:   `{"error":{"status":` + strconv.Itoa(status) + `,"title":"` + http.StatusText(status) + `","message":"injected failure"}}`,
	})
}

// RespondNext answers the next request with a raw body. Queued responses are
// served in order.
func (s *Server) RespondNext(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canned = append(s.canned, cannedResponse{status: status, body: body})
}

// OnRequest installs fn to run before each request is served. It runs on
// the server's goroutine, so blocking in fn holds the response back.
func (s *Server) OnRequest(fn func(Request)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRequest = fn
}

// Requests returns a copy of everything received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// ResetRequests forgets the recorded requests.
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

// RevokeTokens invalidates every token issued so far, the way a server-side
// session purge would.
func (s *Server) RevokeTokens() {
	s.api.tokens.Revoke()
}

// SetClock fixes the time used for new records.
func (s *Server) SetClock(now func() time.Time) {
	s.store.now = now
}

// CreateUser registers an account directly in the store and returns a token
// for it.
func (s *Server) CreateUser(t testing.TB, username, password, name string) string {
	t.Helper()
	ctx := context.Background()

	hash, err := hashPassword(password)
	require.NoError(t, err)
	_, err = s.store.CreateUser(ctx, username, name, hash)
	require.NoError(t, err)
	token, err := s.api.tokens.Generate(username)
	require.NoError(t, err)
	return token
}

// AddStory inserts a story owned by username.
func (s *Server) AddStory(t testing.TB, username string, draft model.StoryDraft) model.Story {
	t.Helper()
	st, err := s.store.CreateStory(context.Background(), username, draft.Title, draft.Author, draft.URL)
	require.NoError(t, err)
	return toModel(t, st)
}

// AddFavorite stars storyID for username directly in the store.
func (s *Server) AddFavorite(t testing.TB, username, storyID string) {
	t.Helper()
	require.NoError(t, s.store.AddFavorite(context.Background(), username, storyID))
}

// FavoriteCount reports how many favorite rows link username to storyID.
// Anything but 0 or 1 is a bug.
func (s *Server) FavoriteCount(t testing.TB, username, storyID string) int {
	t.Helper()
	n, err := s.store.CountFavorites(context.Background(), username, storyID)
	require.NoError(t, err)
	return n
}

// HasStory reports whether storyID is still stored.
func (s *Server) HasStory(t testing.TB, storyID string) bool {
	t.Helper()
	_, err := s.store.Story(context.Background(), storyID)
	return err == nil
}

func (s *Server) Close() {
	s.srv.Close()
	s.store.Close()
}

func toModel(t testing.TB, st storyJSON) model.Story {
	t.Helper()
	createdAt, err := time.Parse(time.RFC3339Nano, st.CreatedAt)
	require.NoError(t, err)
	updatedAt, err := time.Parse(time.RFC3339Nano, st.UpdatedAt)
	require.NoError(t, err)
	return model.Story{
		StoryID:   st.StoryID,
		Title:     st.Title,
		Author:    st.Author,
		URL:       st.URL,
		Username:  st.Username,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}
