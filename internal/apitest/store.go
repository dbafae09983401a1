package apitest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	_ "modernc.org/sqlite"

	"github.com/sakif/hackorsnooze/internal/apperror"
)

// timeLayout matches the real API's timestamps: millisecond precision, UTC.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Feed pages are capped the way the real API caps them.
const (
	defaultPageLimit = 25
	maxPageLimit     = 25
)

// seq columns give rows a total insertion order. Two stories created in the
// same millisecond still list newest first.
const schema = `
CREATE TABLE users (
	username      TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	password_hash TEXT NOT NULL,
	created_at    TEXT NOT NULL,
	updated_at    TEXT NOT NULL
);

CREATE TABLE stories (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	story_id   TEXT NOT NULL UNIQUE,
	title      TEXT NOT NULL,
	author     TEXT NOT NULL,
	url        TEXT NOT NULL,
	username   TEXT NOT NULL,
	created_at TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE favorites (
	seq      INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL,
	story_id TEXT NOT NULL,
	UNIQUE (username, story_id)
);`

// storyJSON and userJSON are the server's wire shapes.
type storyJSON struct {
	StoryID   string `json:"storyId"`
	Title     string `json:"title"`
	Author    string `json:"author"`
	URL       string `json:"url"`
	Username  string `json:"username"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

type userJSON struct {
	Username  string      `json:"username"`
	Name      string      `json:"name"`
	CreatedAt string      `json:"createdAt"`
	UpdatedAt string      `json:"updatedAt"`
	Favorites []storyJSON `json:"favorites"`
	Stories   []storyJSON `json:"stories"`
}

type userRow struct {
	Username     string
	Name         string
	PasswordHash string
	CreatedAt    string
	UpdatedAt    string
}

// store is the fake API's database: one in-memory sqlite connection that
// lives as long as the Server.
type store struct {
	conn *sql.DB
	now  func() time.Time
}

func openStore(ctx context.Context) (*store, error) {
	conn, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("apitest: opening database: %w", err)
	}
	// Every new connection to ":memory:" is a new, empty database.
	conn.SetMaxOpenConns(1)
	conn.SetConnMaxLifetime(0)

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apitest: creating schema: %w", err)
	}
	return &store{conn: conn, now: time.Now}, nil
}

func (s *store) Close() error {
	return s.conn.Close()
}

func (s *store) timestamp() string {
	return s.now().UTC().Format(timeLayout)
}

func (s *store) CreateUser(ctx context.Context, username, name, passwordHash string) (userRow, error) {
	var existing string
	err := s.conn.QueryRowContext(ctx,
		`SELECT username FROM users WHERE username = ?`, username,
	).Scan(&existing)
	if err == nil {
		return userRow{}, apperror.DuplicateUsername(username)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return userRow{}, fmt.Errorf("apitest: looking up user %s: %w", username, err)
	}

	now := s.timestamp()
	u := userRow{
		Username:     username,
		Name:         name,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO users (username, name, password_hash, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		u.Username, u.Name, u.PasswordHash, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return userRow{}, fmt.Errorf("apitest: inserting user %s: %w", username, err)
	}
	return u, nil
}

func (s *store) User(ctx context.Context, username string) (userRow, error) {
	var u userRow
	err := s.conn.QueryRowContext(ctx,
		`SELECT username, name, password_hash, created_at, updated_at
		 FROM users WHERE username = ?`,
		username,
	).Scan(&u.Username, &u.Name, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return userRow{}, apperror.NotFound("user", username)
	}
	if err != nil {
		return userRow{}, fmt.Errorf("apitest: getting user %s: %w", username, err)
	}
	return u, nil
}

// Profile is the user payload with favorites and own stories attached.
func (s *store) Profile(ctx context.Context, u userRow) (userJSON, error) {
	favorites, err := s.queryStories(ctx,
		`SELECT s.story_id, s.title, s.author, s.url, s.username, s.created_at, s.updated_at
		 FROM favorites f JOIN stories s ON s.story_id = f.story_id
		 WHERE f.username = ?
		 ORDER BY f.seq`,
		u.Username,
	)
	if err != nil {
		return userJSON{}, err
	}
	own, err := s.queryStories(ctx,
		`SELECT story_id, title, author, url, username, created_at, updated_at
		 FROM stories WHERE username = ?
		 ORDER BY seq DESC`,
		u.Username,
	)
	if err != nil {
		return userJSON{}, err
	}

	return userJSON{
		Username:  u.Username,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		Favorites: favorites,
		Stories:   own,
	}, nil
}

// ListStories returns the feed newest first. Out-of-range limits fall back
// to the default rather than failing.
func (s *store) ListStories(ctx context.Context, skip, limit int) ([]storyJSON, error) {
	if limit <= 0 || limit > maxPageLimit {
		limit = defaultPageLimit
	}
	skip = max(skip, 0)

	return s.queryStories(ctx,
		`SELECT story_id, title, author, url, username, created_at, updated_at
		 FROM stories
		 ORDER BY seq DESC
		 LIMIT ? OFFSET ?`,
		limit, skip,
	)
}

func (s *store) CreateStory(ctx context.Context, username, title, author, url string) (storyJSON, error) {
	now := s.timestamp()
	story := storyJSON{
		StoryID:   xid.New().String(),
		Title:     title,
		Author:    author,
		URL:       url,
		Username:  username,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.conn.ExecContext(ctx,
		`INSERT INTO stories (story_id, title, author, url, username, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		story.StoryID, story.Title, story.Author, story.URL, story.Username,
		story.CreatedAt, story.UpdatedAt,
	)
	if err != nil {
		return storyJSON{}, fmt.Errorf("apitest: creating story: %w", err)
	}
	return story, nil
}

func (s *store) Story(ctx context.Context, storyID string) (storyJSON, error) {
	stories, err := s.queryStories(ctx,
		`SELECT story_id, title, author, url, username, created_at, updated_at
		 FROM stories WHERE story_id = ?`,
		storyID,
	)
	if err != nil {
		return storyJSON{}, err
	}
	if len(stories) == 0 {
		return storyJSON{}, apperror.NotFound("story", storyID)
	}
	return stories[0], nil
}

// DeleteStory removes a story and every favorite that points at it.
func (s *store) DeleteStory(ctx context.Context, storyID string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("apitest: beginning delete: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM stories WHERE story_id = ?`, storyID)
	if err != nil {
		return fmt.Errorf("apitest: deleting story %s: %w", storyID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("apitest: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound("story", storyID)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM favorites WHERE story_id = ?`, storyID); err != nil {
		return fmt.Errorf("apitest: deleting favorites of %s: %w", storyID, err)
	}
	return tx.Commit()
}

// AddFavorite is idempotent: a second add of the same pair is ignored.
func (s *store) AddFavorite(ctx context.Context, username, storyID string) error {
	_, err := s.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO favorites (username, story_id) VALUES (?, ?)`,
		username, storyID,
	)
	if err != nil {
		return fmt.Errorf("apitest: adding favorite %s for %s: %w", storyID, username, err)
	}
	return nil
}

func (s *store) RemoveFavorite(ctx context.Context, username, storyID string) error {
	_, err := s.conn.ExecContext(ctx,
		`DELETE FROM favorites WHERE username = ? AND story_id = ?`,
		username, storyID,
	)
	if err != nil {
		return fmt.Errorf("apitest: removing favorite %s for %s: %w", storyID, username, err)
	}
	return nil
}

func (s *store) CountFavorites(ctx context.Context, username, storyID string) (int, error) {
	var n int
	err := s.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM favorites WHERE username = ? AND story_id = ?`,
		username, storyID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("apitest: counting favorites: %w", err)
	}
	return n, nil
}

func (s *store) queryStories(ctx context.Context, query string, args ...any) ([]storyJSON, error) {
	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("apitest: querying stories: %w", err)
	}
	defer rows.Close()

	// Never nil: the wire format wants [] rather than null.
	stories := make([]storyJSON, 0)
	for rows.Next() {
		var st storyJSON
		if err := rows.Scan(
			&st.StoryID, &st.Title, &st.Author, &st.URL, &st.Username,
			&st.CreatedAt, &st.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("apitest: scanning story row: %w", err)
		}
		stories = append(stories, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("apitest: iterating stories: %w", err)
	}
	return stories, nil
}
