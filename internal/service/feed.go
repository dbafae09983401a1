package service

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/sakif/hackorsnooze/internal/model"
)

// FeedState is where the feed view is in its load cycle.
type FeedState int

const (
	FeedEmpty         FeedState = iota // nothing loaded
	FeedLoading                        // first page in flight
	FeedPopulated                      // items shown, idle
	FeedAppendingMore                  // items shown, next page in flight
)

func (s FeedState) String() string {
	switch s {
	case FeedEmpty:
		return "empty"
	case FeedLoading:
		return "loading"
	case FeedPopulated:
		return "populated"
	case FeedAppendingMore:
		return "appending"
	}
	return "FeedState(" + strconv.Itoa(int(s)) + ")"
}

// ErrStaleView is returned for a page that arrived after the view it was
// requested for was left or reloaded. The page is discarded.
var ErrStaleView = errors.New("feed view changed before the page arrived")

// Feed is the paginated story list behind one view.
//
// STATE MACHINE:
//
//	Empty → Loading → Populated → (AppendingMore → Populated)*
//
// A failed fetch never clears what is already loaded: the feed goes back to
// Populated (or Empty when nothing was loaded) and LastError reports why.
//
// ORDERING:
// At most one page request is in flight per generation. Load and LoadMore go
// through the same singleflight key, so a LoadMore that arrives while a page
// is loading shares that request, and pages are always appended in ascending
// skip order.
// Leave and Load start a new generation: the old request is cancelled, and if
// it still comes back its result is dropped with ErrStaleView.
type Feed struct {
	stories  *StoryService
	pageSize int
	logger   *slog.Logger

	mu         sync.Mutex
	state      FeedState
	items      []model.Story
	cursor     model.Cursor
	exhausted  bool
	lastErr    error
	generation uint64
	cancel     context.CancelFunc

	flights singleflight.Group
}

func NewFeed(stories *StoryService, pageSize int, logger *slog.Logger) *Feed {
	return &Feed{
		stories:  stories,
		pageSize: pageSize,
		logger:   logger,
		state:    FeedEmpty,
		cursor:   model.NewCursor(pageSize),
	}
}

// Load (re)starts the feed from the top and returns the first page.
func (f *Feed) Load(ctx context.Context) ([]model.Story, error) {
	f.mu.Lock()
	f.restartLocked()
	f.items = nil
	f.cursor = model.NewCursor(f.pageSize)
	f.exhausted = false
	f.lastErr = nil
	f.state = FeedLoading
	gen := f.generation
	f.mu.Unlock()

	// Same flight key as LoadMore: a LoadMore issued while the first page is
	// still loading joins this request instead of fetching skip 0 again.
	v, err, _ := f.flights.Do(flightKey(gen), func() (any, error) {
		return f.fetch(ctx, gen)
	})
	page, _ := v.([]model.Story)
	return page, err
}

// LoadMore appends the next page and returns it. Once the feed is exhausted
// it returns an empty page without a request.
func (f *Feed) LoadMore(ctx context.Context) ([]model.Story, error) {
	f.mu.Lock()
	if f.exhausted {
		f.mu.Unlock()
		return []model.Story{}, nil
	}
	gen := f.generation
	f.mu.Unlock()

	v, err, _ := f.flights.Do(flightKey(gen), func() (any, error) {
		f.mu.Lock()
		if len(f.items) == 0 {
			f.state = FeedLoading
		} else {
			f.state = FeedAppendingMore
		}
		f.mu.Unlock()
		return f.fetch(ctx, gen)
	})
	page, _ := v.([]model.Story)
	return page, err
}

// flightKey names the one page request a generation may have in flight.
func flightKey(gen uint64) string {
	return "page:" + strconv.FormatUint(gen, 10)
}

func (f *Feed) fetch(ctx context.Context, gen uint64) ([]model.Story, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	f.mu.Lock()
	if gen != f.generation {
		f.mu.Unlock()
		return nil, ErrStaleView
	}
	f.cancel = cancel
	cursor := f.cursor
	f.mu.Unlock()

	page, err := f.stories.FetchPage(ctx, cursor.Skip, cursor.Limit)

	f.mu.Lock()
	defer f.mu.Unlock()

	if gen != f.generation {
		f.logger.Debug("discarding stale feed page", slog.Int("skip", cursor.Skip))
		return nil, ErrStaleView
	}
	f.cancel = nil

	if err != nil {
		f.lastErr = err
		f.settleLocked()
		f.logger.Warn("feed page failed",
			slog.Int("skip", cursor.Skip),
			slog.Int("kept", len(f.items)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	f.lastErr = nil
	f.items = append(f.items, page...)
	f.cursor = f.cursor.Advance(len(page))
	if len(page) == 0 {
		f.exhausted = true
	}
	f.state = FeedPopulated
	return page, nil
}

// Leave abandons the view: an in-flight request is cancelled and its result
// will not be applied. Loaded items are kept.
func (f *Feed) Leave() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.restartLocked()
	f.settleLocked()
}

// restartLocked starts a new generation and cancels the old one's request.
func (f *Feed) restartLocked() {
	f.generation++
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

func (f *Feed) settleLocked() {
	if len(f.items) == 0 {
		f.state = FeedEmpty
		return
	}
	f.state = FeedPopulated
}

// Items returns a copy of everything loaded so far, in feed order.
func (f *Feed) Items() []model.Story {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.items)
}

func (f *Feed) Cursor() model.Cursor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cursor
}

func (f *Feed) State() FeedState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// LastError is the error of the most recent fetch, or nil if it succeeded.
func (f *Feed) LastError() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastErr
}

// Exhausted reports whether a page came back empty.
func (f *Feed) Exhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exhausted
}
