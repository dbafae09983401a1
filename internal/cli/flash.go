package cli

import (
	"sync"
	"time"

	"github.com/sakif/hackorsnooze/internal/apperror"
)

// FlashTTL is how long a flash notice stays visible.
const FlashTTL = 3 * time.Second

// Flash is a one-line notice shown under a form, the way a web page shows
// "Username already exists." until it fades out.
type Flash struct {
	mu      sync.Mutex
	message string
	setAt   time.Time
	now     func() time.Time
}

// NewFlash returns an empty Flash. now defaults to time.Now.
func NewFlash(now func() time.Time) *Flash {
	if now == nil {
		now = time.Now
	}
	return &Flash{now: now}
}

// Set replaces the current notice and restarts its timer.
func (f *Flash) Set(message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = message
	f.setAt = f.now()
}

// SetError flashes err's user-facing message.
func (f *Flash) SetError(err error) {
	f.Set(apperror.Message(err))
}

// Message returns the notice, or "" once FlashTTL has passed since Set.
func (f *Flash) Message() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.message != "" && f.now().Sub(f.setAt) >= FlashTTL {
		f.message = ""
	}
	return f.message
}

// Clear drops the notice early.
func (f *Flash) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.message = ""
}
