package sync

import (
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"syncqueue-client/internal/logger"
)

// LogNotifier writes notifications to the process logger.
type LogNotifier struct{}

func (LogNotifier) Success(msg string) { logger.Log.Info(msg, zap.String("level", string(LevelSuccess))) }
func (LogNotifier) Info(msg string)    { logger.Log.Info(msg) }
func (LogNotifier) Warn(msg string)    { logger.Log.Warn(msg) }
func (LogNotifier) Error(msg string)   { logger.Log.Error(msg) }

// Feed keeps the most recent notifications, oldest first.
type Feed struct {
	mu    sync.Mutex
	size  int
	items []Notification
	now   func() time.Time
}

func NewFeed(size int) *Feed {
	if size <= 0 {
		size = 50
	}
	return &Feed{size: size, now: time.Now}
}

func (f *Feed) push(level Level, msg string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, Notification{Level: level, Message: msg, At: f.now()})
	if over := len(f.items) - f.size; over > 0 {
		f.items = append(f.items[:0:0], f.items[over:]...)
	}
}

func (f *Feed) Success(msg string) { f.push(LevelSuccess, msg) }
func (f *Feed) Info(msg string)    { f.push(LevelInfo, msg) }
func (f *Feed) Warn(msg string)    { f.push(LevelWarning, msg) }
func (f *Feed) Error(msg string)   { f.push(LevelError, msg) }

func (f *Feed) Notifications() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.items...)
}

// Last returns the newest notification.
func (f *Feed) Last() (Notification, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.items) == 0 {
		return Notification{}, false
	}
	return f.items[len(f.items)-1], true
}

// Notifiers fans every message out to each notifier in turn.
type Notifiers []Notifier

func (ns Notifiers) Success(msg string) {
	for _, n := range ns {
		n.Success(msg)
	}
}

func (ns Notifiers) Info(msg string) {
	for _, n := range ns {
		n.Info(msg)
	}
}

func (ns Notifiers) Warn(msg string) {
	for _, n := range ns {
		n.Warn(msg)
	}
}

func (ns Notifiers) Error(msg string) {
	for _, n := range ns {
		n.Error(msg)
	}
}

// BusyCounter tracks overlapping Show/Hide pairs.
type BusyCounter struct {
	n atomic.Int32
}

func (b *BusyCounter) Show() { b.n.Add(1) }

func (b *BusyCounter) Hide() {
	if b.n.Add(-1) < 0 {
		b.n.Store(0)
	}
}

func (b *BusyCounter) Busy() bool { return b.n.Load() > 0 }

type Redirect struct {
	Route     string `json:"route"`
	ReturnURL string `json:"returnUrl"`
}

// URL renders the redirect as route?returnUrl=...
func (r Redirect) URL() string {
	if r.ReturnURL == "" {
		return r.Route
	}
	return r.Route + "?" + url.Values{"returnUrl": {r.ReturnURL}}.Encode()
}

// RedirectRecorder remembers the most recent redirect intent.
type RedirectRecorder struct {
	mu   sync.Mutex
	last *Redirect
}

func (r *RedirectRecorder) Redirect(route, returnURL string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = &Redirect{Route: route, ReturnURL: returnURL}
}

func (r *RedirectRecorder) Last() (Redirect, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return Redirect{}, false
	}
	return *r.last, true
}

func (r *RedirectRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.last = nil
}
