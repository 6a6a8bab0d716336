package sync

import (
	"context"
	"fmt"
	"time"

	"syncqueue-client/internal/syncqueue"
)

// QueueClient is the slice of the backend client the view needs.
type QueueClient interface {
	ListAll(ctx context.Context) ([]syncqueue.Item, error)
	Get(ctx context.Context, id int64) (syncqueue.Item, error)
	Stats(ctx context.Context) (syncqueue.Stats, error)
	Retry(ctx context.Context, id int64) (syncqueue.Item, error)
	RetryAllFailed(ctx context.Context) (syncqueue.RetryAllResult, error)
	Clear(ctx context.Context, id int64) error
	ClearAllSynced(ctx context.Context) (syncqueue.ClearResult, error)
	ClearAllFailed(ctx context.Context) (syncqueue.ClearResult, error)
	ForceSyncAll(ctx context.Context) (syncqueue.SyncAllResult, error)
}

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notification struct {
	Level   Level     `json:"level"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

func (n Notification) String() string {
	return fmt.Sprintf("[%s] %s", n.Level, n.Message)
}

// Notifier surfaces user-visible messages.
type Notifier interface {
	Success(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// BusyIndicator brackets every request the view issues.
type BusyIndicator interface {
	Show()
	Hide()
}

// Navigator receives redirect intents, e.g. to the login route after the
// session expired. returnURL is where the user should land afterwards.
type Navigator interface {
	Redirect(route, returnURL string)
}

// Snapshot is a consistent copy of the view state.
type Snapshot struct {
	Filter  syncqueue.Filter `json:"filter"`
	Items   []syncqueue.Item `json:"items"`
	Total   int              `json:"total"`
	Stats   syncqueue.Stats  `json:"stats"`
	Loading bool             `json:"loading"`
}
