package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"syncqueue-client/internal/client"
	"syncqueue-client/internal/logger"
	"syncqueue-client/internal/syncqueue"
)

const (
	msgAuthRequired   = "Authentication required. Please log in."
	msgViewForbidden  = "Access denied: you do not have permission to view sync data."
	msgWriteForbidden = "Access denied: you do not have permission to modify sync data."
)

type Options struct {
	// Route is the location of the status view, used as the login return target.
	Route      string
	LoginRoute string
	Filter     syncqueue.Filter
}

// Manager mirrors the remote sync queue for display and relays state-changing
// requests to the backend. Items and stats are only ever replaced wholesale
// after a successful fetch; every write is followed by a full reload.
type Manager struct {
	client     QueueClient
	notifier   Notifier
	busy       BusyIndicator
	nav        Navigator
	route      string
	loginRoute string

	// loads counts Load calls in flight; they may overlap.
	loads atomic.Int32

	mu     sync.RWMutex
	items  []syncqueue.Item
	stats  syncqueue.Stats
	filter syncqueue.Filter
}

func NewManager(c QueueClient, notifier Notifier, busy BusyIndicator, nav Navigator, opts Options) *Manager {
	if opts.LoginRoute == "" {
		opts.LoginRoute = "/login"
	}
	if opts.Filter == "" {
		opts.Filter = syncqueue.FilterAll
	}
	return &Manager{
		client:     c,
		notifier:   notifier,
		busy:       busy,
		nav:        nav,
		route:      opts.Route,
		loginRoute: opts.LoginRoute,
		items:      []syncqueue.Item{},
		filter:     opts.Filter,
	}
}

// Load fetches the queue and then the stats. A 403 on the queue empties the
// mirrored list; any other failure leaves the previous data in place.
func (m *Manager) Load(ctx context.Context) error {
	m.busy.Show()
	defer m.busy.Hide()
	m.loads.Add(1)
	defer m.loads.Add(-1)

	items, err := m.client.ListAll(ctx)
	if err != nil {
		logger.Log.Error("Error loading sync data", zap.Error(err))
		switch {
		case errors.Is(err, client.ErrUnauthorized):
			m.sessionExpired()
			return err
		case errors.Is(err, client.ErrForbidden):
			m.notifier.Warn(msgViewForbidden)
			m.mu.Lock()
			m.items = []syncqueue.Item{}
			m.mu.Unlock()
		default:
			m.notifier.Error("Failed to load sync data")
		}
	} else {
		m.mu.Lock()
		m.items = items
		m.mu.Unlock()
		m.sessionRestored()
	}

	m.loadStats(ctx)
	return err
}

func (m *Manager) loadStats(ctx context.Context) {
	stats, err := m.client.Stats(ctx)
	if err != nil {
		logger.Log.Error("Error loading sync stats", zap.Error(err))
		if errors.Is(err, client.ErrUnauthorized) {
			m.sessionExpired()
		}
		return
	}
	m.mu.Lock()
	m.stats = stats
	m.mu.Unlock()
}

// LoadStats fetches only the per-status counts. Unlike Load it reports a
// failure to the user.
func (m *Manager) LoadStats(ctx context.Context) (syncqueue.Stats, error) {
	m.busy.Show()
	defer m.busy.Hide()

	stats, err := m.client.Stats(ctx)
	if err != nil {
		logger.Log.Error("Error loading sync stats", zap.Error(err))
		switch {
		case errors.Is(err, client.ErrUnauthorized):
			m.sessionExpired()
		case errors.Is(err, client.ErrForbidden):
			m.notifier.Warn(msgViewForbidden)
		default:
			m.notifier.Error("Failed to load sync statistics")
		}
		return syncqueue.Stats{}, err
	}
	m.mu.Lock()
	m.stats = stats
	m.mu.Unlock()
	return stats, nil
}

func (m *Manager) Refresh(ctx context.Context) error {
	if err := m.Load(ctx); err != nil {
		return err
	}
	m.notifier.Success("Sync data refreshed")
	return nil
}

func (m *Manager) Retry(ctx context.Context, id int64) (syncqueue.Item, error) {
	var it syncqueue.Item
	err := m.mutate(ctx, "Failed to retry item", func() (string, error) {
		var err error
		it, err = m.client.Retry(ctx, id)
		return "Retry initiated", err
	})
	return it, err
}

func (m *Manager) RetryAllFailed(ctx context.Context) (syncqueue.RetryAllResult, error) {
	var res syncqueue.RetryAllResult
	err := m.mutate(ctx, "Failed to retry all items", func() (string, error) {
		var err error
		res, err = m.client.RetryAllFailed(ctx)
		return fmt.Sprintf("Retried %d failed items", res.Retried), err
	})
	return res, err
}

func (m *Manager) Delete(ctx context.Context, id int64) error {
	return m.mutate(ctx, "Failed to delete sync item", func() (string, error) {
		return "Sync item deleted", m.client.Clear(ctx, id)
	})
}

func (m *Manager) ClearAllSynced(ctx context.Context) (syncqueue.ClearResult, error) {
	var res syncqueue.ClearResult
	err := m.mutate(ctx, "Failed to clear synced items", func() (string, error) {
		var err error
		res, err = m.client.ClearAllSynced(ctx)
		return fmt.Sprintf("Cleared %d synced items", res.Cleared), err
	})
	return res, err
}

func (m *Manager) ClearAllFailed(ctx context.Context) (syncqueue.ClearResult, error) {
	var res syncqueue.ClearResult
	err := m.mutate(ctx, "Failed to clear failed items", func() (string, error) {
		var err error
		res, err = m.client.ClearAllFailed(ctx)
		return fmt.Sprintf("Cleared %d failed items", res.Cleared), err
	})
	return res, err
}

func (m *Manager) SyncAll(ctx context.Context) (syncqueue.SyncAllResult, error) {
	var res syncqueue.SyncAllResult
	err := m.mutate(ctx, "Failed to sync all items", func() (string, error) {
		var err error
		res, err = m.client.ForceSyncAll(ctx)
		return fmt.Sprintf("Sync completed: %d synced, %d failed", res.Synced, res.Failed), err
	})
	return res, err
}

// mutate runs one write. On success it notifies and reloads the whole view;
// the write's own response is never merged into the mirrored state.
func (m *Manager) mutate(ctx context.Context, failMsg string, call func() (string, error)) error {
	m.busy.Show()
	defer m.busy.Hide()

	msg, err := call()
	if err != nil {
		logger.Log.Error(failMsg, zap.Error(err))
		switch {
		case errors.Is(err, client.ErrUnauthorized):
			m.sessionExpired()
		case errors.Is(err, client.ErrForbidden):
			m.notifier.Warn(msgWriteForbidden)
		default:
			m.notifier.Error(failMsg)
		}
		return err
	}

	m.notifier.Success(msg)
	if err := m.Load(ctx); err != nil {
		logger.Log.Warn("Reload after write failed", zap.Error(err))
	}
	return nil
}

// Details fetches one item and shows its entity snapshot.
func (m *Manager) Details(ctx context.Context, id int64) (syncqueue.Item, error) {
	m.busy.Show()
	defer m.busy.Hide()

	it, err := m.client.Get(ctx, id)
	if err != nil {
		logger.Log.Error("Error loading sync item", zap.Int64("id", id), zap.Error(err))
		switch {
		case errors.Is(err, client.ErrUnauthorized):
			m.sessionExpired()
		case errors.Is(err, client.ErrForbidden):
			m.notifier.Warn(msgViewForbidden)
		default:
			m.notifier.Error("Failed to load sync item")
		}
		return syncqueue.Item{}, err
	}

	data := it.EntityData
	if data == "" {
		data = "No data available"
	}
	m.notifier.Info("Entity Data: " + data)
	return it, nil
}

// Export writes every mirrored item, regardless of the filter, as CSV.
func (m *Manager) Export(w io.Writer) error {
	if err := syncqueue.WriteCSV(w, m.Items()); err != nil {
		logger.Log.Error("Error exporting sync data", zap.Error(err))
		m.notifier.Error("Failed to export sync data")
		return err
	}
	m.notifier.Success("Sync data exported successfully")
	return nil
}

func (m *Manager) sessionExpired() {
	m.notifier.Error(msgAuthRequired)
	m.nav.Redirect(m.loginRoute, m.route)
}

// sessionRestored drops a pending login redirect once the backend accepts
// the session again.
func (m *Manager) sessionRestored() {
	if r, ok := m.nav.(interface{ Reset() }); ok {
		r.Reset()
	}
}

func (m *Manager) SetFilter(f syncqueue.Filter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = f
}

func (m *Manager) Filter() syncqueue.Filter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.filter
}

// Items returns a copy of every mirrored item in server order.
func (m *Manager) Items() []syncqueue.Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]syncqueue.Item{}, m.items...)
}

// Visible applies the current filter to the mirrored items.
func (m *Manager) Visible() []syncqueue.Item {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]syncqueue.Item{}, syncqueue.VisibleItems(m.items, m.filter)...)
}

func (m *Manager) Stats() syncqueue.Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

func (m *Manager) Loading() bool {
	return m.loads.Load() > 0
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Filter:  m.filter,
		Items:   append([]syncqueue.Item{}, syncqueue.VisibleItems(m.items, m.filter)...),
		Total:   len(m.items),
		Stats:   m.stats,
		Loading: m.Loading(),
	}
}
