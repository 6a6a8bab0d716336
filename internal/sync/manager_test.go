package sync

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncqueue-client/internal/auth"
	"syncqueue-client/internal/client"
	"syncqueue-client/internal/fakebackend"
	"syncqueue-client/internal/syncqueue"
)

func strp(s string) *string { return &s }

// fakeQueue implements QueueClient with canned results and call counts.
type fakeQueue struct {
	items    []syncqueue.Item
	stats    syncqueue.Stats
	listErr  error
	statsErr error
	writeErr error

	retried    syncqueue.Item
	getItem    syncqueue.Item
	getErr     error
	retryAll   syncqueue.RetryAllResult
	cleared    syncqueue.ClearResult
	syncResult syncqueue.SyncAllResult

	listCalls  int
	statsCalls int
	clearedIDs []int64
}

func (f *fakeQueue) ListAll(context.Context) ([]syncqueue.Item, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.items, nil
}

func (f *fakeQueue) Get(context.Context, int64) (syncqueue.Item, error) {
	return f.getItem, f.getErr
}

func (f *fakeQueue) Stats(context.Context) (syncqueue.Stats, error) {
	f.statsCalls++
	return f.stats, f.statsErr
}

func (f *fakeQueue) Retry(context.Context, int64) (syncqueue.Item, error) {
	return f.retried, f.writeErr
}

func (f *fakeQueue) RetryAllFailed(context.Context) (syncqueue.RetryAllResult, error) {
	return f.retryAll, f.writeErr
}

func (f *fakeQueue) Clear(_ context.Context, id int64) error {
	f.clearedIDs = append(f.clearedIDs, id)
	return f.writeErr
}

func (f *fakeQueue) ClearAllSynced(context.Context) (syncqueue.ClearResult, error) {
	return f.cleared, f.writeErr
}

func (f *fakeQueue) ClearAllFailed(context.Context) (syncqueue.ClearResult, error) {
	return f.cleared, f.writeErr
}

func (f *fakeQueue) ForceSyncAll(context.Context) (syncqueue.SyncAllResult, error) {
	return f.syncResult, f.writeErr
}

type harness struct {
	queue *fakeQueue
	feed  *Feed
	busy  *BusyCounter
	nav   *RedirectRecorder
	m     *Manager
}

func newHarness(q *fakeQueue) *harness {
	h := &harness{queue: q, feed: NewFeed(20), busy: &BusyCounter{}, nav: &RedirectRecorder{}}
	h.m = NewManager(q, h.feed, h.busy, h.nav, Options{Route: "/sync-status", LoginRoute: "/login"})
	return h
}

func (h *harness) lastMessage(t *testing.T) Notification {
	t.Helper()
	n, ok := h.feed.Last()
	require.True(t, ok, "expected a notification")
	return n
}

func statusErr(code int) error {
	return &client.StatusError{Method: http.MethodGet, Path: "/queue", StatusCode: code}
}

func sampleItems() []syncqueue.Item {
	return []syncqueue.Item{
		{ID: 1, SyncStatus: syncqueue.StatusPending},
		{ID: 2, SyncStatus: syncqueue.StatusSynced, SyncedAt: syncqueue.At(time.Now())},
		{ID: 3, SyncStatus: syncqueue.StatusFailed, ErrorMessage: strp("x")},
	}
}

func TestManager_LoadReplacesState(t *testing.T) {
	h := newHarness(&fakeQueue{
		items: sampleItems(),
		stats: syncqueue.Stats{TotalPending: 1, TotalSynced: 1, TotalFailed: 1},
	})

	require.NoError(t, h.m.Load(context.Background()))
	assert.Len(t, h.m.Items(), 3)
	assert.Equal(t, 3, h.m.Stats().Total())
	assert.False(t, h.m.Loading())
	assert.False(t, h.busy.Busy())

	h.queue.items = sampleItems()[:1]
	require.NoError(t, h.m.Load(context.Background()))
	assert.Len(t, h.m.Items(), 1)
}

func TestManager_VisibleFollowsFilterWithoutFetching(t *testing.T) {
	h := newHarness(&fakeQueue{items: sampleItems()})
	require.NoError(t, h.m.Load(context.Background()))
	calls := h.queue.listCalls

	h.m.SetFilter(syncqueue.FilterFailed)
	vis := h.m.Visible()
	require.Len(t, vis, 1)
	assert.Equal(t, int64(3), vis[0].ID)

	h.m.SetFilter(syncqueue.FilterAll)
	assert.Len(t, h.m.Visible(), 3)
	assert.Equal(t, calls, h.queue.listCalls)

	snap := h.m.Snapshot()
	assert.Equal(t, syncqueue.FilterAll, snap.Filter)
	assert.Equal(t, 3, snap.Total)
}

func TestManager_UnauthorizedRedirectsAndKeepsData(t *testing.T) {
	h := newHarness(&fakeQueue{items: sampleItems()})
	require.NoError(t, h.m.Load(context.Background()))

	h.queue.listErr = statusErr(http.StatusUnauthorized)
	err := h.m.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, client.ErrUnauthorized))

	r, ok := h.nav.Last()
	require.True(t, ok)
	assert.Equal(t, "/login", r.Route)
	assert.Equal(t, "/sync-status", r.ReturnURL)
	assert.Equal(t, "/login?returnUrl=%2Fsync-status", r.URL())

	assert.Len(t, h.m.Items(), 3)
	n := h.lastMessage(t)
	assert.Equal(t, LevelError, n.Level)
	assert.Equal(t, "Authentication required. Please log in.", n.Message)
}

func TestManager_ForbiddenClearsListWithoutRedirect(t *testing.T) {
	h := newHarness(&fakeQueue{items: sampleItems()})
	require.NoError(t, h.m.Load(context.Background()))

	h.queue.listErr = statusErr(http.StatusForbidden)
	err := h.m.Load(context.Background())
	assert.True(t, errors.Is(err, client.ErrForbidden))

	assert.Empty(t, h.m.Items())
	_, redirected := h.nav.Last()
	assert.False(t, redirected)

	var warned bool
	for _, n := range h.feed.Notifications() {
		if n.Level == LevelWarning && strings.HasPrefix(n.Message, "Access denied") {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestManager_GenericLoadFailureKeepsData(t *testing.T) {
	h := newHarness(&fakeQueue{items: sampleItems()})
	require.NoError(t, h.m.Load(context.Background()))

	h.queue.listErr = &client.TransportError{Method: "GET", Path: "/queue", Err: errors.New("dial tcp: refused")}
	err := h.m.Load(context.Background())
	assert.True(t, errors.Is(err, client.ErrTransport))
	assert.Len(t, h.m.Items(), 3)

	var sawError bool
	for _, n := range h.feed.Notifications() {
		if n.Message == "Failed to load sync data" {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestManager_StatsFailureIsQuiet(t *testing.T) {
	h := newHarness(&fakeQueue{
		items:    sampleItems(),
		stats:    syncqueue.Stats{TotalPending: 9},
		statsErr: statusErr(http.StatusInternalServerError),
	})

	require.NoError(t, h.m.Load(context.Background()))
	assert.Len(t, h.m.Items(), 3)
	assert.Equal(t, 0, h.m.Stats().TotalPending)
	assert.Empty(t, h.feed.Notifications())
}

func TestManager_WritesReloadEverything(t *testing.T) {
	q := &fakeQueue{
		items:      sampleItems(),
		retryAll:   syncqueue.RetryAllResult{Retried: 1},
		cleared:    syncqueue.ClearResult{Cleared: 2},
		syncResult: syncqueue.SyncAllResult{Synced: 4, Failed: 1},
	}
	h := newHarness(q)
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
		want string
	}{
		{"retry", func() error { _, err := h.m.Retry(ctx, 3); return err }, "Retry initiated"},
		{"retry all", func() error { _, err := h.m.RetryAllFailed(ctx); return err }, "Retried 1 failed items"},
		{"delete", func() error { return h.m.Delete(ctx, 2) }, "Sync item deleted"},
		{"clear synced", func() error { _, err := h.m.ClearAllSynced(ctx); return err }, "Cleared 2 synced items"},
		{"clear failed", func() error { _, err := h.m.ClearAllFailed(ctx); return err }, "Cleared 2 failed items"},
		{"sync all", func() error { _, err := h.m.SyncAll(ctx); return err }, "Sync completed: 4 synced, 1 failed"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			lists, stats := q.listCalls, q.statsCalls
			require.NoError(t, tc.run())
			assert.Equal(t, lists+1, q.listCalls, "queue reloaded")
			assert.Equal(t, stats+1, q.statsCalls, "stats reloaded")

			var found bool
			for _, n := range h.feed.Notifications() {
				if n.Level == LevelSuccess && n.Message == tc.want {
					found = true
				}
			}
			assert.True(t, found, "missing %q", tc.want)
			assert.False(t, h.busy.Busy())
		})
	}
	assert.Equal(t, []int64{2}, q.clearedIDs)
}

func TestManager_WriteFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantLevel  Level
		wantMsg    string
		redirected bool
	}{
		{"generic", statusErr(http.StatusInternalServerError), LevelError, "Failed to retry item", false},
		{"forbidden", statusErr(http.StatusForbidden), LevelWarning, msgWriteForbidden, false},
		{"unauthorized", statusErr(http.StatusUnauthorized), LevelError, msgAuthRequired, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := &fakeQueue{items: sampleItems()}
			h := newHarness(q)
			require.NoError(t, h.m.Load(context.Background()))
			q.writeErr = tc.err
			lists := q.listCalls

			_, err := h.m.Retry(context.Background(), 3)
			require.Error(t, err)

			n := h.lastMessage(t)
			assert.Equal(t, tc.wantLevel, n.Level)
			assert.Equal(t, tc.wantMsg, n.Message)
			_, redirected := h.nav.Last()
			assert.Equal(t, tc.redirected, redirected)
			assert.Equal(t, lists, q.listCalls, "no reload after a failed write")
			assert.Len(t, h.m.Items(), 3, "list kept")
		})
	}
}

func TestManager_Details(t *testing.T) {
	h := newHarness(&fakeQueue{getItem: syncqueue.Item{ID: 4, EntityData: `{"name":"Amina"}`}})

	it, err := h.m.Details(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, int64(4), it.ID)
	assert.Equal(t, `Entity Data: {"name":"Amina"}`, h.lastMessage(t).Message)

	h.queue.getItem = syncqueue.Item{ID: 5}
	_, err = h.m.Details(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, "Entity Data: No data available", h.lastMessage(t).Message)

	h.queue.getErr = statusErr(http.StatusNotFound)
	_, err = h.m.Details(context.Background(), 6)
	assert.True(t, errors.Is(err, client.ErrNotFound))
	assert.Equal(t, "Failed to load sync item", h.lastMessage(t).Message)
}

func TestManager_ExportIgnoresFilter(t *testing.T) {
	h := newHarness(&fakeQueue{items: sampleItems()})
	require.NoError(t, h.m.Load(context.Background()))
	h.m.SetFilter(syncqueue.FilterPending)

	var buf bytes.Buffer
	require.NoError(t, h.m.Export(&buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 4)
	assert.Equal(t, "Sync data exported successfully", h.lastMessage(t).Message)
}

func TestManager_RefreshNotifies(t *testing.T) {
	h := newHarness(&fakeQueue{items: sampleItems()})
	require.NoError(t, h.m.Refresh(context.Background()))
	assert.Equal(t, "Sync data refreshed", h.lastMessage(t).Message)

	h.queue.listErr = statusErr(http.StatusBadGateway)
	require.Error(t, h.m.Refresh(context.Background()))
	assert.Equal(t, "Failed to load sync data", h.lastMessage(t).Message)
}

// Against the fake backend through the real HTTP client.
func TestManager_EndToEnd(t *testing.T) {
	backend := fakebackend.New()
	backend.SetToken("tok")
	srv := httptest.NewServer(backend.Handler())
	defer srv.Close()

	now := time.Now()
	backend.Seed(
		syncqueue.Item{ID: 1, SyncStatus: syncqueue.StatusPending},
		syncqueue.Item{ID: 2, SyncStatus: syncqueue.StatusPending},
		syncqueue.Item{ID: 3, SyncStatus: syncqueue.StatusPending},
		syncqueue.Item{ID: 4, SyncStatus: syncqueue.StatusSynced, SyncedAt: syncqueue.At(now)},
		syncqueue.Item{ID: 5, SyncStatus: syncqueue.StatusSynced, SyncedAt: syncqueue.At(now)},
		syncqueue.Item{ID: 7, SyncStatus: syncqueue.StatusFailed, RetryCount: 2, ErrorMessage: strp("timeout")},
	)

	c, err := client.New(srv.URL+"/api", 5*time.Second, auth.StaticToken("tok"))
	require.NoError(t, err)
	h := newHarness(nil)
	h.m = NewManager(c, h.feed, h.busy, h.nav, Options{Route: "/sync-status"})
	ctx := context.Background()

	require.NoError(t, h.m.Load(ctx))
	stats := h.m.Stats()
	assert.Equal(t, 3, stats.TotalPending)
	assert.Equal(t, 2, stats.TotalSynced)
	assert.Equal(t, 1, stats.TotalFailed)

	it, err := h.m.Retry(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, syncqueue.StatusSynced, it.SyncStatus)
	assert.Equal(t, 3, it.RetryCount)
	assert.Equal(t, 3, h.m.Stats().TotalSynced, "reloaded after retry")

	cleared, err := h.m.ClearAllSynced(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, cleared.Cleared)
	assert.Len(t, h.m.Items(), 3)
	for _, it := range h.m.Items() {
		assert.Equal(t, syncqueue.StatusPending, it.SyncStatus)
	}

	backend.SetToken("rotated")
	require.Error(t, h.m.Load(ctx))
	assert.Len(t, h.m.Items(), 3)
	r, ok := h.nav.Last()
	require.True(t, ok)
	assert.Equal(t, "/login", r.Route)
}

// gatedQueue holds the first ListAll until release is closed.
type gatedQueue struct {
	*fakeQueue
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (g *gatedQueue) ListAll(ctx context.Context) ([]syncqueue.Item, error) {
	if g.calls.Add(1) == 1 {
		close(g.entered)
		<-g.release
	}
	return sampleItems(), nil
}

func (g *gatedQueue) Stats(context.Context) (syncqueue.Stats, error) {
	return syncqueue.Stats{}, nil
}

func TestManager_LoadingCoversOverlappingLoads(t *testing.T) {
	g := &gatedQueue{fakeQueue: &fakeQueue{}, entered: make(chan struct{}), release: make(chan struct{})}
	m := NewManager(g, NewFeed(5), &BusyCounter{}, &RedirectRecorder{}, Options{})
	ctx := context.Background()

	done := make(chan error, 1)
	go func() { done <- m.Load(ctx) }()
	<-g.entered
	assert.True(t, m.Loading())

	require.NoError(t, m.Load(ctx))
	assert.True(t, m.Loading(), "first load is still in flight")
	assert.True(t, m.Snapshot().Loading)

	close(g.release)
	require.NoError(t, <-done)
	assert.False(t, m.Loading())
}

func TestManager_SuccessfulLoadClearsRedirect(t *testing.T) {
	q := &fakeQueue{listErr: statusErr(http.StatusUnauthorized)}
	h := newHarness(q)

	require.Error(t, h.m.Load(context.Background()))
	_, ok := h.nav.Last()
	require.True(t, ok)

	q.listErr = nil
	q.items = sampleItems()
	require.NoError(t, h.m.Load(context.Background()))
	_, ok = h.nav.Last()
	assert.False(t, ok)
}

func TestManager_LoadStats(t *testing.T) {
	q := &fakeQueue{
		listErr: statusErr(http.StatusForbidden),
		stats:   syncqueue.Stats{TotalPending: 4, TotalFailed: 1},
	}
	h := newHarness(q)

	st, err := h.m.LoadStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, st.Total())
	assert.Equal(t, st, h.m.Stats())
	assert.Equal(t, 0, q.listCalls)

	q.statsErr = statusErr(http.StatusBadGateway)
	_, err = h.m.LoadStats(context.Background())
	require.Error(t, err)
	assert.Equal(t, "Failed to load sync statistics", h.lastMessage(t).Message)
	assert.Equal(t, 5, h.m.Stats().Total(), "stats kept on failure")

	q.statsErr = statusErr(http.StatusUnauthorized)
	_, err = h.m.LoadStats(context.Background())
	require.Error(t, err)
	r, ok := h.nav.Last()
	require.True(t, ok)
	assert.Equal(t, "/login", r.Route)
}
