// Package fakebackend is an in-memory stand-in for the immunization backend's
// /sync endpoints, used by tests across the module.
package fakebackend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"syncqueue-client/internal/syncqueue"
)

// Reconciler decides whether applying an item to the authoritative store
// succeeds. A nil error means success.
type Reconciler func(syncqueue.Item) error

type Request struct {
	Method        string
	Path          string
	Authorization string
	RequestID     string
}

type Server struct {
	mu        sync.Mutex
	token     string
	items     []syncqueue.Item
	nextID    int64
	lastSync  *syncqueue.Timestamp
	reconcile Reconciler
	forced    map[string]int
	requests  []Request
	now       func() time.Time
}

func New() *Server {
	return &Server{
		nextID:    1,
		reconcile: func(syncqueue.Item) error { return nil },
		forced:    make(map[string]int),
		now:       time.Now,
	}
}

// SetToken makes every request require "Bearer <token>". Empty accepts any.
func (s *Server) SetToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
}

func (s *Server) SetReconciler(r Reconciler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reconcile = r
}

// Seed appends items in order. Items with ID 0 get the next free id.
func (s *Server) Seed(items ...syncqueue.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, it := range items {
		if it.ID == 0 {
			it.ID = s.nextID
		}
		if it.ID >= s.nextID {
			s.nextID = it.ID + 1
		}
		if it.CreatedAt.IsZero() {
			it.CreatedAt = syncqueue.NewTimestamp(s.now())
		}
		if it.OperationType == "" {
			it.OperationType = syncqueue.OperationCreate
		}
		s.items = append(s.items, it)
	}
}

// Fail makes every request matching method and path (relative to /sync)
// answer with status until Recover is called.
func (s *Server) Fail(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forced[method+" "+path] = status
}

func (s *Server) Recover() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forced = make(map[string]int)
}

func (s *Server) Items() []syncqueue.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]syncqueue.Item(nil), s.items...)
}

func (s *Server) Item(id int64) (syncqueue.Item, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return syncqueue.Item{}, false
	}
	return s.items[i], true
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Handler serves the routes under /api/sync.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Use(s.authorize)
	r.Use(s.inject)

	r.Route("/api/sync", func(r chi.Router) {
		r.Get("/queue", s.listAll)
		r.Get("/queue/status/{status}", s.listByStatus)
		r.Get("/queue/{id}", s.getItem)
		r.Delete("/queue/synced", s.clearByStatus(syncqueue.StatusSynced))
		r.Delete("/queue/failed", s.clearByStatus(syncqueue.StatusFailed))
		r.Delete("/queue/{id}", s.deleteItem)
		r.Get("/stats", s.stats)
		r.Post("/retry/{id}", s.retry)
		r.Post("/retry-all", s.retryAll)
		r.Post("/sync-all", s.syncAll)
	})
	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:        r.Method,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-ID"),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		token := s.token
		s.mu.Unlock()
		if token != "" && r.Header.Get("Authorization") != "Bearer "+token {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Full authentication is required"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) inject(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/sync")
		s.mu.Lock()
		status, ok := s.forced[r.Method+" "+path]
		s.mu.Unlock()
		if ok {
			writeJSON(w, status, map[string]string{"message": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) listAll(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Items())
}

func (s *Server) listByStatus(w http.ResponseWriter, r *http.Request) {
	st, err := syncqueue.ParseStatus(chi.URLParam(r, "status"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, syncqueue.VisibleItems(s.Items(), syncqueue.Filter(st)))
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	it, found := s.Item(id)
	if !found {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": fmt.Sprintf("sync item %d not found", id)})
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) deleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	i := s.indexOf(id)
	if i >= 0 {
		s.items = append(s.items[:i], s.items[i+1:]...)
	}
	s.mu.Unlock()
	if i < 0 {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": fmt.Sprintf("sync item %d not found", id)})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearByStatus(st syncqueue.Status) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		kept := s.items[:0:0]
		cleared := 0
		for _, it := range s.items {
			if it.SyncStatus == st {
				cleared++
				continue
			}
			kept = append(kept, it)
		}
		s.items = kept
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, syncqueue.ClearResult{
			Message: fmt.Sprintf("Cleared %d %s items", cleared, strings.ToLower(string(st))),
			Cleared: cleared,
		})
	}
}

func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st := syncqueue.StatsOf(s.items)
	st.LastSyncTime = s.lastSync
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) retry(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, map[string]string{"message": fmt.Sprintf("sync item %d not found", id)})
		return
	}
	if s.items[i].SyncStatus == syncqueue.StatusSynced {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "item already synced"})
		return
	}
	s.attempt(i)
	it := s.items[i]
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, it)
}

func (s *Server) retryAll(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	retried := 0
	for i := range s.items {
		if s.items[i].SyncStatus != syncqueue.StatusFailed {
			continue
		}
		s.items[i].SyncStatus = syncqueue.StatusPending
		s.items[i].ErrorMessage = nil
		s.items[i].RetryCount++
		retried++
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, syncqueue.RetryAllResult{
		Message: fmt.Sprintf("Retried %d failed items", retried),
		Retried: retried,
	})
}

func (s *Server) syncAll(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	var res syncqueue.SyncAllResult
	for i := range s.items {
		if s.items[i].SyncStatus != syncqueue.StatusPending {
			continue
		}
		if s.attempt(i) {
			res.Synced++
		} else {
			res.Failed++
		}
	}
	s.lastSync = syncqueue.At(s.now())
	s.mu.Unlock()
	res.Message = fmt.Sprintf("Sync completed: %d synced, %d failed", res.Synced, res.Failed)
	writeJSON(w, http.StatusOK, res)
}

// attempt runs one reconciliation of items[i]; callers hold mu.
func (s *Server) attempt(i int) bool {
	it := &s.items[i]
	it.RetryCount++
	if err := s.reconcile(*it); err != nil {
		msg := err.Error()
		it.SyncStatus = syncqueue.StatusFailed
		it.ErrorMessage = &msg
		it.SyncedAt = nil
		return false
	}
	it.SyncStatus = syncqueue.StatusSynced
	it.ErrorMessage = nil
	it.SyncedAt = syncqueue.At(s.now())
	return true
}

func (s *Server) indexOf(id int64) int {
	for i, it := range s.items {
		if it.ID == id {
			return i
		}
	}
	return -1
}

func parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid id"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ErrReconcile is a convenience failure for Reconciler implementations.
var ErrReconcile = errors.New("reconciliation failed")
