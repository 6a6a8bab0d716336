package api

import (
	"bytes"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"syncqueue-client/internal/client"
	"syncqueue-client/internal/config"
	"syncqueue-client/internal/sync"
	"syncqueue-client/internal/syncqueue"
)

type Handler struct {
	manager   *sync.Manager
	feed      *sync.Feed
	redirects *sync.RedirectRecorder
	busy      *sync.BusyCounter
	cfg       config.ServerConfig
	now       func() time.Time
}

// NewHandler serves manager's view. busy must be the indicator manager was
// built with.
func NewHandler(manager *sync.Manager, feed *sync.Feed, redirects *sync.RedirectRecorder, busy *sync.BusyCounter, cfg config.ServerConfig) *Handler {
	return &Handler{
		manager:   manager,
		feed:      feed,
		redirects: redirects,
		busy:      busy,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(CorsMiddleware(h.cfg.CorsOrigins))

	r.Get("/health", h.HealthCheck)

	r.Route("/api/v1/sync", func(r chi.Router) {
		r.Use(AuthMiddleware(h.cfg.AuthToken))
		if h.cfg.RateLimit > 0 {
			r.Use(RateLimit(h.cfg.RateLimit, h.cfg.RateBurst))
		}

		r.Get("/items", h.ListItems)
		r.Get("/items/{id}", h.GetItem)
		r.Get("/stats", h.GetStats)
		r.Get("/notifications", h.ListNotifications)
		r.Get("/export", h.Export)

		r.Post("/refresh", h.Refresh)
		r.Post("/items/{id}/retry", h.RetryItem)
		r.Post("/retry-all", h.RetryAllFailed)
		r.Post("/sync-all", h.SyncAll)

		r.Delete("/items/synced", h.ClearAllSynced)
		r.Delete("/items/failed", h.ClearAllFailed)
		r.Delete("/items/{id}", h.DeleteItem)
	})

	return r
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// ListItems applies ?status= as the view filter. The filter is local; it
// never triggers a fetch.
func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	if raw, ok := r.URL.Query()["status"]; ok {
		f, err := syncqueue.ParseFilter(raw[0])
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.manager.SetFilter(f)
	}
	writeJSON(w, http.StatusOK, h.snapshot())
}

func (h *Handler) GetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	it, err := h.manager.Details(r.Context(), id)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newItemView(it))
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.manager.Stats())
}

func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.feed.Notifications())
}

func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.manager.Export(&buf); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+syncqueue.ExportFilename(h.now())+`"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Refresh(r.Context()); err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.snapshot())
}

func (h *Handler) RetryItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	it, err := h.manager.Retry(r.Context(), id)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newItemView(it))
}

func (h *Handler) RetryAllFailed(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.RetryAllFailed(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) SyncAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.SyncAll(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := itemID(w, r)
	if !ok {
		return
	}
	if err := h.manager.Delete(r.Context(), id); err != nil {
		h.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ClearAllSynced(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.ClearAllSynced(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ClearAllFailed(w http.ResponseWriter, r *http.Request) {
	res, err := h.manager.ClearAllFailed(r.Context())
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) snapshot() snapshotView {
	return newSnapshotView(h.manager.Snapshot(), h.busy.Busy())
}

type failure struct {
	Error    string `json:"error"`
	Redirect string `json:"redirect,omitempty"`
}

// writeFailure maps backend errors onto the dashboard's responses. An expired
// session carries the login redirect the view recorded.
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	body := failure{Error: err.Error()}
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, client.ErrUnauthorized):
		status = http.StatusUnauthorized
		if rd, ok := h.redirects.Last(); ok {
			body.Redirect = rd.URL()
		}
	case errors.Is(err, client.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, client.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, client.ErrTransport), errors.Is(err, client.ErrServer), errors.Is(err, client.ErrInvalidResponse):
		status = http.StatusBadGateway
	default:
		var se *client.StatusError
		if errors.As(err, &se) && se.StatusCode >= 400 && se.StatusCode < 500 {
			status = se.StatusCode
		}
	}
	writeJSON(w, status, body)
}

func itemID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid item id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, failure{Error: msg})
}

func CorsMiddleware(origins []string) func(http.Handler) http.Handler {
	allowAll := len(origins) == 0
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")

			if r.Method == http.MethodOptions {
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuthMiddleware requires "Bearer <token>" when token is non-empty.
func AuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			got, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !found || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid or missing token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
