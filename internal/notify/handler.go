package notify

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/visadesk/visadesk/internal/authz"
	"github.com/visadesk/visadesk/internal/platform/httpx"
	"github.com/visadesk/visadesk/internal/shared"
)

// Handler exposes a principal's ledger and live stream over HTTP.
type Handler struct {
	hub    *Hub
	mw     authz.Middleware
	logger *slog.Logger
	now    func() time.Time
}

// NewHandler constructs a Handler.
func NewHandler(hub *Hub, mw authz.Middleware, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{hub: hub, mw: mw, logger: logger, now: time.Now}
}

// MountRoutes registers notification routes. Routes expect Authenticate to
// have run.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(shared.PermNotificationsView))
		r.Get("/", h.list)
		r.Get("/stream", h.stream)
		r.Post("/read-all", h.markAllRead)
		r.Post("/{id}/read", h.markRead)
		r.Delete("/{id}", h.dismiss)
		r.Delete("/", h.clearAll)
	})
}

type entryView struct {
	Entry
	Relative string `json:"relative"`
}

type ledgerView struct {
	Entries     []entryView `json:"entries"`
	UnreadCount int         `json:"unreadCount"`
	Connection  string      `json:"connection"`
}

func (h *Handler) view(s *Session) ledgerView {
	now := h.now()
	entries := s.Ledger.Entries()
	out := ledgerView{
		Entries:     make([]entryView, 0, len(entries)),
		UnreadCount: s.Ledger.UnreadCount(),
		Connection:  s.Channel.State().String(),
	}
	for _, e := range entries {
		out.Entries = append(out.Entries, entryView{Entry: e, Relative: Relative(now, e.OccurredAt)})
	}
	return out
}

func (h *Handler) session(r *http.Request) (*Session, error) {
	p := authz.PrincipalFromContext(r.Context())
	if p == nil {
		return nil, shared.ErrUnauthorized
	}
	return h.hub.Session(p.ID), nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, h.view(s))
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	id := chi.URLParam(r, "id")
	changed := s.MarkRead(r.Context(), id)
	if !changed && !h.hasEntry(s, id) {
		httpx.RespondError(w, fmt.Errorf("notification %w", shared.ErrNotFound))
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"unreadCount": s.Ledger.UnreadCount()})
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	s.MarkAllRead(r.Context())
	httpx.JSON(w, http.StatusOK, map[string]int{"unreadCount": s.Ledger.UnreadCount()})
}

func (h *Handler) dismiss(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if !s.Dismiss(r.Context(), chi.URLParam(r, "id")) {
		httpx.RespondError(w, fmt.Errorf("notification %w", shared.ErrNotFound))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) clearAll(w http.ResponseWriter, r *http.Request) {
	s, err := h.session(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	s.ClearAll(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) hasEntry(s *Session, id string) bool {
	for _, e := range s.Ledger.Entries() {
		if e.ID == id {
			return true
		}
	}
	return false
}

// stream holds the principal's channel open for the lifetime of the request
// and pushes every notification plus the resulting unread count as SSE.
func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	p := authz.PrincipalFromContext(r.Context())
	if p == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "stream unsupported")
		return
	}
	token, _ := authz.RequestToken(r)
	ctx := r.Context()

	s, release, err := h.hub.Acquire(ctx, p, token)
	if err != nil {
		if errors.Is(err, ErrAuthRejected) {
			httpx.RespondError(w, shared.ErrUnauthorized)
			return
		}
		h.logger.Error("notify acquire", slog.String("principal", p.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	defer release()

	events := make(chan Event, 32)
	ref := s.Channel.On(EventNotification, func(msg Message) {
		if msg.Notification == nil {
			return
		}
		select {
		case events <- *msg.Notification:
		default:
			h.logger.Warn("notify stream slow consumer", slog.String("principal", p.ID))
		}
	})
	defer s.Channel.Off(EventNotification, ref)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := writeSSE(w, "unread", map[string]int{"unreadCount": s.Ledger.UnreadCount()}); err != nil {
		return
	}
	flusher.Flush()

	keepAlive := time.NewTicker(25 * time.Second)
	defer keepAlive.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-h.hub.Done():
			return
		case <-keepAlive.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case ev := <-events:
			if err := writeSSE(w, EventNotification, ev); err != nil {
				return
			}
			if err := writeSSE(w, "unread", map[string]int{"unreadCount": s.Ledger.UnreadCount()}); err != nil {
				return
			}
		}
		flusher.Flush()
	}
}

func writeSSE(w http.ResponseWriter, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}
