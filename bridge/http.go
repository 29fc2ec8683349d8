package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ynl8015/otfit/closet"
	"github.com/ynl8015/otfit/fitting"
	"github.com/ynl8015/otfit/malls"
	"github.com/ynl8015/otfit/shield"
	"github.com/ynl8015/otfit/store"
)

// maxRequestBody leaves room for a base64-encoded user photo inside a
// JSON body.
const maxRequestBody = 16 << 20

// Server exposes the bridge over HTTP for popup-style surfaces.
type Server struct {
	bridge *Bridge
	addr   string
	log    *slog.Logger
	router *chi.Mux
}

func NewServer(b *Bridge, addr string) *Server {
	s := &Server{bridge: b, addr: addr, log: b.cfg.Logger}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(shield.SecurityHeaders(shield.DefaultHeaders()))
	r.Use(shield.MaxBody(maxRequestBody))

	limiter := shield.NewRateLimiter(nil, "/v1/events")
	r.Use(limiter.Middleware)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/messages", s.handleMessage)

		r.Get("/cart", s.handleCartList)
		r.Post("/cart", s.handleCartAdd)
		r.Put("/cart", s.handleCartEdit)
		// Item ids embed URLs, so the id travels as a query parameter.
		r.Delete("/cart", s.handleCartRemove)

		r.Get("/moodboard", s.handleMoodboardGet)
		r.Put("/moodboard/{slot}", s.handleMoodboardAssign)
		r.Delete("/moodboard/{slot}", s.handleMoodboardClear)
		r.Delete("/moodboard", s.handleMoodboardClearAll)

		r.Get("/session", s.handleSession)
		r.Put("/session/photo", s.handlePhoto)

		r.Post("/tryon", s.handleTryOn)
		r.Get("/tryon/quota", s.handleQuota)

		r.Post("/reset", s.handleReset)
		r.Get("/events", s.handleEvents)
	})
	s.router = r
	return s
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("bridge: listening", "addr", s.addr)

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("bridge: serve: %w", err)
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("bridge: write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, errorStatus(err), map[string]string{"error": err.Error()})
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnknownAction), errors.Is(err, ErrMissingProduct),
		errors.Is(err, ErrMissingPhoto):
		return http.StatusBadRequest
	case errors.Is(err, closet.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, closet.ErrNotFound), errors.Is(err, malls.ErrNoAdapter):
		return http.StatusNotFound
	case errors.Is(err, closet.ErrUnknownSlot),
		errors.Is(err, fitting.ErrUnsupportedCategory),
		errors.Is(err, ErrNoUserImage),
		errors.Is(err, ErrNoGarment):
		return http.StatusUnprocessableEntity
	}
	var be *fitting.BackendError
	if errors.As(err, &be) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func decodeBody(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var msg Message
	if err := decodeBody(r, &msg); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid message body"})
		return
	}
	resp, err := s.bridge.Dispatch(r.Context(), msg)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCartList(w http.ResponseWriter, r *http.Request) {
	items, err := s.bridge.cfg.Cart.Items(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"groups": closet.Group(items),
	})
}

func (s *Server) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	var p malls.Product
	if err := decodeBody(r, &p); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product body"})
		return
	}
	item, err := s.bridge.cfg.Cart.Add(r.Context(), p)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, item)
}

func (s *Server) handleCartEdit(w http.ResponseWriter, r *http.Request) {
	var p malls.Product
	if err := decodeBody(r, &p); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product body"})
		return
	}
	if err := s.bridge.cfg.Cart.UpdateByURL(r.Context(), p); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"updated": true})
}

func (s *Server) handleCartRemove(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}
	if err := s.bridge.cfg.Cart.Remove(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"removed": id})
}

func (s *Server) handleMoodboardGet(w http.ResponseWriter, r *http.Request) {
	mb := s.bridge.cfg.Moodboard
	if err := mb.Load(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, mb.Slots())
}

func (s *Server) handleMoodboardAssign(w http.ResponseWriter, r *http.Request) {
	slot := closet.Slot(chi.URLParam(r, "slot"))
	var item closet.Item
	if err := decodeBody(r, &item); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid item body"})
		return
	}
	if err := s.bridge.cfg.Moodboard.Assign(r.Context(), slot, item); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.bridge.cfg.Moodboard.Slots())
}

func (s *Server) handleMoodboardClear(w http.ResponseWriter, r *http.Request) {
	slot := closet.Slot(chi.URLParam(r, "slot"))
	if err := s.bridge.cfg.Moodboard.Clear(r.Context(), slot); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.bridge.cfg.Moodboard.Slots())
}

func (s *Server) handleMoodboardClearAll(w http.ResponseWriter, r *http.Request) {
	if err := s.bridge.cfg.Moodboard.ClearAll(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.bridge.cfg.Moodboard.Slots())
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.bridge.Session(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handlePhoto(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Image string `json:"image"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid photo body"})
		return
	}
	if err := s.bridge.SetPhoto(r.Context(), req.Image); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"stored": true})
}

func (s *Server) handleTryOn(w http.ResponseWriter, r *http.Request) {
	var req TryOnRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid try-on body"})
		return
	}
	res, err := s.bridge.TryOn(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	remaining, err := s.bridge.cfg.Fitting.QuotaRemaining(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"remaining": remaining})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if err := s.bridge.Reset(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"reset": true})
}

// handleEvents streams store change batches as server-sent events, one
// "change" event per watcher fire. Surfaces use it the way extension
// contexts use storage change listeners.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	watcher := s.bridge.cfg.Watcher
	if watcher == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "change watcher not running"})
		return
	}
	fl, ok := w.(http.Flusher)
	if !ok {
		s.writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fl.Flush()

	ch := make(chan []store.Change, 16)
	unsubscribe := watcher.Subscribe(func(changes []store.Change) {
		select {
		case ch <- changes:
		default:
			s.log.Warn("bridge: slow event consumer, dropping batch")
		}
	})
	defer unsubscribe()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case changes := <-ch:
			data, err := json.Marshal(changes)
			if err != nil {
				s.log.Warn("bridge: marshal changes", "error", err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: change\ndata: %s\n\n", data); err != nil {
				return
			}
			fl.Flush()
		}
	}
}
