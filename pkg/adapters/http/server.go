package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/detent"
	"github.com/aretw0/detent/internal/config"
	"github.com/aretw0/detent/pkg/domain"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server exposes an engine over HTTP: sheet commands, platform event
// ingestion and SSE streams.
type Server struct {
	Engine  *detent.Engine
	Streams *StreamManager
	logger  *slog.Logger
}

type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewHandler creates the router. streams must be the manager whose Hooks were
// given to the engine.
func NewHandler(engine *detent.Engine, streams *StreamManager, opts ...Option) http.Handler {
	s := &Server{
		Engine:  engine,
		Streams: streams,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/events", s.SubscribeEvents)
	r.Post("/events", s.DeliverEvent)
	r.Post("/dismiss-all", s.DismissAll)

	r.Route("/sheets", func(r chi.Router) {
		r.Get("/", s.ListSheets)
		r.Post("/", s.MountSheet)
		r.Route("/{ref}", func(r chi.Router) {
			r.Get("/", s.GetSheet)
			r.Delete("/", s.UnmountSheet)
			r.Post("/present", s.Present)
			r.Post("/dismiss", s.Dismiss)
			r.Post("/resize", s.Resize)
			r.Post("/dismiss-children", s.DismissChildren)
			r.Get("/telemetry", s.SubscribeTelemetry)
		})
	})

	return enableCORS(r)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Custom-Header")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CommandRequest is the body of every sheet command. Animated defaults to true.
type CommandRequest struct {
	Index    int   `json:"index"`
	Animated *bool `json:"animated,omitempty"`
}

func (c CommandRequest) animated() bool {
	return c.Animated == nil || *c.Animated
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"app":     "detent-http",
		"version": strings.TrimSpace(detent.Version),
		"live":    len(s.Engine.Live()),
		"topmost": s.Engine.Topmost(),
	})
}

// ListSheets handles GET /sheets.
func (s *Server) ListSheets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Engine.List())
}

// MountSheet handles POST /sheets. The body uses the config file notation,
// so detents may be written as "50%", "large", "auto" or plain numbers.
func (s *Server) MountSheet(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.badRequest(w, "MountSheet", err)
		return
	}
	cfg, err := config.DecodeSheet(body)
	if err != nil {
		s.badRequest(w, "MountSheet", err)
		return
	}

	sheet, err := s.Engine.Mount(cfg)
	if err != nil {
		s.fail(w, "MountSheet", err)
		return
	}
	snap, err := sheet.Snapshot()
	if err != nil {
		s.fail(w, "MountSheet", err)
		return
	}
	writeJSON(w, http.StatusCreated, snap)
}

// GetSheet handles GET /sheets/{ref}.
func (s *Server) GetSheet(w http.ResponseWriter, r *http.Request) {
	sheet, ok := s.sheet(w, r)
	if !ok {
		return
	}
	snap, err := sheet.Snapshot()
	if err != nil {
		s.fail(w, "GetSheet", err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// UnmountSheet handles DELETE /sheets/{ref}.
func (s *Server) UnmountSheet(w http.ResponseWriter, r *http.Request) {
	sheet, ok := s.sheet(w, r)
	if !ok {
		return
	}
	if err := s.Engine.Unmount(sheet.ID()); err != nil {
		s.fail(w, "UnmountSheet", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Present handles POST /sheets/{ref}/present.
func (s *Server) Present(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, "Present", func(ctx context.Context, sheet *detent.Sheet, req CommandRequest) error {
		return sheet.Present(ctx, req.Index, req.animated())
	})
}

// Dismiss handles POST /sheets/{ref}/dismiss.
func (s *Server) Dismiss(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, "Dismiss", func(ctx context.Context, sheet *detent.Sheet, req CommandRequest) error {
		return sheet.Dismiss(ctx, req.animated())
	})
}

// Resize handles POST /sheets/{ref}/resize.
func (s *Server) Resize(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, "Resize", func(ctx context.Context, sheet *detent.Sheet, req CommandRequest) error {
		return sheet.Resize(ctx, req.Index)
	})
}

// DismissChildren handles POST /sheets/{ref}/dismiss-children.
func (s *Server) DismissChildren(w http.ResponseWriter, r *http.Request) {
	s.command(w, r, "DismissChildren", func(ctx context.Context, sheet *detent.Sheet, req CommandRequest) error {
		return sheet.DismissChildren(ctx, req.animated())
	})
}

// DismissAll handles POST /dismiss-all.
func (s *Server) DismissAll(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeCommand(w, r, "DismissAll")
	if !ok {
		return
	}
	if err := s.Engine.DismissAll(r.Context(), req.animated()); err != nil {
		s.fail(w, "DismissAll", err)
		return
	}
	writeJSON(w, http.StatusOK, s.Engine.List())
}

// DeliverEvent handles POST /events: a platform reporting back to the engine.
func (s *Server) DeliverEvent(w http.ResponseWriter, r *http.Request) {
	var ev domain.Event
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		s.badRequest(w, "DeliverEvent", err)
		return
	}
	if err := s.Engine.Deliver(r.Context(), ev); err != nil {
		s.fail(w, "DeliverEvent", err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) command(w http.ResponseWriter, r *http.Request, name string, run func(context.Context, *detent.Sheet, CommandRequest) error) {
	sheet, ok := s.sheet(w, r)
	if !ok {
		return
	}
	req, ok := s.decodeCommand(w, r, name)
	if !ok {
		return
	}

	if err := run(r.Context(), sheet, req); err != nil {
		s.fail(w, name, err)
		return
	}

	snap, err := sheet.Snapshot()
	if err != nil {
		s.fail(w, name, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// decodeCommand accepts an empty body.
func (s *Server) decodeCommand(w http.ResponseWriter, r *http.Request, name string) (CommandRequest, bool) {
	var req CommandRequest
	if r.ContentLength == 0 {
		return req, true
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, name, err)
		return req, false
	}
	return req, true
}

// sheet resolves {ref} as an ID first, then as a name.
func (s *Server) sheet(w http.ResponseWriter, r *http.Request) (*detent.Sheet, bool) {
	ref := chi.URLParam(r, "ref")
	sheet, err := s.Engine.Sheet(ref)
	if errors.Is(err, domain.ErrNotFound) {
		sheet, err = s.Engine.Lookup(ref)
	}
	if err != nil {
		s.fail(w, "Lookup", err)
		return nil, false
	}
	return sheet, true
}

func (s *Server) badRequest(w http.ResponseWriter, op string, err error) {
	s.logger.Warn(op+": Invalid request body", "error", err)
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
}

func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "error", err)
	} else {
		s.logger.Debug(op+" rejected", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// StatusFor maps engine errors onto HTTP status codes.
func StatusFor(err error) int {
	var cfgErr *domain.ConfigurationError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &cfgErr), errors.Is(err, domain.ErrIndexOutOfRange):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrCyclicPresentation):
		return http.StatusConflict
	case errors.Is(err, domain.ErrTornDown):
		return http.StatusGone
	case errors.Is(err, domain.ErrPlatform):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

// SubscribeEvents handles GET /events (SSE).
//
// Query parameters:
//   - sheet_id: restrict to one sheet.
//   - watch: comma separated kinds, "lifecycle" and/or "diff" (default both).
//
// Each state change is sent as a SnapshotDiff against the last snapshot this
// connection has seen for that sheet.
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("SubscribeEvents: Streaming not supported")
		return
	}

	sheetID := r.URL.Query().Get("sheet_id")
	watchLifecycle, watchDiff := true, true
	if watch := r.URL.Query().Get("watch"); watch != "" {
		watchLifecycle, watchDiff = false, false
		for _, field := range strings.Split(watch, ",") {
			switch strings.TrimSpace(field) {
			case "lifecycle":
				watchLifecycle = true
			case "diff":
				watchDiff = true
			}
		}
	}

	ch, cancel := s.Streams.subscribe(sheetID)
	defer cancel()

	sseHeaders(w)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()
	s.logger.Info("SSE: Subscribing to sheet events", "sheet_id", sheetID)

	last := make(map[string]*domain.Snapshot)
	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected")
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			switch msg.kind {
			case KindLifecycle:
				if !watchLifecycle {
					continue
				}
				fmt.Fprintf(w, "event: lifecycle\ndata: %s\n\n", msg.data)
			case KindState:
				if !watchDiff {
					continue
				}
				data, ok := s.diff(last, msg.sheetID)
				if !ok {
					continue
				}
				fmt.Fprintf(w, "event: diff\ndata: %s\n\n", data)
			}
			flusher.Flush()
		}
	}
}

func (s *Server) diff(last map[string]*domain.Snapshot, sheetID string) ([]byte, bool) {
	sheet, err := s.Engine.Sheet(sheetID)
	if err != nil {
		delete(last, sheetID)
		return nil, false
	}
	snap, err := sheet.Snapshot()
	if err != nil {
		return nil, false
	}

	d := domain.Diff(last[sheetID], snap)
	last[sheetID] = snap
	if d == nil {
		return nil, false
	}
	data, err := json.Marshal(d)
	if err != nil {
		s.logger.Error("SSE: diff marshal failed", "error", err)
		return nil, false
	}
	return data, true
}

// SubscribeTelemetry handles GET /sheets/{ref}/telemetry (SSE of position samples).
func (s *Server) SubscribeTelemetry(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	sheet, ok := s.sheet(w, r)
	if !ok {
		return
	}
	samples, cancel, err := sheet.Subscribe()
	if err != nil {
		s.fail(w, "SubscribeTelemetry", err)
		return
	}
	defer cancel()

	sseHeaders(w)
	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case sample, ok := <-samples:
			if !ok {
				// Sheet unmounted.
				return
			}
			data, err := json.Marshal(sample)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: position\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func sseHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}
