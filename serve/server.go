// CLAUDE:SUMMARY HTTP control surface: start captures, stream progress, read results.
// Package serve exposes the capture engine over HTTP: a ping/version
// handshake so UIs can verify an engine is present, capture-run start
// and result endpoints, and a WebSocket stream of per-run progress
// events keyed by run ID.
package serve

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/hazyhaar/convocap/capture"
	"github.com/hazyhaar/convocap/idgen"
	"github.com/hazyhaar/convocap/store"
	"github.com/hazyhaar/convocap/turn"
)

// Version is the engine version reported by the ping handshake.
const Version = "0.3.0"

// CaptureRequest starts a run. Either URL names a live page to attach
// to, or HTML+PageURL supply a document snapshot directly.
type CaptureRequest struct {
	URL      string `json:"url,omitempty"`
	HTML     string `json:"html,omitempty"`
	PageURL  string `json:"page_url,omitempty"`
	Title    string `json:"title,omitempty"`
	Tolerant bool   `json:"tolerant,omitempty"`
}

// Launcher executes one capture run, streaming events to onEvent, and
// returns the payload plus a human-readable warning ("" when clean).
type Launcher func(ctx context.Context, req CaptureRequest, onEvent func(capture.Event)) (*turn.Payload, string, error)

// Server is the HTTP control surface.
type Server struct {
	st       *store.Store
	launch   Launcher
	logger   *slog.Logger
	hub      *progressHub
	upgrader websocket.Upgrader
}

// New builds a Server. launch runs captures; st persists their results.
func New(st *store.Store, launch Launcher, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		st:     st,
		launch: launch,
		logger: logger,
		hub:    newProgressHub(),
		// The desktop UI serves from its own origin.
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
	}
}

// Router assembles the chi router.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/api/ping", s.handlePing)
	r.Post("/api/captures", s.handleStart)
	r.Get("/api/captures", s.handleList)
	r.Get("/api/captures/{runID}", s.handleGet)
	r.Delete("/api/captures/{runID}", s.handleDelete)
	r.Get("/api/captures/{runID}/progress", s.handleProgress)
	return r
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"service":        "convocap",
		"version":        Version,
		"schema_version": turn.SchemaVersion,
		"sources":        turn.Sources(),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req CaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.URL == "" && req.HTML == "" {
		writeError(w, http.StatusBadRequest, "either url or html is required")
		return
	}

	runID := idgen.RunID()
	// The run outlives the HTTP request; progress flows over the hub.
	go func() {
		ctx := context.Background()
		payload, warning, err := s.launch(ctx, req, func(ev capture.Event) {
			// The run's own done event is withheld until the payload
			// is actually saved; clients treat done as "result ready".
			if ev.Phase == capture.PhaseDone {
				return
			}
			s.hub.publish(runID, ev)
		})
		if err != nil {
			s.logger.Error("serve: capture run failed", "run_id", runID, "err", err)
			s.hub.publish(runID, capture.Event{Phase: capture.PhaseError, Status: err.Error()})
			return
		}
		if err := s.st.Save(ctx, runID, payload, warning); err != nil {
			s.logger.Error("serve: save failed", "run_id", runID, "err", err)
			s.hub.publish(runID, capture.Event{Phase: capture.PhaseError, Status: err.Error()})
			return
		}
		s.hub.publish(runID, capture.Event{Phase: capture.PhaseDone, Percent: 100, Status: "saved"})
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": runID})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	metas, err := s.st.List(r.Context(), 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if metas == nil {
		metas = []store.Meta{}
	}
	writeJSON(w, http.StatusOK, metas)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	payload, err := s.st.Get(r.Context(), chi.URLParam(r, "runID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such capture")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	err := s.st.Delete(r.Context(), chi.URLParam(r, "runID"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such capture")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleProgress streams a run's events over a WebSocket until the run
// ends or the client hangs up.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade already wrote the error
	}
	defer conn.Close()

	ch := s.hub.subscribe(runID)
	defer s.hub.unsubscribe(runID, ch)

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
			if ev.Phase == capture.PhaseDone || ev.Phase == capture.PhaseError {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
