// ABOUTME: Replay supervisor HTTP server: streams scripted trace events over SSE behind a chi router.
// ABOUTME: Mirrors the production supervisor's API surface so the client can be exercised end to end.
package server

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// chatRequest is the inbound body of both chat endpoints.
type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// chatResponse is the synchronous chat endpoint's body.
type chatResponse struct {
	Response     any    `json:"response"`
	SessionID    string `json:"session_id"`
	ResponseType string `json:"response_type"`
	Timestamp    string `json:"timestamp"`
}

// Server replays scripted analysis traces.
type Server struct {
	cfg      *Config
	library  *Library
	sessions *SessionManager
	router   chi.Router
}

// New creates a replay server from config, loading the scenario library.
func New(cfg *Config) (*Server, error) {
	lib, err := LoadLibrary(cfg.ScenarioDir)
	if err != nil {
		return nil, fmt.Errorf("loading scenarios: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		library:  lib,
		sessions: NewSessionManager(),
	}
	s.router = s.buildRouter()
	return s, nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe runs the server on the configured bind address.
func (s *Server) ListenAndServe() error {
	log.Printf("replay server listening addr=%s scenarios=%d", s.cfg.Bind, s.library.Len())
	return http.ListenAndServe(s.cfg.Bind, s.router)
}

func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if s.cfg.AuthToken != "" {
		r.Use(s.requireAuth)
	}

	r.Get("/api", s.handleHealth)
	r.Post("/api/chat", s.handleChat)
	r.Post("/api/chat/stream/trace", s.handleStreamTrace)
	r.Get("/api/session/{sessionID}", s.handleGetSession)
	r.Delete("/api/session/{sessionID}", s.handleDeleteSession)
	return r
}

// requireAuth enforces the bearer token on every route.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if auth != "Bearer "+s.cfg.AuthToken {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"scenarios": s.library.Len(),
		"sessions":  s.sessions.Len(),
	})
}

// handleStreamTrace replays the matched scenario as server-sent events.
func (s *Server) handleStreamTrace(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChat(w, r)
	if !ok {
		return
	}
	sess := s.sessions.Touch(req.SessionID)
	scenario := s.library.Pick(req.Message)
	log.Printf("replay stream session=%s scenario=%s", sess.ID, scenario.Name)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, canFlush := w.(http.Flusher)
	for _, ev := range scenario.Events {
		if d := ev.Delay(); d > 0 {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
		}
		data, err := json.Marshal(ev.Trace())
		if err != nil {
			log.Printf("replay marshal event scenario=%s err=%v", scenario.Name, err)
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		if canFlush {
			flusher.Flush()
		}
	}
}

// handleChat runs the matched scenario without streaming and returns only
// its terminal result.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChat(w, r)
	if !ok {
		return
	}
	sess := s.sessions.Touch(req.SessionID)
	scenario := s.library.Pick(req.Message)

	resp := chatResponse{
		SessionID:    sess.ID,
		ResponseType: "text",
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
	for _, ev := range scenario.Events {
		if ev.Type != "final_response" {
			continue
		}
		if ev.Success {
			resp.Response = ev.Result
			resp.ResponseType = "analysis"
		} else {
			resp.Response = ev.Error
			resp.ResponseType = "error"
		}
		break
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	sess, ok := s.sessions.Get(id)
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if !s.sessions.Delete(id) {
		http.Error(w, "session not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

// decodeChat parses and validates the chat request body.
func (s *Server) decodeChat(w http.ResponseWriter, r *http.Request) (chatRequest, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return req, false
	}
	if strings.TrimSpace(req.Message) == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return req, false
	}
	return req, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response err=%v", err)
	}
}
