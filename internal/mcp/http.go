// ABOUTME: HTTP transport for the JSON-RPC dispatcher: /mcp endpoint and /health.
// ABOUTME: Handles CORS, body limits, notifications, and the session-id handshake.

package mcp

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// session tracks one client that has completed the initialize handshake.
type session struct {
	id        string
	createdAt time.Time
}

// sessionStore manages sessions in memory. Sessions are advisory: requests
// are dispatched independently whether or not they carry a session header.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*session)}
}

func (s *sessionStore) create() *session {
	sess := &session{id: uuid.New().String(), createdAt: time.Now()}
	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()
	return sess
}

func (s *sessionStore) delete(id string) bool {
	s.mu.Lock()
	_, existed := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	return existed
}

// HTTPServer exposes the dispatcher over HTTP.
type HTTPServer struct {
	server      *Server
	sandboxRoot string
	sessions    *sessionStore
}

// NewHTTPServer wraps a dispatcher. sandboxRoot is reported by /health.
func NewHTTPServer(server *Server, sandboxRoot string) *HTTPServer {
	return &HTTPServer{
		server:      server,
		sandboxRoot: sandboxRoot,
		sessions:    newSessionStore(),
	}
}

// RegisterRoutes registers the MCP endpoint and health probe on mux.
func (h *HTTPServer) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/mcp", h.handleMCP)
	mux.HandleFunc("/health", h.handleHealth)
}

// setCORSHeaders adds the permissive CORS headers the bridge and browser
// clients expect, including exposing the session id header.
func setCORSHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Mcp-Session-Id")
	h.Set("Access-Control-Expose-Headers", "Mcp-Session-Id")
}

func (h *HTTPServer) handleMCP(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodDelete:
		h.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "POST, DELETE, OPTIONS")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	}
}

// handleDelete terminates a session.
func (h *HTTPServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get("Mcp-Session-Id")
	if sessionID == "" {
		http.Error(w, "Bad Request: missing Mcp-Session-Id", http.StatusBadRequest)
		return
	}
	if !h.sessions.delete(sessionID) {
		http.Error(w, "Not Found", http.StatusNotFound)
		return
	}
	h.server.logger.Info("session terminated", "session_id", sessionID)
	w.WriteHeader(http.StatusNoContent)
}

// handlePost reads one JSON-RPC message and writes the dispatch result.
func (h *HTTPServer) handlePost(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		writeResponse(w, errorResponse(nil, CodeParseError, "failed to read request body"))
		return
	}
	if int64(len(body)) > MaxRequestBodySize {
		writeResponse(w, errorResponse(nil, CodeInvalidRequest, "request body too large"))
		return
	}

	// Notifications get HTTP 202 with no body.
	var probe Request
	if json.Valid(body) && json.Unmarshal(body, &probe) == nil {
		if probe.Method != "" && (len(probe.ID) == 0 || string(probe.ID) == "null") {
			if !strings.HasPrefix(probe.Method, "notifications/") {
				h.server.logger.Warn("notification for non-notification method", "method", probe.Method)
			}
			w.WriteHeader(http.StatusAccepted)
			return
		}
		if probe.Method == "initialize" {
			sess := h.sessions.create()
			h.server.logger.Info("session created", "session_id", sess.id)
			w.Header().Set("Mcp-Session-Id", sess.id)
		}
	}

	writeResponse(w, h.server.Dispatch(r.Context(), body))
}

// handleHealth reports liveness and the configured sandbox root.
func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"baseDir": h.sandboxRoot,
	})
}

func writeResponse(w http.ResponseWriter, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
