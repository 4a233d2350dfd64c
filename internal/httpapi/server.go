// Package httpapi exposes the synchronous REST surface and the websocket
// upgrade endpoint. Responses use a FastAPI-style {"detail": ...} error body
// because the shipped web client expects it.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/lyrebird-labs/lyrebird/internal/auth"
	"github.com/lyrebird-labs/lyrebird/internal/fault"
	"github.com/lyrebird-labs/lyrebird/internal/pipeline"
	"github.com/lyrebird-labs/lyrebird/internal/store"
)

type Server struct {
	store  *store.Store
	auth   *auth.Manager
	pipe   *pipeline.Orchestrator
	logger *zap.Logger
	mux    *http.ServeMux
}

func New(st *store.Store, am *auth.Manager, pipe *pipeline.Orchestrator, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{store: st, auth: am, pipe: pipe, logger: logger, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("POST /api/auth/signup", s.handleSignup)
	s.mux.HandleFunc("POST /api/auth/login", s.handleLogin)

	s.mux.HandleFunc("GET /api/agents", s.authed(s.handleListAgents))
	s.mux.HandleFunc("POST /api/agents", s.authed(s.handleCreateAgent))
	s.mux.HandleFunc("GET /api/agents/{id}", s.authed(s.handleGetAgent))
	s.mux.HandleFunc("PUT /api/agents/{id}", s.authed(s.handleUpdateAgent))
	s.mux.HandleFunc("DELETE /api/agents/{id}", s.authed(s.handleDeleteAgent))

	s.mux.HandleFunc("GET /api/skills", s.authed(s.handleListSkills))
	s.mux.HandleFunc("POST /api/skills", s.authed(s.handleCreateSkill))
	s.mux.HandleFunc("GET /api/skills/{id}", s.authed(s.handleGetSkill))
	s.mux.HandleFunc("PUT /api/skills/{id}", s.authed(s.handleUpdateSkill))
	s.mux.HandleFunc("DELETE /api/skills/{id}", s.authed(s.handleDeleteSkill))

	s.mux.HandleFunc("POST /api/voice/chat", s.authed(s.handleVoiceChat))
	s.mux.HandleFunc("POST /api/voice/chat/text", s.authed(s.handleVoiceChatText))
	s.mux.HandleFunc("POST /api/voice/speak", s.authed(s.handleSpeak))
	s.mux.HandleFunc("GET /api/voice-preview/{voice_id}", s.handleVoicePreview)

	s.mux.HandleFunc("GET /api/ws/voice/{agent_id}", s.handleVoiceWS)

	s.mux.Handle("GET /metrics", promhttp.Handler())
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

type ctxKey int

const userIDKey ctxKey = 0

// authed verifies the bearer token and stashes the user id in the request
// context.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		header := r.Header.Get("Authorization")
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			writeError(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		userID, err := s.auth.VerifyToken(header[len(prefix):])
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userIDKey, userID)))
	}
}

func requestUserID(r *http.Request) string {
	userID, _ := r.Context().Value(userIDKey).(string)
	return userID
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writePipelineError maps the error taxonomy onto HTTP statuses: empty
// transcripts are the caller's problem, unknown agents are 404, everything
// upstream or misconfigured is a server-side failure.
func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	if errors.Is(err, fault.ErrEmptyTranscript) {
		writeError(w, http.StatusBadRequest, "Could not transcribe audio")
		return
	}
	var validation *fault.ValidationError
	if errors.As(err, &validation) {
		writeError(w, http.StatusNotFound, validation.Reason)
		return
	}
	s.logger.Error("voice processing failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "Voice processing failed: "+err.Error())
}
