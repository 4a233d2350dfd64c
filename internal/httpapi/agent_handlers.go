package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/lyrebird-labs/lyrebird/internal/fault"
	"github.com/lyrebird-labs/lyrebird/internal/store"
)

// defaultVoiceID is applied when an agent is created without a voice.
const defaultVoiceID = "en-US-ChristopherNeural"

type agentRequest struct {
	Name         string   `json:"name"`
	SystemPrompt string   `json:"system_prompt"`
	STTProvider  string   `json:"stt_provider"`
	LLMProvider  string   `json:"llm_provider"`
	TTSProvider  string   `json:"tts_provider"`
	VoiceID      string   `json:"voice_id"`
	Skills       []string `json:"skills"`
}

type agentResponse struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	SystemPrompt string    `json:"system_prompt"`
	STTProvider  string    `json:"stt_provider"`
	LLMProvider  string    `json:"llm_provider"`
	TTSProvider  string    `json:"tts_provider"`
	VoiceID      string    `json:"voice_id"`
	Skills       []string  `json:"skills"`
	CreatedAt    time.Time `json:"created_at"`
}

func toAgentResponse(a store.Agent) agentResponse {
	skills := a.Skills
	if skills == nil {
		skills = []string{}
	}
	return agentResponse{
		ID:           a.ID,
		UserID:       a.UserID,
		Name:         a.Name,
		SystemPrompt: a.SystemPrompt,
		STTProvider:  a.STTProvider,
		LLMProvider:  a.LLMProvider,
		TTSProvider:  a.TTSProvider,
		VoiceID:      a.VoiceID,
		Skills:       skills,
		CreatedAt:    a.CreatedAt,
	}
}

func (s *Server) handleCreateAgent(w http.ResponseWriter, r *http.Request) {
	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.SystemPrompt == "" {
		writeError(w, http.StatusBadRequest, "Name and system_prompt are required")
		return
	}
	if req.STTProvider == "" {
		req.STTProvider = "groq_whisper"
	}
	if req.LLMProvider == "" {
		req.LLMProvider = "groq"
	}
	if req.TTSProvider == "" {
		req.TTSProvider = "edge"
	}
	if req.VoiceID == "" {
		req.VoiceID = defaultVoiceID
	}

	agent, err := s.store.CreateAgent(r.Context(), store.Agent{
		UserID:       requestUserID(r),
		Name:         req.Name,
		SystemPrompt: req.SystemPrompt,
		STTProvider:  req.STTProvider,
		LLMProvider:  req.LLMProvider,
		TTSProvider:  req.TTSProvider,
		VoiceID:      req.VoiceID,
		Skills:       req.Skills,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not create agent")
		return
	}
	writeJSON(w, http.StatusOK, toAgentResponse(agent))
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.store.ListAgents(r.Context(), requestUserID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not list agents")
		return
	}
	out := make([]agentResponse, 0, len(agents))
	for _, agent := range agents {
		out = append(out, toAgentResponse(agent))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetAgent(w http.ResponseWriter, r *http.Request) {
	agent, err := s.store.FindAgent(r.Context(), r.PathValue("id"), requestUserID(r))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAgentResponse(agent))
}

func (s *Server) handleUpdateAgent(w http.ResponseWriter, r *http.Request) {
	existing, err := s.store.FindAgent(r.Context(), r.PathValue("id"), requestUserID(r))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	var req agentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.SystemPrompt != "" {
		existing.SystemPrompt = req.SystemPrompt
	}
	if req.STTProvider != "" {
		existing.STTProvider = req.STTProvider
	}
	if req.LLMProvider != "" {
		existing.LLMProvider = req.LLMProvider
	}
	if req.TTSProvider != "" {
		existing.TTSProvider = req.TTSProvider
	}
	if req.VoiceID != "" {
		existing.VoiceID = req.VoiceID
	}
	if req.Skills != nil {
		existing.Skills = req.Skills
	}

	updated, err := s.store.UpdateAgent(r.Context(), existing)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAgentResponse(updated))
}

func (s *Server) handleDeleteAgent(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteAgent(r.Context(), r.PathValue("id"), requestUserID(r)); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Agent deleted successfully"})
}

func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	var validation *fault.ValidationError
	if errors.As(err, &validation) {
		writeError(w, http.StatusNotFound, validation.Reason)
		return
	}
	writeError(w, http.StatusInternalServerError, "Storage failure")
}
