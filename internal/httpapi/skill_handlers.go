package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/lyrebird-labs/lyrebird/internal/store"
)

type skillRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Content     string `json:"content"`
}

type skillResponse struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Content     string    `json:"content,omitempty"`
	IsSystem    bool      `json:"is_system"`
	CreatedAt   time.Time `json:"created_at"`
}

func toSkillResponse(sk store.Skill, includeContent bool) skillResponse {
	out := skillResponse{
		ID:          sk.ID,
		UserID:      sk.UserID,
		Name:        sk.Name,
		Description: sk.Description,
		Category:    sk.Category,
		IsSystem:    sk.IsSystem,
		CreatedAt:   sk.CreatedAt,
	}
	if includeContent {
		out.Content = sk.Content
	}
	return out
}

func (s *Server) handleCreateSkill(w http.ResponseWriter, r *http.Request) {
	var req skillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "Name and content are required")
		return
	}

	skill, err := s.store.CreateSkill(r.Context(), store.Skill{
		UserID:      requestUserID(r),
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Content:     req.Content,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not create skill")
		return
	}
	writeJSON(w, http.StatusOK, toSkillResponse(skill, true))
}

// handleListSkills returns the caller's skills plus the system catalog,
// content omitted to keep the listing light.
func (s *Server) handleListSkills(w http.ResponseWriter, r *http.Request) {
	skills, err := s.store.ListSkills(r.Context(), requestUserID(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not list skills")
		return
	}
	out := make([]skillResponse, 0, len(skills))
	for _, skill := range skills {
		out = append(out, toSkillResponse(skill, false))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSkill(w http.ResponseWriter, r *http.Request) {
	skill, err := s.store.FindSkill(r.Context(), r.PathValue("id"), requestUserID(r))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSkillResponse(skill, true))
}

func (s *Server) handleUpdateSkill(w http.ResponseWriter, r *http.Request) {
	existing, err := s.store.FindSkill(r.Context(), r.PathValue("id"), requestUserID(r))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	var req skillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Name != "" {
		existing.Name = req.Name
	}
	if req.Description != "" {
		existing.Description = req.Description
	}
	if req.Category != "" {
		existing.Category = req.Category
	}
	if req.Content != "" {
		existing.Content = req.Content
	}
	existing.UserID = requestUserID(r)

	updated, err := s.store.UpdateSkill(r.Context(), existing)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSkillResponse(updated, true))
}

func (s *Server) handleDeleteSkill(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSkill(r.Context(), r.PathValue("id"), requestUserID(r)); err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Skill deleted successfully"})
}
