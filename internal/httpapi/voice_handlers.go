package httpapi

import (
	"encoding/base64"
	"io"
	"net/http"

	"github.com/lyrebird-labs/lyrebird/internal/pipeline"
	"github.com/lyrebird-labs/lyrebird/internal/provider/contracts"
	"github.com/lyrebird-labs/lyrebird/internal/store"
)

// maxUploadBytes bounds one audio upload.
const maxUploadBytes = 32 << 20

func agentProfile(a store.Agent) pipeline.AgentProfile {
	return pipeline.AgentProfile{
		ID:       a.ID,
		OwnerID:  a.UserID,
		Name:     a.Name,
		Role:     a.SystemPrompt,
		STT:      a.STTProvider,
		LLM:      a.LLMProvider,
		TTS:      a.TTSProvider,
		Voice:    a.VoiceID,
		SkillIDs: a.Skills,
	}
}

func (s *Server) readAudioUpload(w http.ResponseWriter, r *http.Request) ([]byte, string, bool) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Audio file is required")
		return nil, "", false
	}
	file, header, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Audio file is required")
		return nil, "", false
	}
	defer file.Close()
	audio, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Could not read audio file")
		return nil, "", false
	}
	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	return audio, mimeType, true
}

func (s *Server) boundAgent(w http.ResponseWriter, r *http.Request) (store.Agent, bool) {
	agentID := r.URL.Query().Get("agent_id")
	if agentID == "" {
		writeError(w, http.StatusBadRequest, "agent_id is required")
		return store.Agent{}, false
	}
	agent, err := s.store.FindAgent(r.Context(), agentID, requestUserID(r))
	if err != nil {
		s.writeStoreError(w, err)
		return store.Agent{}, false
	}
	return agent, true
}

// handleVoiceChat runs the full exchange and returns the reply audio base64
// encoded alongside both transcripts, so the client can show captions.
func (s *Server) handleVoiceChat(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.boundAgent(w, r)
	if !ok {
		return
	}
	audio, mimeType, ok := s.readAudioUpload(w, r)
	if !ok {
		return
	}

	result, err := s.pipe.Run(r.Context(), pipeline.NewTrace(""), agentProfile(agent), audio, mimeType)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"audio_base64":   base64.StdEncoding.EncodeToString(result.Audio),
		"audio_type":     "audio/mpeg",
		"user_text":      result.Transcript,
		"agent_response": result.Reply,
		"agent_name":     agent.Name,
	})
}

// handleVoiceChatText runs transcription and generation only.
func (s *Server) handleVoiceChatText(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.boundAgent(w, r)
	if !ok {
		return
	}
	audio, mimeType, ok := s.readAudioUpload(w, r)
	if !ok {
		return
	}

	profile := agentProfile(agent)
	trace := pipeline.NewTrace("")
	transcript, err := s.pipe.Transcribe(r.Context(), trace, profile, contracts.NewBytesSource(audio, "", mimeType))
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	reply, err := s.pipe.Respond(r.Context(), trace, profile, transcript)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"user_text":      transcript,
		"agent_response": reply,
		"agent_name":     agent.Name,
	})
}

// handleSpeak synthesizes caller-supplied text with the agent's voice,
// returning raw audio. Used to replay past messages.
func (s *Server) handleSpeak(w http.ResponseWriter, r *http.Request) {
	agent, ok := s.boundAgent(w, r)
	if !ok {
		return
	}
	text := r.URL.Query().Get("text")
	if text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	_, audio, err := s.pipe.Speak(r.Context(), pipeline.NewTrace(""), agentProfile(agent), text)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	_, _ = w.Write(audio)
}

// handleVoicePreview returns a fixed sample sentence in the requested voice
// through the free default synthesizer. No authentication: previews carry no
// user data.
func (s *Server) handleVoicePreview(w http.ResponseWriter, r *http.Request) {
	voiceID := r.PathValue("voice_id")
	profile := pipeline.AgentProfile{TTS: "edge", Voice: voiceID}

	const sampleText = "Hello! This is a sample of my voice. I'm here to help you with your tasks."
	_, audio, err := s.pipe.Speak(r.Context(), pipeline.NewTrace(""), profile, sampleText)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", "inline; filename=voice_preview_"+voiceID+".mp3")
	_, _ = w.Write(audio)
}
