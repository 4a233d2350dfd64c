// Package session drives the streaming voice protocol for one websocket
// connection. The session authenticates first, binds one agent, then loops on
// inbound messages, running the pipeline stage by stage so the client sees
// progress while each stage works.
package session

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lyrebird-labs/lyrebird/api/protocol"
	"github.com/lyrebird-labs/lyrebird/internal/pipeline"
	"github.com/lyrebird-labs/lyrebird/internal/provider/contracts"
)

// State of the protocol machine. The transient states exist only while one
// audio message is being serviced; the session always returns to
// StateAuthenticated when servicing ends, success or not.
type State string

const (
	StateConnected      State = "CONNECTED"
	StateAuthenticated  State = "AUTHENTICATED"
	StateTranscribing   State = "TRANSCRIBING"
	StateResponding     State = "RESPONDING"
	StateSynthesizing   State = "SYNTHESIZING"
	StateStreamingAudio State = "STREAMING_AUDIO"
	StateClosed         State = "CLOSED"
)

// Conn is the narrow connection surface the session needs. The websocket
// adapter implements it; tests substitute an in-memory fake.
type Conn interface {
	ReadEnvelope(ctx context.Context) (protocol.Envelope, error)
	WriteEnvelope(ctx context.Context, env protocol.Envelope) error
	Close() error
}

// TokenVerifier resolves a bearer token to a user id.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// AgentSource resolves the bound agent, scoped to the verified identity.
type AgentSource interface {
	AgentProfile(ctx context.Context, agentID, ownerID string) (pipeline.AgentProfile, error)
}

// Pipeline is the decomposed orchestrator surface the session drives.
type Pipeline interface {
	Transcribe(ctx context.Context, trace pipeline.Trace, profile pipeline.AgentProfile, src contracts.AudioSource) (string, error)
	Respond(ctx context.Context, trace pipeline.Trace, profile pipeline.AgentProfile, userText string) (string, error)
	Speak(ctx context.Context, trace pipeline.Trace, profile pipeline.AgentProfile, reply string) (string, []byte, error)
}

type Session struct {
	id       string
	agentID  string
	conn     Conn
	verifier TokenVerifier
	agents   AgentSource
	pipe     Pipeline
	logger   *zap.Logger

	state   State
	profile pipeline.AgentProfile
}

func New(conn Conn, agentID string, verifier TokenVerifier, agents AgentSource, pipe Pipeline, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	return &Session{
		id:       id,
		agentID:  agentID,
		conn:     conn,
		verifier: verifier,
		agents:   agents,
		pipe:     pipe,
		logger:   logger.With(zap.String("session_id", id), zap.String("agent_id", agentID)),
		state:    StateConnected,
	}
}

func (s *Session) State() State {
	return s.state
}

// Run services the connection until the client disconnects or the handshake
// fails. Closing the connection is attempted on every exit path and a close
// failure is swallowed.
func (s *Session) Run(ctx context.Context) {
	defer func() {
		s.state = StateClosed
		_ = s.conn.Close()
	}()

	if !s.authenticate(ctx) {
		return
	}

	for {
		env, err := s.conn.ReadEnvelope(ctx)
		if err != nil {
			s.logger.Info("client disconnected", zap.Error(err))
			return
		}
		switch env.Type {
		case protocol.TypePing:
			if err := s.conn.WriteEnvelope(ctx, protocol.Envelope{Type: protocol.TypePong}); err != nil {
				return
			}
		case protocol.TypeAudio:
			if !s.handleAudio(ctx, env) {
				return
			}
		default:
			msg := protocol.Error(fmt.Sprintf("Unknown message type: %s", env.Type))
			if err := s.conn.WriteEnvelope(ctx, msg); err != nil {
				return
			}
		}
	}
}

// authenticate consumes exactly one message. Anything other than a valid auth
// message bound to a readable agent terminates the connection; no second
// attempt is offered.
func (s *Session) authenticate(ctx context.Context) bool {
	env, err := s.conn.ReadEnvelope(ctx)
	if err != nil {
		return false
	}
	if env.Type != protocol.TypeAuth {
		s.reject(ctx, "Authentication required")
		return false
	}
	if env.Token == "" {
		s.reject(ctx, "Token required")
		return false
	}
	userID, err := s.verifier.VerifyToken(env.Token)
	if err != nil {
		s.reject(ctx, "Invalid token")
		return false
	}
	profile, err := s.agents.AgentProfile(ctx, s.agentID, userID)
	if err != nil {
		s.reject(ctx, "Agent not found")
		return false
	}
	s.profile = profile

	ack := protocol.Envelope{
		Type:      protocol.TypeAuth,
		Status:    protocol.AuthStatusSuccess,
		AgentName: profile.Name,
	}
	if err := s.conn.WriteEnvelope(ctx, ack); err != nil {
		return false
	}
	s.state = StateAuthenticated
	s.logger.Info("session authenticated", zap.String("agent_name", profile.Name))
	return true
}

func (s *Session) reject(ctx context.Context, message string) {
	_ = s.conn.WriteEnvelope(ctx, protocol.Error(message))
}

// handleAudio services one audio message end to end. A processing failure is
// reported in-band and the session stays open; only a write failure (dead
// connection) returns false.
func (s *Session) handleAudio(ctx context.Context, env protocol.Envelope) (alive bool) {
	defer func() { s.state = StateAuthenticated }()

	if env.Data == "" {
		return s.reportItemError(ctx, "No audio data")
	}
	audio, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return s.reportItemError(ctx, fmt.Sprintf("Processing failed: %v", err))
	}

	trace := pipeline.NewTrace(s.id)

	s.state = StateTranscribing
	if err := s.conn.WriteEnvelope(ctx, protocol.StatusNotice("Transcribing...")); err != nil {
		return false
	}
	transcript, err := s.pipe.Transcribe(ctx, trace, s.profile, contracts.NewBytesSource(audio, "recording.wav", "audio/wav"))
	if err != nil {
		return s.reportItemError(ctx, fmt.Sprintf("Processing failed: %v", err))
	}
	if err := s.conn.WriteEnvelope(ctx, protocol.Envelope{Type: protocol.TypeTranscript, Text: transcript}); err != nil {
		return false
	}

	s.state = StateResponding
	if err := s.conn.WriteEnvelope(ctx, protocol.StatusNotice("Thinking...")); err != nil {
		return false
	}
	reply, err := s.pipe.Respond(ctx, trace, s.profile, transcript)
	if err != nil {
		return s.reportItemError(ctx, fmt.Sprintf("Processing failed: %v", err))
	}
	if err := s.conn.WriteEnvelope(ctx, protocol.Envelope{Type: protocol.TypeResponse, Text: reply}); err != nil {
		return false
	}

	s.state = StateSynthesizing
	if err := s.conn.WriteEnvelope(ctx, protocol.StatusNotice("Synthesizing...")); err != nil {
		return false
	}
	_, synthesized, err := s.pipe.Speak(ctx, trace, s.profile, reply)
	if err != nil {
		return s.reportItemError(ctx, fmt.Sprintf("Processing failed: %v", err))
	}

	s.state = StateStreamingAudio
	return s.streamAudio(ctx, synthesized)
}

// streamAudio delivers the synthesized bytes as fixed-size chunks followed by
// a completion event carrying the total byte count.
func (s *Session) streamAudio(ctx context.Context, audio []byte) bool {
	total := protocol.TotalChunks(len(audio))
	for i := 0; i < total; i++ {
		index := i
		env := protocol.Envelope{
			Type:        protocol.TypeAudioChunk,
			Data:        base64.StdEncoding.EncodeToString(protocol.Chunk(audio, i)),
			ChunkIndex:  &index,
			TotalChunks: &total,
		}
		if err := s.conn.WriteEnvelope(ctx, env); err != nil {
			return false
		}
	}
	totalBytes := len(audio)
	done := protocol.Envelope{Type: protocol.TypeAudioComplete, TotalBytes: &totalBytes}
	if err := s.conn.WriteEnvelope(ctx, done); err != nil {
		return false
	}
	s.logger.Info("audio streamed", zap.Int("bytes", totalBytes), zap.Int("chunks", total))
	return true
}

func (s *Session) reportItemError(ctx context.Context, message string) bool {
	s.logger.Warn("audio item failed", zap.String("reason", message))
	return s.conn.WriteEnvelope(ctx, protocol.Error(message)) == nil
}
