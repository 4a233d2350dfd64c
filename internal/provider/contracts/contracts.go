// Package contracts defines the capability interfaces every provider adapter
// implements, plus the byte-source abstraction shared by the HTTP upload and
// in-memory streaming paths.
package contracts

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"
)

// Capability identifies the provider families the pipeline invokes.
type Capability string

const (
	CapabilitySTT Capability = "stt"
	CapabilityLLM Capability = "llm"
	CapabilityTTS Capability = "tts"
)

// Validate enforces supported capability values.
func (c Capability) Validate() error {
	switch c {
	case CapabilitySTT, CapabilityLLM, CapabilityTTS:
		return nil
	default:
		return fmt.Errorf("unsupported capability: %q", c)
	}
}

// Fixed per-capability call timeouts. Adapters enforce these themselves so
// a stalled provider call stalls only its own session.
const (
	GenerationTimeout    = 30 * time.Second
	TranscriptionTimeout = 60 * time.Second
	SynthesisTimeout     = 60 * time.Second
)

// MaxOutputTokens caps generated reply length across all LLM variants.
const MaxOutputTokens = 200

// AudioSource is a readable byte source carrying filename and mime metadata.
// Both the multipart upload path and the in-memory streaming path implement
// it, so transcription adapters see one shape.
type AudioSource interface {
	io.Reader
	Filename() string
	MimeType() string
}

// Transcriber converts spoken audio to text. Implementations read the full
// source before invoking the remote call.
type Transcriber interface {
	ProviderID() string
	Transcribe(ctx context.Context, src AudioSource) (string, error)
}

// GenerateRequest carries one composed generation call.
type GenerateRequest struct {
	Prompt      string
	UserText    string
	Temperature float64
}

// Generator produces a reply for a composed prompt and user utterance.
type Generator interface {
	ProviderID() string
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// Synthesizer converts text to audio bytes for the given voice.
type Synthesizer interface {
	ProviderID() string
	Synthesize(ctx context.Context, text, voiceID string) ([]byte, error)
}

// BytesSource is an in-memory AudioSource.
type BytesSource struct {
	reader   *bytes.Reader
	filename string
	mimeType string
}

// NewBytesSource wraps raw audio bytes with filename/mime metadata.
func NewBytesSource(audio []byte, filename, mimeType string) *BytesSource {
	if filename == "" {
		filename = "audio.webm"
	}
	if mimeType == "" {
		mimeType = "audio/webm"
	}
	return &BytesSource{reader: bytes.NewReader(audio), filename: filename, mimeType: mimeType}
}

func (s *BytesSource) Read(p []byte) (int, error) {
	return s.reader.Read(p)
}

func (s *BytesSource) Filename() string {
	return s.filename
}

func (s *BytesSource) MimeType() string {
	return s.mimeType
}

// ReaderSource adapts any reader (an HTTP upload part, typically) into an
// AudioSource.
type ReaderSource struct {
	R    io.Reader
	Name string
	Mime string
}

func (s ReaderSource) Read(p []byte) (int, error) {
	return s.R.Read(p)
}

func (s ReaderSource) Filename() string {
	if s.Name == "" {
		return "audio.webm"
	}
	return s.Name
}

func (s ReaderSource) MimeType() string {
	if s.Mime == "" {
		return "audio/webm"
	}
	return s.Mime
}
