// Package registry resolves user-facing provider tags to concrete adapters.
// Lookups never fail: an unknown or empty tag resolves to the capability's
// default so a stale client request still reaches a working provider.
package registry

import (
	"github.com/lyrebird-labs/lyrebird/internal/provider/contracts"
	"github.com/lyrebird-labs/lyrebird/providers/llm/gemini"
	"github.com/lyrebird-labs/lyrebird/providers/llm/groq"
	"github.com/lyrebird-labs/lyrebird/providers/stt/deepgram"
	"github.com/lyrebird-labs/lyrebird/providers/stt/groqwhisper"
	"github.com/lyrebird-labs/lyrebird/providers/tts/edge"
	"github.com/lyrebird-labs/lyrebird/providers/tts/elevenlabs"
	"github.com/lyrebird-labs/lyrebird/providers/tts/polly"
)

// Default tag per capability.
const (
	DefaultTranscriptionTag = "groq_whisper"
	DefaultGenerationTag    = "groq"
	DefaultSynthesisTag     = "edge"
)

// Credentials holds every upstream secret the adapters may need. Adapters
// missing their credential are still registered; they surface a ConfigError
// at call time rather than at startup.
type Credentials struct {
	GroqAPIKey       string
	DeepgramAPIKey   string
	GeminiAPIKey     string
	ElevenLabsAPIKey string
	AWSRegion        string
}

type Registry struct {
	transcribers map[string]contracts.Transcriber
	generators   map[string]contracts.Generator
	synthesizers map[string]contracts.Synthesizer
}

func New(creds Credentials) *Registry {
	r := &Registry{
		transcribers: map[string]contracts.Transcriber{},
		generators:   map[string]contracts.Generator{},
		synthesizers: map[string]contracts.Synthesizer{},
	}

	r.transcribers[DefaultTranscriptionTag] = groqwhisper.NewAdapter(groqwhisper.Config{APIKey: creds.GroqAPIKey})
	r.transcribers["whisper"] = r.transcribers[DefaultTranscriptionTag]
	r.transcribers["deepgram"] = deepgram.NewAdapter(deepgram.Config{APIKey: creds.DeepgramAPIKey})

	r.generators[DefaultGenerationTag] = groq.NewAdapter(groq.Config{APIKey: creds.GroqAPIKey, Model: groq.ModelVersatile})
	r.generators["groq_instant"] = groq.NewAdapter(groq.Config{APIKey: creds.GroqAPIKey, Model: groq.ModelInstant})
	r.generators["gemini"] = gemini.NewAdapter(gemini.Config{APIKey: creds.GeminiAPIKey, Model: gemini.ModelFlash15})
	r.generators["gemini_2"] = gemini.NewAdapter(gemini.Config{APIKey: creds.GeminiAPIKey, Model: gemini.ModelFlash20})
	// Historical tags from earlier clients land on the default stack.
	r.generators["openai"] = r.generators[DefaultGenerationTag]
	r.generators["anthropic"] = r.generators[DefaultGenerationTag]

	r.synthesizers[DefaultSynthesisTag] = edge.NewAdapter(edge.Config{})
	r.synthesizers["elevenlabs"] = elevenlabs.NewAdapter(elevenlabs.Config{APIKey: creds.ElevenLabsAPIKey})
	r.synthesizers["polly"] = polly.NewAdapter(polly.Config{Region: creds.AWSRegion})
	r.synthesizers["openai_tts"] = r.synthesizers[DefaultSynthesisTag]

	return r
}

// RegisterTranscriber installs or replaces the adapter behind a tag.
func (r *Registry) RegisterTranscriber(tag string, t contracts.Transcriber) {
	r.transcribers[tag] = t
}

func (r *Registry) RegisterGenerator(tag string, g contracts.Generator) {
	r.generators[tag] = g
}

func (r *Registry) RegisterSynthesizer(tag string, s contracts.Synthesizer) {
	r.synthesizers[tag] = s
}

func (r *Registry) Transcriber(tag string) contracts.Transcriber {
	if t, ok := r.transcribers[tag]; ok {
		return t
	}
	return r.transcribers[DefaultTranscriptionTag]
}

func (r *Registry) Generator(tag string) contracts.Generator {
	if g, ok := r.generators[tag]; ok {
		return g
	}
	return r.generators[DefaultGenerationTag]
}

func (r *Registry) Synthesizer(tag string) contracts.Synthesizer {
	if s, ok := r.synthesizers[tag]; ok {
		return s
	}
	return r.synthesizers[DefaultSynthesisTag]
}
