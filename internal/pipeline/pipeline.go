// Package pipeline sequences one voice exchange: transcribe the user's audio,
// compose the agent prompt, generate a reply, sanitize it, and synthesize
// speech. The orchestrator is stateless per invocation; streaming sessions
// drive the decomposed stage methods so they can emit intermediate events.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lyrebird-labs/lyrebird/internal/fault"
	"github.com/lyrebird-labs/lyrebird/internal/observability"
	"github.com/lyrebird-labs/lyrebird/internal/prompt"
	"github.com/lyrebird-labs/lyrebird/internal/provider/contracts"
	"github.com/lyrebird-labs/lyrebird/internal/provider/registry"
	"github.com/lyrebird-labs/lyrebird/internal/sanitize"
)

// Stage names used in aggregated errors and telemetry.
const (
	StageTranscribe = "transcribe"
	StageGenerate   = "generate"
	StageSynthesize = "synthesize"
)

// AgentProfile is the immutable per-request view of an agent. Persistence
// owns the record; the pipeline only reads it.
type AgentProfile struct {
	ID       string
	OwnerID  string
	Name     string
	Role     string
	STT      string
	LLM      string
	TTS      string
	Voice    string
	SkillIDs []string
}

// Providers resolves user-facing tags to adapters.
type Providers interface {
	Transcriber(tag string) contracts.Transcriber
	Generator(tag string) contracts.Generator
	Synthesizer(tag string) contracts.Synthesizer
}

// SkillSource fetches skill fragment bodies by id, scoped to the owner.
type SkillSource interface {
	SkillFragments(ctx context.Context, ids []string, ownerID string) ([]string, error)
}

// NoSkills is a SkillSource for agents without persistence.
type NoSkills struct{}

func (NoSkills) SkillFragments(context.Context, []string, string) ([]string, error) {
	return nil, nil
}

// FallbackPolicy picks the synthesis variant retried when a premium call
// fails. The retry happens exactly once, with the same text and no voice
// override, and only when the primary variant differs from the fallback.
type FallbackPolicy struct {
	Synthesis string
}

func (p FallbackPolicy) synthesisTag() string {
	if p.Synthesis == "" {
		return registry.DefaultSynthesisTag
	}
	return p.Synthesis
}

// Trace identifies one exchange across stages and sinks.
type Trace struct {
	SessionID string
	RequestID string
}

func NewTrace(sessionID string) Trace {
	return Trace{SessionID: sessionID, RequestID: uuid.NewString()}
}

// Result carries every artifact of a completed exchange.
type Result struct {
	Transcript string
	Reply      string
	CleanReply string
	Audio      []byte
}

type Orchestrator struct {
	providers Providers
	skills    SkillSource
	recorder  observability.Recorder
	fallback  FallbackPolicy
}

func New(providers Providers, skills SkillSource, recorder observability.Recorder, fallback FallbackPolicy) *Orchestrator {
	if skills == nil {
		skills = NoSkills{}
	}
	if recorder == nil {
		recorder = observability.NopRecorder{}
	}
	return &Orchestrator{providers: providers, skills: skills, recorder: recorder, fallback: fallback}
}

// Run executes the full exchange. Stages are strictly sequential; the first
// failure aborts the rest and no partial result is returned.
func (o *Orchestrator) Run(ctx context.Context, trace Trace, profile AgentProfile, audio []byte, mimeType string) (Result, error) {
	transcript, err := o.Transcribe(ctx, trace, profile, contracts.NewBytesSource(audio, "", mimeType))
	if err != nil {
		return Result{}, err
	}
	reply, err := o.Respond(ctx, trace, profile, transcript)
	if err != nil {
		return Result{}, err
	}
	clean, synthesized, err := o.Speak(ctx, trace, profile, reply)
	if err != nil {
		return Result{}, err
	}
	return Result{Transcript: transcript, Reply: reply, CleanReply: clean, Audio: synthesized}, nil
}

// Transcribe converts audio to text. An empty or whitespace-only transcript
// abandons the exchange before any generation or synthesis happens.
func (o *Orchestrator) Transcribe(ctx context.Context, trace Trace, profile AgentProfile, src contracts.AudioSource) (string, error) {
	transcriber := o.providers.Transcriber(profile.STT)
	start := time.Now()
	text, err := transcriber.Transcribe(ctx, src)
	o.record(trace, StageTranscribe, transcriber.ProviderID(), start, err)
	if err != nil {
		return "", &fault.StageError{Stage: StageTranscribe, Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &fault.StageError{Stage: StageTranscribe, Err: fault.ErrEmptyTranscript}
	}
	return strings.TrimSpace(text), nil
}

// Respond composes the layered prompt and generates the agent's reply.
func (o *Orchestrator) Respond(ctx context.Context, trace Trace, profile AgentProfile, userText string) (string, error) {
	fragments, err := o.skills.SkillFragments(ctx, profile.SkillIDs, profile.OwnerID)
	if err != nil {
		return "", &fault.StageError{Stage: StageGenerate, Err: err}
	}

	generator := o.providers.Generator(profile.LLM)
	start := time.Now()
	reply, err := generator.Generate(ctx, contracts.GenerateRequest{
		Prompt:      prompt.Compose(profile.Role, fragments),
		UserText:    userText,
		Temperature: prompt.Temperature(profile.Role),
	})
	o.record(trace, StageGenerate, generator.ProviderID(), start, err)
	if err != nil {
		return "", &fault.StageError{Stage: StageGenerate, Err: err}
	}
	return reply, nil
}

// Speak sanitizes the reply and synthesizes speech, falling back once to the
// free default variant when a premium call fails.
func (o *Orchestrator) Speak(ctx context.Context, trace Trace, profile AgentProfile, reply string) (string, []byte, error) {
	clean := sanitize.Clean(reply)

	primary := o.providers.Synthesizer(profile.TTS)
	start := time.Now()
	audio, err := primary.Synthesize(ctx, clean, profile.Voice)
	o.record(trace, StageSynthesize, primary.ProviderID(), start, err)
	if err == nil {
		return clean, audio, nil
	}

	fallback := o.providers.Synthesizer(o.fallback.synthesisTag())
	if fallback.ProviderID() == primary.ProviderID() {
		return "", nil, &fault.StageError{Stage: StageSynthesize, Err: err}
	}

	start = time.Now()
	audio, fbErr := fallback.Synthesize(ctx, clean, "")
	o.record(trace, StageSynthesize, fallback.ProviderID(), start, fbErr)
	if fbErr != nil {
		return "", nil, &fault.StageError{Stage: StageSynthesize, Err: fbErr}
	}
	return clean, audio, nil
}

func (o *Orchestrator) record(trace Trace, stage, provider string, start time.Time, err error) {
	o.recorder.Record(observability.StageEvent{
		SessionID: trace.SessionID,
		RequestID: trace.RequestID,
		Stage:     stage,
		Provider:  provider,
		Duration:  time.Since(start),
		Err:       err,
	})
}
