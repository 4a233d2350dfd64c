package pipeline

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lyrebird-labs/lyrebird/internal/fault"
	"github.com/lyrebird-labs/lyrebird/internal/observability"
	"github.com/lyrebird-labs/lyrebird/internal/provider/contracts"
)

type fakeTranscriber struct {
	text  string
	err   error
	calls int
}

func (f *fakeTranscriber) ProviderID() string { return "stt-fake" }

func (f *fakeTranscriber) Transcribe(ctx context.Context, src contracts.AudioSource) (string, error) {
	f.calls++
	return f.text, f.err
}

type fakeGenerator struct {
	reply string
	err   error
	calls int
	last  contracts.GenerateRequest
}

func (f *fakeGenerator) ProviderID() string { return "llm-fake" }

func (f *fakeGenerator) Generate(ctx context.Context, req contracts.GenerateRequest) (string, error) {
	f.calls++
	f.last = req
	return f.reply, f.err
}

type fakeSynthesizer struct {
	id        string
	audio     []byte
	err       error
	calls     int
	lastText  string
	lastVoice string
}

func (f *fakeSynthesizer) ProviderID() string { return f.id }

func (f *fakeSynthesizer) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	f.calls++
	f.lastText = text
	f.lastVoice = voice
	return f.audio, f.err
}

type fakeProviders struct {
	transcriber *fakeTranscriber
	generator   *fakeGenerator
	premium     *fakeSynthesizer
	free        *fakeSynthesizer
}

func (f *fakeProviders) Transcriber(tag string) contracts.Transcriber { return f.transcriber }

func (f *fakeProviders) Generator(tag string) contracts.Generator { return f.generator }

func (f *fakeProviders) Synthesizer(tag string) contracts.Synthesizer {
	if tag == "premium" {
		return f.premium
	}
	return f.free
}

func newFakes() *fakeProviders {
	return &fakeProviders{
		transcriber: &fakeTranscriber{text: "what is the weather"},
		generator:   &fakeGenerator{reply: "It looks **sunny** today."},
		premium:     &fakeSynthesizer{id: "tts-premium", audio: []byte("premium-mp3")},
		free:        &fakeSynthesizer{id: "tts-free", audio: []byte("free-mp3")},
	}
}

func profile(tts string) AgentProfile {
	return AgentProfile{
		ID:    "agent-1",
		Name:  "Weather Bot",
		Role:  "You are a technical weather assistant.",
		STT:   "groq_whisper",
		LLM:   "groq",
		TTS:   tts,
		Voice: "custom-voice",
	}
}

func TestRunFullExchange(t *testing.T) {
	t.Parallel()

	fakes := newFakes()
	recorder := &observability.MemoryRecorder{}
	o := New(fakes, nil, recorder, FallbackPolicy{Synthesis: "free"})

	result, err := o.Run(context.Background(), NewTrace("s1"), profile("free"), []byte("audio"), "audio/webm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Transcript != "what is the weather" {
		t.Fatalf("unexpected transcript: %q", result.Transcript)
	}
	if result.Reply != "It looks **sunny** today." {
		t.Fatalf("unexpected reply: %q", result.Reply)
	}
	if result.CleanReply != "It looks sunny today." {
		t.Fatalf("expected sanitized reply, got %q", result.CleanReply)
	}
	if string(result.Audio) != "free-mp3" {
		t.Fatalf("unexpected audio: %q", result.Audio)
	}
	if fakes.free.lastText != "It looks sunny today." {
		t.Fatalf("synthesizer received unsanitized text: %q", fakes.free.lastText)
	}
	if fakes.free.lastVoice != "custom-voice" {
		t.Fatalf("expected agent voice, got %q", fakes.free.lastVoice)
	}

	events := recorder.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 stage events, got %d", len(events))
	}
	if events[0].Stage != StageTranscribe || events[1].Stage != StageGenerate || events[2].Stage != StageSynthesize {
		t.Fatalf("stages out of order: %+v", events)
	}
}

func TestRunComposedPrompt(t *testing.T) {
	t.Parallel()

	fakes := newFakes()
	o := New(fakes, nil, nil, FallbackPolicy{})

	if _, err := o.Run(context.Background(), NewTrace("s1"), profile("free"), []byte("audio"), "audio/webm"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(fakes.generator.last.Prompt, "You are a technical weather assistant.") {
		t.Fatalf("role text missing from composed prompt")
	}
	if fakes.generator.last.UserText != "what is the weather" {
		t.Fatalf("unexpected user text: %q", fakes.generator.last.UserText)
	}
	if fakes.generator.last.Temperature != 0.6 {
		t.Fatalf("expected precision temperature, got %v", fakes.generator.last.Temperature)
	}
}

func TestRunEmptyTranscriptAbortsPipeline(t *testing.T) {
	t.Parallel()

	fakes := newFakes()
	fakes.transcriber.text = "   "
	o := New(fakes, nil, nil, FallbackPolicy{})

	_, err := o.Run(context.Background(), NewTrace("s1"), profile("free"), []byte("audio"), "audio/webm")

	var stageErr *fault.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageTranscribe {
		t.Fatalf("expected transcribe stage error, got %v", err)
	}
	if !errors.Is(err, fault.ErrEmptyTranscript) {
		t.Fatalf("expected ErrEmptyTranscript, got %v", err)
	}
	if fakes.generator.calls != 0 {
		t.Fatal("generator must not run after empty transcript")
	}
	if fakes.premium.calls+fakes.free.calls != 0 {
		t.Fatal("synthesizer must not run after empty transcript")
	}
}

func TestSpeakFallbackOnce(t *testing.T) {
	t.Parallel()

	fakes := newFakes()
	fakes.premium.err = errors.New("quota exceeded")
	o := New(fakes, nil, nil, FallbackPolicy{Synthesis: "free"})

	clean, audio, err := o.Speak(context.Background(), NewTrace("s1"), profile("premium"), "Hello **there**.")
	if err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}
	if string(audio) != "free-mp3" {
		t.Fatalf("unexpected audio: %q", audio)
	}
	if clean != "Hello there." {
		t.Fatalf("unexpected clean text: %q", clean)
	}
	if fakes.premium.calls != 1 || fakes.free.calls != 1 {
		t.Fatalf("expected one call each, got premium=%d free=%d", fakes.premium.calls, fakes.free.calls)
	}
	if fakes.free.lastText != fakes.premium.lastText {
		t.Fatal("fallback must receive the same sanitized text")
	}
	if fakes.free.lastVoice != "" {
		t.Fatalf("fallback must not carry the voice override, got %q", fakes.free.lastVoice)
	}
}

func TestSpeakNoFallbackWhenDefaultSelected(t *testing.T) {
	t.Parallel()

	fakes := newFakes()
	fakes.free.err = errors.New("service down")
	o := New(fakes, nil, nil, FallbackPolicy{Synthesis: "free"})

	_, _, err := o.Speak(context.Background(), NewTrace("s1"), profile("free"), "Hello.")

	var stageErr *fault.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageSynthesize {
		t.Fatalf("expected synthesize stage error, got %v", err)
	}
	if fakes.free.calls != 1 {
		t.Fatalf("default variant must not be retried, got %d calls", fakes.free.calls)
	}
	if fakes.premium.calls != 0 {
		t.Fatal("premium variant must not be tried as a fallback")
	}
}

func TestSpeakFallbackFailureSurfaces(t *testing.T) {
	t.Parallel()

	fakes := newFakes()
	fakes.premium.err = errors.New("quota exceeded")
	fakes.free.err = errors.New("also down")
	o := New(fakes, nil, nil, FallbackPolicy{Synthesis: "free"})

	_, _, err := o.Speak(context.Background(), NewTrace("s1"), profile("premium"), "Hello.")

	var stageErr *fault.StageError
	if !errors.As(err, &stageErr) {
		t.Fatalf("expected stage error, got %v", err)
	}
	if fakes.premium.calls != 1 || fakes.free.calls != 1 {
		t.Fatalf("expected exactly one attempt each, got premium=%d free=%d", fakes.premium.calls, fakes.free.calls)
	}
}

func TestRespondGenerationFailure(t *testing.T) {
	t.Parallel()

	fakes := newFakes()
	fakes.generator.err = &fault.UpstreamError{Provider: "llm-fake", Status: 500}
	o := New(fakes, nil, nil, FallbackPolicy{})

	_, err := o.Respond(context.Background(), NewTrace("s1"), profile("free"), "hello")

	var stageErr *fault.StageError
	if !errors.As(err, &stageErr) || stageErr.Stage != StageGenerate {
		t.Fatalf("expected generate stage error, got %v", err)
	}
	var upstream *fault.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected cause preserved, got %v", err)
	}
}

type fakeSkills struct {
	fragments []string
	lastIDs   []string
	lastOwner string
}

func (f *fakeSkills) SkillFragments(ctx context.Context, ids []string, ownerID string) ([]string, error) {
	f.lastIDs = ids
	f.lastOwner = ownerID
	return f.fragments, nil
}

func TestRespondUsesSkillFragments(t *testing.T) {
	t.Parallel()

	fakes := newFakes()
	skills := &fakeSkills{fragments: []string{"Always greet in French."}}
	o := New(fakes, skills, nil, FallbackPolicy{})

	p := profile("free")
	p.OwnerID = "user-9"
	p.SkillIDs = []string{"skill-1"}

	if _, err := o.Respond(context.Background(), NewTrace("s1"), p, "bonjour"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if skills.lastOwner != "user-9" || len(skills.lastIDs) != 1 {
		t.Fatalf("skill lookup not scoped to owner: ids=%v owner=%q", skills.lastIDs, skills.lastOwner)
	}
	if !strings.Contains(fakes.generator.last.Prompt, "Always greet in French.") {
		t.Fatal("skill fragment missing from composed prompt")
	}
}
