// Package elevenlabs synthesizes speech with ElevenLabs, the premium
// low-latency synthesis variant.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lyrebird-labs/lyrebird/internal/fault"
	"github.com/lyrebird-labs/lyrebird/internal/provider/contracts"
	"github.com/lyrebird-labs/lyrebird/providers/common/httpclient"
)

const ProviderID = "tts-elevenlabs"

const (
	defaultBaseURL = "https://api.elevenlabs.io"
	defaultVoiceID = "21m00Tcm4TlvDq8ikWAM"
	modelID        = "eleven_flash_v2_5"
)

type Config struct {
	APIKey  string
	BaseURL string
	VoiceID string
	Timeout time.Duration
}

type Adapter struct {
	cfg    Config
	client *httpclient.Client
}

func NewAdapter(cfg Config) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = defaultVoiceID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = contracts.SynthesisTimeout
	}
	return &Adapter{cfg: cfg, client: httpclient.New(ProviderID)}
}

func (a *Adapter) ProviderID() string {
	return ProviderID
}

// Synthesize returns MP3 bytes for the given text. An empty voice falls back
// to the configured voice ID.
func (a *Adapter) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if a.cfg.APIKey == "" {
		return nil, fault.NewConfigError(ProviderID, "ELEVENLABS_API_KEY")
	}
	if voice == "" {
		voice = a.cfg.VoiceID
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	payload := map[string]any{
		"text":     text,
		"model_id": modelID,
		"voice_settings": map[string]float64{
			"stability":        0.5,
			"similarity_boost": 0.75,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}

	return a.client.Do(ctx, httpclient.Request{
		URL: fmt.Sprintf("%s/v1/text-to-speech/%s", a.cfg.BaseURL, voice),
		Headers: map[string]string{
			"xi-api-key":   a.cfg.APIKey,
			"Content-Type": "application/json",
			"Accept":       "audio/mpeg",
		},
		Body: bytes.NewReader(body),
	})
}

var _ contracts.Synthesizer = (*Adapter)(nil)
