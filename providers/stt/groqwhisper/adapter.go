// Package groqwhisper transcribes audio with Groq-hosted Whisper. It is the
// primary fast transcription variant and the default STT selection.
package groqwhisper

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/lyrebird-labs/lyrebird/internal/fault"
	"github.com/lyrebird-labs/lyrebird/internal/provider/contracts"
	"github.com/lyrebird-labs/lyrebird/providers/common/httpclient"
)

const ProviderID = "stt-groq-whisper"

const defaultEndpoint = "https://api.groq.com/openai/v1/audio/transcriptions"
const defaultModel = "whisper-large-v3"

type Config struct {
	APIKey   string
	Endpoint string
	Model    string
	Timeout  time.Duration
}

type Adapter struct {
	cfg    Config
	client *httpclient.Client
}

func NewAdapter(cfg Config) *Adapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = contracts.TranscriptionTimeout
	}
	return &Adapter{cfg: cfg, client: httpclient.New(ProviderID)}
}

func (a *Adapter) ProviderID() string {
	return ProviderID
}

// Transcribe reads the full audio payload, then uploads it as one multipart
// request. Partial-buffer streaming to the provider is deliberately not done.
func (a *Adapter) Transcribe(ctx context.Context, src contracts.AudioSource) (string, error) {
	if a.cfg.APIKey == "" {
		return "", fault.NewConfigError(ProviderID, "GROQ_API_KEY")
	}

	audio, err := io.ReadAll(src)
	if err != nil {
		return "", &fault.UpstreamError{Provider: ProviderID, Detail: "read audio source", Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	var out struct {
		Text string `json:"text"`
	}
	err = a.client.DoMultipart(ctx, a.cfg.Endpoint,
		map[string]string{"Authorization": "Bearer " + a.cfg.APIKey},
		httpclient.MultipartFile{
			Field:    "file",
			Filename: src.Filename(),
			MimeType: src.MimeType(),
			Content:  audio,
		},
		map[string]string{"model": a.cfg.Model},
		&out,
	)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out.Text), nil
}

var _ contracts.Transcriber = (*Adapter)(nil)
