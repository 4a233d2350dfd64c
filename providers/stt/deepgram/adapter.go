// Package deepgram transcribes audio with Deepgram, the real-time-capable
// transcription variant.
package deepgram

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"time"

	"github.com/lyrebird-labs/lyrebird/internal/fault"
	"github.com/lyrebird-labs/lyrebird/internal/provider/contracts"
	"github.com/lyrebird-labs/lyrebird/providers/common/httpclient"
)

const ProviderID = "stt-deepgram"

const defaultEndpoint = "https://api.deepgram.com/v1/listen?model=nova-2&smart_format=true"

type Config struct {
	APIKey   string
	Endpoint string
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
	if cfg.Timeout <= 0 {
		cfg.Timeout = contracts.TranscriptionTimeout
	}
	return &Adapter{cfg: cfg, client: httpclient.New(ProviderID)}
}

func (a *Adapter) ProviderID() string {
	return ProviderID
}

func (a *Adapter) Transcribe(ctx context.Context, src contracts.AudioSource) (string, error) {
	if a.cfg.APIKey == "" {
		return "", fault.NewConfigError(ProviderID, "DEEPGRAM_API_KEY")
	}

	audio, err := io.ReadAll(src)
	if err != nil {
		return "", &fault.UpstreamError{Provider: ProviderID, Detail: "read audio source", Cause: err}
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	raw, err := a.client.Do(ctx, httpclient.Request{
		URL: a.cfg.Endpoint,
		Headers: map[string]string{
			"Authorization": "Token " + a.cfg.APIKey,
			"Content-Type":  src.MimeType(),
		},
		Body: bytes.NewReader(audio),
	})
	if err != nil {
		return "", err
	}
	return parseTranscript(raw)
}

func parseTranscript(raw []byte) (string, error) {
	var out struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &fault.UpstreamError{Provider: ProviderID, Detail: "malformed response body", Cause: err}
	}
	if len(out.Results.Channels) == 0 || len(out.Results.Channels[0].Alternatives) == 0 {
		return "", &fault.UpstreamError{Provider: ProviderID, Detail: "response carried no transcript alternatives"}
	}
	return out.Results.Channels[0].Alternatives[0].Transcript, nil
}

var _ contracts.Transcriber = (*Adapter)(nil)
