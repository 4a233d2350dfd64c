// Package groq generates replies with Groq-hosted Llama models. Two variants
// are registered: the versatile 70B default and the low-latency 8B instant
// model. Each fixes its upstream model name and the shared 200-token cap.
package groq

import (
	"context"
	"time"

	"github.com/lyrebird-labs/lyrebird/internal/fault"
	"github.com/lyrebird-labs/lyrebird/internal/provider/contracts"
	"github.com/lyrebird-labs/lyrebird/providers/common/httpclient"
)

const ProviderID = "llm-groq"

const (
	defaultEndpoint = "https://api.groq.com/openai/v1/chat/completions"

	// Upstream model names per variant.
	ModelVersatile = "llama-3.3-70b-versatile"
	ModelInstant   = "llama-3.1-8b-instant"
)

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
		cfg.Model = ModelVersatile
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = contracts.GenerationTimeout
	}
	return &Adapter{cfg: cfg, client: httpclient.New(ProviderID)}
}

func (a *Adapter) ProviderID() string {
	return ProviderID
}

func (a *Adapter) Generate(ctx context.Context, req contracts.GenerateRequest) (string, error) {
	if a.cfg.APIKey == "" {
		return "", fault.NewConfigError(ProviderID, "GROQ_API_KEY")
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	payload := map[string]any{
		"model": a.cfg.Model,
		"messages": []map[string]string{
			{"role": "system", "content": req.Prompt},
			{"role": "user", "content": req.UserText},
		},
		"max_tokens":  contracts.MaxOutputTokens,
		"temperature": req.Temperature,
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	err := a.client.DoJSON(ctx, a.cfg.Endpoint,
		map[string]string{"Authorization": "Bearer " + a.cfg.APIKey},
		payload, &out)
	if err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", &fault.UpstreamError{Provider: ProviderID, Detail: "response carried no choices"}
	}
	return out.Choices[0].Message.Content, nil
}

var _ contracts.Generator = (*Adapter)(nil)
