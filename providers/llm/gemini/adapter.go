// Package gemini generates replies with Google Gemini. Two variants are
// registered: 1.5 Flash and the 2.0 Flash experimental model.
package gemini

import (
	"context"
	"fmt"
	"time"

	"github.com/lyrebird-labs/lyrebird/internal/fault"
	"github.com/lyrebird-labs/lyrebird/internal/provider/contracts"
	"github.com/lyrebird-labs/lyrebird/providers/common/httpclient"
)

const ProviderID = "llm-gemini"

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	ModelFlash15 = "gemini-1.5-flash"
	ModelFlash20 = "gemini-2.0-flash-exp"
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
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
	if cfg.Model == "" {
		cfg.Model = ModelFlash15
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
		return "", fault.NewConfigError(ProviderID, "GEMINI_API_KEY")
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	// Gemini has no separate system role on this endpoint; the composed
	// prompt rides in front of the user text in a single part.
	payload := map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{
				{"text": fmt.Sprintf("System: %s\n\nUser: %s", req.Prompt, req.UserText)},
			}},
		},
		"generationConfig": map[string]any{
			"maxOutputTokens": contracts.MaxOutputTokens,
			"temperature":     req.Temperature,
		},
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", a.cfg.BaseURL, a.cfg.Model, a.cfg.APIKey)

	var out struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := a.client.DoJSON(ctx, url, nil, payload, &out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", &fault.UpstreamError{Provider: ProviderID, Detail: "response carried no candidates"}
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

var _ contracts.Generator = (*Adapter)(nil)
