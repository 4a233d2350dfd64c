// Package polly synthesizes speech with Amazon Polly, the premium AWS-backed
// synthesis variant. Credentials come from the ambient AWS config chain.
package polly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"

	"github.com/lyrebird-labs/lyrebird/internal/fault"
	"github.com/lyrebird-labs/lyrebird/internal/provider/contracts"
)

const ProviderID = "tts-amazon-polly"

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

type Config struct {
	Region  string
	VoiceID string
	Engine  string
	Timeout time.Duration
}

type Adapter struct {
	mu     sync.Mutex
	client synthClient
	cfg    Config
}

func NewAdapter(cfg Config) *Adapter {
	return NewAdapterWithClient(cfg, nil)
}

func NewAdapterWithClient(cfg Config, client synthClient) *Adapter {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}
	if strings.TrimSpace(cfg.VoiceID) == "" {
		cfg.VoiceID = "Joanna"
	}
	if strings.TrimSpace(cfg.Engine) == "" {
		cfg.Engine = "neural"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = contracts.SynthesisTimeout
	}
	return &Adapter{client: client, cfg: cfg}
}

func (a *Adapter) ProviderID() string {
	return ProviderID
}

func (a *Adapter) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	client, err := a.resolveClient()
	if err != nil {
		return nil, err
	}

	if voice == "" {
		voice = a.cfg.VoiceID
	}
	engine := pollytypes.EngineStandard
	if strings.EqualFold(a.cfg.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	output, err := client.SynthesizeSpeech(ctx, &polly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatMp3,
		Text:         &text,
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(voice),
	})
	if err != nil {
		return nil, normalizePollyError(err)
	}
	if output == nil || output.AudioStream == nil {
		return nil, &fault.UpstreamError{Provider: ProviderID, Detail: "response carried no audio stream"}
	}
	defer output.AudioStream.Close()

	audio, err := io.ReadAll(output.AudioStream)
	if err != nil {
		return nil, &fault.UpstreamError{Provider: ProviderID, Detail: "read audio stream", Cause: err}
	}
	return audio, nil
}

func normalizePollyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &fault.UpstreamError{Provider: ProviderID, Timeout: true, Detail: "synthesis deadline exceeded", Cause: err}
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "UnrecognizedClientException", "InvalidSignatureException", "AccessDeniedException":
			return fault.NewConfigError(ProviderID, "AWS credentials")
		default:
			return &fault.UpstreamError{
				Provider: ProviderID,
				Detail:   fmt.Sprintf("%s: %s", apiErr.ErrorCode(), apiErr.ErrorMessage()),
				Cause:    err,
			}
		}
	}

	return &fault.UpstreamError{Provider: ProviderID, Detail: "transport failure", Cause: err}
}

func (a *Adapter) resolveClient() (synthClient, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.client != nil {
		return a.client, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(a.cfg.Region))
	if err != nil {
		return nil, fault.NewConfigError(ProviderID, "AWS credentials")
	}
	a.client = polly.NewFromConfig(awsCfg)
	return a.client, nil
}

var _ contracts.Synthesizer = (*Adapter)(nil)
