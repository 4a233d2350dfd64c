// Package edge synthesizes speech through the Microsoft Edge read-aloud
// service. It needs no credential, which makes it the synthesis provider of
// last resort: premium adapters fall back here when their own call fails.
package edge

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/lyrebird-labs/lyrebird/internal/fault"
	"github.com/lyrebird-labs/lyrebird/internal/provider/contracts"
)

const ProviderID = "tts-edge"

const (
	defaultEndpoint = "wss://speech.platform.bing.com/consumer/speech/synthesize/readaloud/edge/v1" +
		"?TrustedClientToken=6A5AA1D4EAFF4E9FB37E23D68491D6F4"
	defaultVoice = "en-US-ChristopherNeural"
	outputFormat = "audio-24khz-48kbitrate-mono-mp3"
)

// speechConfig is sent once per connection before any SSML.
const speechConfig = `{"context":{"synthesis":{"audio":{"metadataoptions":` +
	`{"sentenceBoundaryEnabled":"false","wordBoundaryEnabled":"false"},` +
	`"outputFormat":"` + outputFormat + `"}}}}`

type Config struct {
	Endpoint string
	Voice    string
	Timeout  time.Duration
}

type Adapter struct {
	cfg  Config
	dial func(ctx context.Context, url string) (*websocket.Conn, error)
}

func NewAdapter(cfg Config) *Adapter {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Voice == "" {
		cfg.Voice = defaultVoice
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = contracts.SynthesisTimeout
	}
	return &Adapter{
		cfg: cfg,
		dial: func(ctx context.Context, url string) (*websocket.Conn, error) {
			conn, _, err := websocket.Dial(ctx, url, nil)
			return conn, err
		},
	}
}

func (a *Adapter) ProviderID() string {
	return ProviderID
}

// Synthesize opens a fresh websocket per request, streams one utterance, and
// returns the concatenated MP3 frames once the service signals turn.end.
func (a *Adapter) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = a.cfg.Voice
	}

	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	conn, err := a.dial(ctx, a.cfg.Endpoint)
	if err != nil {
		return nil, &fault.UpstreamError{Provider: ProviderID, Detail: "dial read-aloud service", Cause: err}
	}
	defer conn.Close(websocket.StatusNormalClosure, "")
	conn.SetReadLimit(1 << 22)

	requestID := strings.ReplaceAll(uuid.NewString(), "-", "")

	configMsg := fmt.Sprintf("X-Timestamp:%s\r\nContent-Type:application/json; charset=utf-8\r\nPath:speech.config\r\n\r\n%s",
		time.Now().UTC().Format(time.RFC1123), speechConfig)
	if err := conn.Write(ctx, websocket.MessageText, []byte(configMsg)); err != nil {
		return nil, &fault.UpstreamError{Provider: ProviderID, Detail: "send speech config", Cause: err}
	}

	ssmlMsg := fmt.Sprintf("X-RequestId:%s\r\nContent-Type:application/ssml+xml\r\nX-Timestamp:%s\r\nPath:ssml\r\n\r\n%s",
		requestID, time.Now().UTC().Format(time.RFC1123), buildSSML(text, voice))
	if err := conn.Write(ctx, websocket.MessageText, []byte(ssmlMsg)); err != nil {
		return nil, &fault.UpstreamError{Provider: ProviderID, Detail: "send ssml", Cause: err}
	}

	var audio bytes.Buffer
	for {
		kind, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, &fault.UpstreamError{Provider: ProviderID, Timeout: true, Detail: "synthesis deadline exceeded", Cause: err}
			}
			return nil, &fault.UpstreamError{Provider: ProviderID, Detail: "read synthesis frame", Cause: err}
		}
		switch kind {
		case websocket.MessageText:
			if strings.Contains(string(data), "Path:turn.end") {
				if audio.Len() == 0 {
					return nil, &fault.UpstreamError{Provider: ProviderID, Detail: "turn ended without audio"}
				}
				return audio.Bytes(), nil
			}
		case websocket.MessageBinary:
			chunk, err := extractAudio(data)
			if err != nil {
				return nil, err
			}
			audio.Write(chunk)
		}
	}
}

func buildSSML(text, voice string) string {
	escaped := escapeXML(text)
	return fmt.Sprintf(`<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'>`+
		`<voice name='%s'>%s</voice></speak>`, voice, escaped)
}

func escapeXML(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		`"`, "&quot;",
		"'", "&apos;",
	)
	return replacer.Replace(s)
}

// extractAudio strips the binary frame header. The frame starts with a
// big-endian uint16 header length, then the ASCII headers, then raw audio.
func extractAudio(frame []byte) ([]byte, error) {
	if len(frame) < 2 {
		return nil, &fault.UpstreamError{Provider: ProviderID, Detail: "truncated binary frame"}
	}
	headerLen := int(binary.BigEndian.Uint16(frame[:2]))
	if 2+headerLen > len(frame) {
		return nil, &fault.UpstreamError{Provider: ProviderID, Detail: "binary frame header overruns payload"}
	}
	header := string(frame[2 : 2+headerLen])
	if !strings.Contains(header, "Path:audio") {
		return nil, nil
	}
	return frame[2+headerLen:], nil
}

var _ contracts.Synthesizer = (*Adapter)(nil)
