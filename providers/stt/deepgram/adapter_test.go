package deepgram

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/lyrebird-labs/lyrebird/internal/fault"
	"github.com/lyrebird-labs/lyrebird/internal/provider/contracts"
)

func TestTranscribeSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token key" {
			t.Errorf("expected token auth, got %q", got)
		}
		if got := r.Header.Get("Content-Type"); got != "audio/webm" {
			t.Errorf("expected source mime type, got %q", got)
		}
		w.Write([]byte(`{"results":{"channels":[{"alternatives":[{"transcript":"life moves pretty fast"}]}]}}`))
	}))
	defer server.Close()

	adapter := NewAdapter(Config{APIKey: "key", Endpoint: server.URL})
	text, err := adapter.Transcribe(context.Background(), contracts.NewBytesSource([]byte("audio"), "", ""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "life moves pretty fast" {
		t.Fatalf("unexpected transcript: %q", text)
	}
}

func TestTranscribeMissingCredential(t *testing.T) {
	t.Parallel()

	adapter := NewAdapter(Config{})
	_, err := adapter.Transcribe(context.Background(), contracts.NewBytesSource([]byte("audio"), "", ""))

	var cfgErr *fault.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestTranscribeEmptyAlternatives(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":{"channels":[]}}`))
	}))
	defer server.Close()

	adapter := NewAdapter(Config{APIKey: "key", Endpoint: server.URL})
	_, err := adapter.Transcribe(context.Background(), contracts.NewBytesSource([]byte("audio"), "", ""))

	var upstream *fault.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}
