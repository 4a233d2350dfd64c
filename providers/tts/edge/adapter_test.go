package edge

import (
	"context"
	"encoding/binary"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/coder/websocket"

	"github.com/lyrebird-labs/lyrebird/internal/fault"
)

func binaryAudioFrame(path string, audio []byte) []byte {
	header := "X-RequestId:abc\r\nContent-Type:audio/mpeg\r\nPath:" + path + "\r\n"
	frame := make([]byte, 2+len(header)+len(audio))
	binary.BigEndian.PutUint16(frame[:2], uint16(len(header)))
	copy(frame[2:], header)
	copy(frame[2+len(header):], audio)
	return frame
}

func readAloudServer(t *testing.T, frames [][]byte) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		ctx := r.Context()

		_, config, err := conn.Read(ctx)
		if err != nil {
			t.Errorf("read config: %v", err)
			return
		}
		if !strings.Contains(string(config), "Path:speech.config") {
			t.Errorf("expected speech.config first, got %q", config)
		}
		_, ssml, err := conn.Read(ctx)
		if err != nil {
			t.Errorf("read ssml: %v", err)
			return
		}
		if !strings.Contains(string(ssml), "Path:ssml") {
			t.Errorf("expected ssml message, got %q", ssml)
		}
		if !strings.Contains(string(ssml), defaultVoice) {
			t.Errorf("expected default voice in ssml, got %q", ssml)
		}

		for _, frame := range frames {
			if err := conn.Write(ctx, websocket.MessageBinary, frame); err != nil {
				t.Errorf("write frame: %v", err)
				return
			}
		}
		end := "X-RequestId:abc\r\nPath:turn.end\r\n\r\n{}"
		if err := conn.Write(ctx, websocket.MessageText, []byte(end)); err != nil {
			t.Errorf("write turn.end: %v", err)
		}
	}))
}

func TestSynthesizeCollectsAudioFrames(t *testing.T) {
	t.Parallel()

	server := readAloudServer(t, [][]byte{
		binaryAudioFrame("audio", []byte("part1")),
		binaryAudioFrame("audio", []byte("part2")),
	})
	defer server.Close()

	adapter := NewAdapter(Config{Endpoint: "ws" + strings.TrimPrefix(server.URL, "http")})
	audio, err := adapter.Synthesize(context.Background(), "hello & goodbye", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(audio) != "part1part2" {
		t.Fatalf("unexpected audio assembly: %q", audio)
	}
}

func TestSynthesizeSkipsNonAudioFrames(t *testing.T) {
	t.Parallel()

	server := readAloudServer(t, [][]byte{
		binaryAudioFrame("audio.metadata", []byte("ignored")),
		binaryAudioFrame("audio", []byte("kept")),
	})
	defer server.Close()

	adapter := NewAdapter(Config{Endpoint: "ws" + strings.TrimPrefix(server.URL, "http")})
	audio, err := adapter.Synthesize(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(audio) != "kept" {
		t.Fatalf("expected metadata frame dropped, got %q", audio)
	}
}

func TestSynthesizeNoAudioBeforeTurnEnd(t *testing.T) {
	t.Parallel()

	server := readAloudServer(t, nil)
	defer server.Close()

	adapter := NewAdapter(Config{Endpoint: "ws" + strings.TrimPrefix(server.URL, "http")})
	_, err := adapter.Synthesize(context.Background(), "hello", "")

	var upstream *fault.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestSynthesizeDialFailure(t *testing.T) {
	t.Parallel()

	adapter := NewAdapter(Config{Endpoint: "ws://127.0.0.1:0"})
	_, err := adapter.Synthesize(context.Background(), "hello", "")

	var upstream *fault.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestEscapeXML(t *testing.T) {
	t.Parallel()

	got := escapeXML(`<a & "b">`)
	if got != "&lt;a &amp; &quot;b&quot;&gt;" {
		t.Fatalf("unexpected escaping: %q", got)
	}
}
