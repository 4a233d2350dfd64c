package httpapi

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyrebird-labs/lyrebird/api/protocol"
)

func dialVoiceWS(t *testing.T, e *env, agentID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	url := "ws" + strings.TrimPrefix(e.server.URL, "http") + "/api/ws/voice/" + agentID
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) protocol.Envelope {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var env protocol.Envelope
	require.NoError(t, wsjson.Read(ctx, conn, &env))
	return env
}

func writeEnvelope(t *testing.T, conn *websocket.Conn, env protocol.Envelope) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, conn, env))
}

func TestVoiceWSFullExchange(t *testing.T) {
	t.Parallel()
	e := setup(t)
	agent := e.createAgent(t)

	conn := dialVoiceWS(t, e, agent.ID)

	writeEnvelope(t, conn, protocol.Envelope{Type: protocol.TypeAuth, Token: e.token})
	ack := readEnvelope(t, conn)
	require.Equal(t, protocol.TypeAuth, ack.Type)
	assert.Equal(t, protocol.AuthStatusSuccess, ack.Status)
	assert.Equal(t, "Tutor", ack.AgentName)

	writeEnvelope(t, conn, protocol.Envelope{Type: protocol.TypePing})
	pong := readEnvelope(t, conn)
	assert.Equal(t, protocol.TypePong, pong.Type)

	writeEnvelope(t, conn, protocol.Envelope{
		Type: protocol.TypeAudio,
		Data: base64.StdEncoding.EncodeToString([]byte("webm-audio")),
	})

	var sequence []string
	var reassembled []byte
	for {
		env := readEnvelope(t, conn)
		sequence = append(sequence, env.Type)
		if env.Type == protocol.TypeAudioChunk {
			chunk, err := base64.StdEncoding.DecodeString(env.Data)
			require.NoError(t, err)
			reassembled = append(reassembled, chunk...)
		}
		if env.Type == protocol.TypeAudioComplete {
			require.NotNil(t, env.TotalBytes)
			assert.Equal(t, len("mp3bytes"), *env.TotalBytes)
			break
		}
	}

	assert.Equal(t, []string{
		protocol.TypeStatus,
		protocol.TypeTranscript,
		protocol.TypeStatus,
		protocol.TypeResponse,
		protocol.TypeStatus,
		protocol.TypeAudioChunk,
		protocol.TypeAudioComplete,
	}, sequence)
	assert.Equal(t, []byte("mp3bytes"), reassembled)
}

func TestVoiceWSRejectsBadToken(t *testing.T) {
	t.Parallel()
	e := setup(t)
	agent := e.createAgent(t)

	conn := dialVoiceWS(t, e, agent.ID)
	writeEnvelope(t, conn, protocol.Envelope{Type: protocol.TypeAuth, Token: "bogus"})

	env := readEnvelope(t, conn)
	assert.Equal(t, protocol.TypeError, env.Type)
	assert.Equal(t, "Invalid token", env.Message)
}

func TestVoiceWSRejectsForeignAgent(t *testing.T) {
	t.Parallel()
	e := setup(t)

	conn := dialVoiceWS(t, e, "not-your-agent")
	writeEnvelope(t, conn, protocol.Envelope{Type: protocol.TypeAuth, Token: e.token})

	env := readEnvelope(t, conn)
	assert.Equal(t, protocol.TypeError, env.Type)
	assert.Equal(t, "Agent not found", env.Message)
}
