// Package protocol defines the wire envelope for the streaming voice
// session. Every message is a JSON object tagged by a "type" field; payload
// fields are optional and message-type specific.
package protocol

// Message type tags, client to server and server to client.
const (
	TypeAuth          = "auth"
	TypeAudio         = "audio"
	TypeStatus        = "status"
	TypeTranscript    = "transcript"
	TypeResponse      = "response"
	TypeAudioChunk    = "audio_chunk"
	TypeAudioComplete = "audio_complete"
	TypePing          = "ping"
	TypePong          = "pong"
	TypeError         = "error"
)

// AuthStatusSuccess is the status value sent on a successful handshake.
const AuthStatusSuccess = "success"

// ChunkSize is the fixed synthesized-audio chunk size in bytes.
const ChunkSize = 8192

// Envelope is the single wire message shape for both directions.
type Envelope struct {
	Type string `json:"type"`

	// auth (client): bearer token. auth (server): Status + AgentName.
	Token     string `json:"token,omitempty"`
	Status    string `json:"status,omitempty"`
	AgentName string `json:"agent_name,omitempty"`

	// audio (client) and audio_chunk (server): base64 payload.
	Data string `json:"data,omitempty"`

	// transcript, response.
	Text string `json:"text,omitempty"`

	// status progress notices and error messages.
	Message string `json:"message,omitempty"`

	// audio_chunk bookkeeping. Pointers distinguish index zero from absent.
	ChunkIndex  *int `json:"chunk_index,omitempty"`
	TotalChunks *int `json:"total_chunks,omitempty"`

	// audio_complete.
	TotalBytes *int `json:"total_bytes,omitempty"`
}

// TotalChunks returns ceil(audioLen/ChunkSize), the number of audio_chunk
// messages produced for a payload of audioLen bytes.
func TotalChunks(audioLen int) int {
	if audioLen <= 0 {
		return 0
	}
	return (audioLen + ChunkSize - 1) / ChunkSize
}

// Chunk returns the i-th ChunkSize slice of audio. The final chunk may be
// shorter; out-of-range indexes return nil.
func Chunk(audio []byte, i int) []byte {
	start := i * ChunkSize
	if i < 0 || start >= len(audio) {
		return nil
	}
	end := start + ChunkSize
	if end > len(audio) {
		end = len(audio)
	}
	return audio[start:end]
}

// Error builds an error envelope.
func Error(message string) Envelope {
	return Envelope{Type: TypeError, Message: message}
}

// StatusNotice builds a human-readable progress envelope.
func StatusNotice(message string) Envelope {
	return Envelope{Type: TypeStatus, Message: message}
}
