package httpapi

import (
	"context"
	"net/http"

	"github.com/coder/websocket"

	"github.com/lyrebird-labs/lyrebird/internal/pipeline"
	"github.com/lyrebird-labs/lyrebird/internal/session"
)

// storeAgentSource adapts the store to the session's agent lookup.
type storeAgentSource struct {
	server *Server
}

func (a storeAgentSource) AgentProfile(ctx context.Context, agentID, ownerID string) (pipeline.AgentProfile, error) {
	agent, err := a.server.store.FindAgent(ctx, agentID, ownerID)
	if err != nil {
		return pipeline.AgentProfile{}, err
	}
	return agentProfile(agent), nil
}

// handleVoiceWS upgrades the connection and hands it to the protocol state
// machine. Authentication happens in-band as the first message, not here.
func (s *Server) handleVoiceWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		// The browser client connects cross-origin during development.
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		return
	}
	sess := session.New(
		session.NewWSConn(conn),
		r.PathValue("agent_id"),
		s.auth,
		storeAgentSource{server: s},
		s.pipe,
		s.logger,
	)
	sess.Run(r.Context())
}
