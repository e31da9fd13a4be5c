package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leadflowhq/leadflow/pkg/agent"
	"github.com/leadflowhq/leadflow/pkg/auth"
	"github.com/leadflowhq/leadflow/pkg/conversation"
)

type startConversationRequest struct {
	ContextRef  string `json:"context_ref,omitempty"`
	ContextKind string `json:"context_kind,omitempty"`
}

type messageRequest struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Debug("Failed to write JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// requestScope resolves the agent definition and caller identity, or writes
// the rejection itself. These checks run before any SSE headers go out.
func (s *Server) requestScope(w http.ResponseWriter, r *http.Request) (*agent.Definition, conversation.Owner, bool) {
	identity := auth.IdentityFromContext(r.Context())
	if identity == nil {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return nil, conversation.Owner{}, false
	}

	agentType := chi.URLParam(r, "agent")
	def, ok := s.agents.Get(agentType)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown agent: "+agentType)
		return nil, conversation.Owner{}, false
	}

	return def, conversation.Owner{UserID: identity.UserID, TeamID: identity.TeamID}, true
}

// handleStartConversation creates a conversation for an agent and returns
// its id.
func (s *Server) handleStartConversation(w http.ResponseWriter, r *http.Request) {
	def, owner, ok := s.requestScope(w, r)
	if !ok {
		return
	}

	var req startConversationRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	conv, err := s.runtime.StartConversation(r.Context(), def, owner, req.ContextRef, req.ContextKind)
	if err != nil {
		slog.Error("Failed to create conversation", "agent", def.Type, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{
		"conversation_id": conv.ID,
		"agent":           def.Type,
		"status":          conv.Status,
	})
}

// handleMessage processes one turn and streams the response over SSE. All
// validation failures reject with a plain HTTP status before the SSE
// headers are sent.
func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	def, owner, ok := s.requestScope(w, r)
	if !ok {
		return
	}

	conversationID := chi.URLParam(r, "id")

	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	conv, err := s.store.Get(r.Context(), conversationID, owner)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		slog.Error("Failed to load conversation", "conversation", conversationID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	if conv.AgentType != def.Type {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	sse, err := NewSSEEmitter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	sse.Open()
	sse.StartHeartbeat(s.heartbeat)
	defer sse.Close()

	emitter := &turnEmitter{
		sse:            sse,
		conversationID: conversationID,
		status: func() string {
			current, err := s.store.Get(r.Context(), conversationID, owner)
			if err != nil {
				return conv.Status
			}
			return current.Status
		},
	}

	if err := s.runtime.ProcessTurn(r.Context(), def, owner, conversationID, req.Message, emitter); err != nil {
		// Already surfaced to the client as an error frame; nothing more to
		// send on this response.
		slog.Warn("Turn failed", "conversation", conversationID, "agent", def.Type, "error", err)
	}
}

// handleStatus returns the conversation's lifecycle status plus the
// side-effect summary derived from sentinel entries.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	def, owner, ok := s.requestScope(w, r)
	if !ok {
		return
	}

	conversationID := chi.URLParam(r, "id")

	conv, err := s.store.Get(r.Context(), conversationID, owner)
	if err != nil {
		if errors.Is(err, conversation.ErrNotFound) {
			writeError(w, http.StatusNotFound, "conversation not found")
			return
		}
		slog.Error("Failed to load conversation", "conversation", conversationID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	if conv.AgentType != def.Type {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	payload := map[string]any{
		"conversation_id": conv.ID,
		"agent":           conv.AgentType,
		"status":          conv.Status,
	}
	for k, v := range agent.Summarize(def, conv.Transcript) {
		payload[k] = v
	}

	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
