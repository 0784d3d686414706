package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-nhc/internal/bridge"
	"github.com/nerrad567/gray-logic-nhc/internal/endpoint"
)

// handleListEndpoints returns all endpoints, with optional query filters.
//
// Query parameters:
//   - room: filter by room name
func (s *Server) handleListEndpoints(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if room := r.URL.Query().Get("room"); room != "" {
		endpoints, err := s.registry.GetEndpointsByRoom(ctx, room)
		if err != nil {
			writeInternalError(w, "failed to list endpoints")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"endpoints": endpoints, "count": len(endpoints)})
		return
	}

	endpoints, err := s.registry.ListEndpoints(ctx)
	if err != nil {
		writeInternalError(w, "failed to list endpoints")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"endpoints": endpoints, "count": len(endpoints)})
}

// handleGetEndpoint returns a single endpoint by ID or slug.
func (s *Server) handleGetEndpoint(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	ep, err := s.registry.GetEndpoint(r.Context(), id)
	if errors.Is(err, endpoint.ErrEndpointNotFound) {
		// Fall back to slug lookup so UIs can use friendly names
		ep, err = s.registry.GetEndpointBySlug(r.Context(), id)
	}
	if err != nil {
		if errors.Is(err, endpoint.ErrEndpointNotFound) {
			writeNotFound(w, "endpoint not found")
			return
		}
		writeInternalError(w, "failed to get endpoint")
		return
	}

	writeJSON(w, http.StatusOK, ep)
}

// handleEndpointStats returns aggregate endpoint counts.
func (s *Server) handleEndpointStats(w http.ResponseWriter, _ *http.Request) {
	stats := s.registry.GetStats()
	writeJSON(w, http.StatusOK, stats)
}

// commandRequest is the JSON body accepted by handleEndpointCommand.
type commandRequest struct {
	Command    string         `json:"command"`
	Channel    string         `json:"channel,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// handleEndpointCommand publishes a command for an endpoint on the MQTT bus.
//
// The command is published to the bridge's own command topic, so it takes
// the same path as commands issued by Gray Logic Core: decode, translate,
// send to the controller, acknowledge.
func (s *Server) handleEndpointCommand(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if s.mqtt == nil {
		writeServiceUnavailable(w, "MQTT not connected, commands unavailable")
		return
	}

	// Reject commands for unknown endpoints up front; the bridge would NACK
	// them anyway but a 404 is a clearer answer.
	if _, err := s.registry.GetEndpoint(r.Context(), id); err != nil {
		if errors.Is(err, endpoint.ErrEndpointNotFound) {
			writeNotFound(w, "endpoint not found")
			return
		}
		writeInternalError(w, "failed to get endpoint")
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Command == "" {
		writeBadRequest(w, "command is required")
		return
	}

	msg := bridge.CommandMessage{
		ID:         uuid.NewString(),
		Timestamp:  time.Now().UTC(),
		EndpointID: id,
		Channel:    req.Channel,
		Command:    req.Command,
		Parameters: req.Parameters,
		Source:     "api",
	}

	// Validate before publishing so callers get an immediate 400 instead of
	// a NACK on the ack topic.
	if _, _, err := msg.Decode(); err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		writeInternalError(w, "failed to encode command")
		return
	}

	topic := bridge.CommandTopic(id)
	if err := s.mqtt.Publish(topic, payload, 1, false); err != nil {
		s.logger.Error("command publish failed", "endpoint_id", id, "error", err)
		writeServiceUnavailable(w, "failed to publish command")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"command_id":  msg.ID,
		"endpoint_id": id,
		"command":     req.Command,
	})
}

// handleMetrics returns bridge and server metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{
		"version":    s.version,
		"uptime_sec": int(time.Since(s.startTime).Seconds()),
		"endpoints":  s.registry.GetEndpointCount(),
	}

	if s.hub != nil {
		resp["websocket_clients"] = s.hub.ClientCount()
	}

	if s.bridge != nil {
		m := s.bridge.GetMetrics()
		resp["bridge"] = map[string]any{
			"connected":         m.Connected,
			"status":            m.Status,
			"events_received":   m.EventsReceived,
			"commands_sent":     m.CommandsSent,
			"reconnects":        m.Reconnects,
			"endpoints_managed": m.EndpointsManaged,
			"endpoints_bound":   m.EndpointsBound,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
