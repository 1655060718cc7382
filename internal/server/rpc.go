package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"chat-help-mcp/internal/protocol"
)

const (
	sessionHeader = "Mcp-Session-Id"
	contentJSON   = "application/json"
	contentStream = "text/event-stream"
	messageEvent  = "message"
	endpointEvent = "endpoint"
)

// handleRPC serves the canonical JSON-RPC endpoint: one envelope per POST.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.logger.WithError(err).Warn("failed to read request body")
		s.writeEnvelope(w, r, status, protocol.NewErrorResponse(nil, protocol.NewParseError(err.Error())))
		return
	}

	resp := s.dispatcher.HandleMessage(r.Context(), body)
	if resp == nil {
		w.WriteHeader(http.StatusAccepted)
		return
	}
	s.writeEnvelope(w, r, http.StatusOK, resp)
}

// handleRoot answers GET on the JSON-RPC endpoint. No server-initiated stream is offered there, so a
// client asking for one is told to POST instead; anything else gets the health document.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	if accepts(r, contentStream) {
		w.Header().Set("Allow", "POST, OPTIONS")
		http.Error(w, "server-initiated streams are not offered on this endpoint; POST requests instead", http.StatusMethodNotAllowed)
		return
	}
	s.handleHealth(w, r)
}

func (s *Server) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "reading request body")
	}
	return body, nil
}

// writeEnvelope frames resp as a single SSE event when the client only accepts event streams, and as a
// plain JSON body otherwise.
func (s *Server) writeEnvelope(w http.ResponseWriter, r *http.Request, status int, resp *protocol.Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.WithError(err).Error("failed to encode response")
		payload, _ = json.Marshal(protocol.NewErrorResponse(resp.ID, protocol.NewInternalError("response could not be encoded")))
	}
	if s.dispatcher.Session().Initialized() {
		w.Header().Set(sessionHeader, s.dispatcher.Session().ID())
	}

	if wantsEventStream(r) {
		w.Header().Set("Content-Type", contentStream)
		w.Header().Set("Cache-Control", "no-cache")
		w.WriteHeader(status)
		if _, err := fmt.Fprint(w, formatEvent(messageEvent, payload)); err != nil {
			s.logger.WithError(err).Error("failed to write event")
		}
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		return
	}

	w.Header().Set("Content-Type", contentJSON)
	w.WriteHeader(status)
	if _, err := w.Write(payload); err != nil {
		s.logger.WithError(err).Error("failed to write response")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func formatEvent(event string, data []byte) string {
	return fmt.Sprintf("event: %s\ndata: %s\n\n", event, data)
}

// wantsEventStream reports whether the client asked for text/event-stream without also accepting JSON.
func wantsEventStream(r *http.Request) bool {
	return accepts(r, contentStream) && !accepts(r, contentJSON)
}

func accepts(r *http.Request, mediaType string) bool {
	for _, v := range r.Header.Values("Accept") {
		for _, part := range strings.Split(v, ",") {
			if mt, _, _ := strings.Cut(strings.TrimSpace(part), ";"); strings.EqualFold(strings.TrimSpace(mt), mediaType) {
				return true
			}
		}
	}
	return false
}
