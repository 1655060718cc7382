package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"chat-help-mcp/internal/protocol"
)

var errStreamClosed = errors.New("stream closed")

// stream is one open legacy push connection. Responses to POST /messages are queued here and written by
// the GET /sse handler that owns the connection.
type stream struct {
	id        string
	events    chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (st *stream) send(payload []byte) error {
	select {
	case st.events <- payload:
		return nil
	case <-st.done:
		return errStreamClosed
	}
}

func (st *stream) close() {
	st.closeOnce.Do(func() { close(st.done) })
}

type streamHub struct {
	mu      sync.RWMutex
	streams map[string]*stream
}

func newStreamHub() *streamHub {
	return &streamHub{streams: make(map[string]*stream)}
}

func (h *streamHub) open() *stream {
	st := &stream{id: uuid.NewString(), events: make(chan []byte, 16), done: make(chan struct{})}
	h.mu.Lock()
	h.streams[st.id] = st
	h.mu.Unlock()
	return st
}

func (h *streamHub) get(id string) (*stream, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	st, ok := h.streams[id]
	return st, ok
}

func (h *streamHub) remove(st *stream) {
	st.close()
	h.mu.Lock()
	delete(h.streams, st.id)
	h.mu.Unlock()
}

func (h *streamHub) closeAll() {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, st := range h.streams {
		st.close()
	}
}

// handleStream opens a legacy push stream. The first event tells the client where to POST its requests.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", contentStream)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	st := s.streams.open()
	defer s.streams.remove(st)
	logger := s.logger.WithField("stream", st.id)
	logger.Info("push stream opened")

	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, formatEvent(endpointEvent, []byte("/messages?sessionId="+st.id)))
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case payload := <-st.events:
			if _, err := fmt.Fprint(w, formatEvent(messageEvent, payload)); err != nil {
				logger.WithError(err).Error("failed to write to push stream")
				return
			}
			flusher.Flush()
		case <-st.done:
			logger.Info("push stream closed by server")
			return
		case <-ctx.Done():
			logger.Info("push stream closed by client")
			return
		}
	}
}

// handleStreamMessage dispatches one envelope and pushes the response onto the named stream.
func (s *Server) handleStreamMessage(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("sessionId")
	st, ok := s.streams.get(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorBody{Error: protocol.NewInvalidParams(fmt.Sprintf("unknown or expired session: %q", id))})
		return
	}

	body, err := s.readBody(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: protocol.NewParseError(err.Error())})
		return
	}

	if resp := s.dispatcher.HandleMessage(r.Context(), body); resp != nil {
		payload, err := json.Marshal(resp)
		if err != nil {
			s.logger.WithError(err).Error("failed to encode response")
			http.Error(w, "failed to encode response", http.StatusInternalServerError)
			return
		}
		if err := st.send(payload); err != nil {
			writeJSON(w, http.StatusGone, ErrorBody{Error: protocol.NewInvalidParams("stream closed before the response could be delivered")})
			return
		}
	}
	w.WriteHeader(http.StatusAccepted)
}
