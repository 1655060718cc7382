package server

import (
	"encoding/json"
	"net/http"

	"chat-help-mcp/internal/protocol"
)

// The REST aliases call the same dispatcher methods as the JSON-RPC endpoint and only differ in framing.

func (s *Server) handleInitialize(w http.ResponseWriter, r *http.Request) {
	var params protocol.InitializeParams
	if body, err := s.readBody(w, r); err == nil && len(body) > 0 {
		if err := json.Unmarshal(body, &params); err != nil {
			s.logger.WithError(err).Debug("ignoring malformed initialize body")
		}
	}
	result := s.dispatcher.Initialize(params)
	s.dispatcher.Metrics().RecordRequest(protocol.MethodInitialize.String(), 0)
	w.Header().Set(sessionHeader, s.dispatcher.Session().ID())
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	s.dispatcher.Metrics().RecordRequest(protocol.MethodToolsList.String(), 0)
	writeJSON(w, http.StatusOK, s.dispatcher.Descriptors())
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	body, err := s.readBody(w, r)
	if err != nil {
		s.writeRESTError(w, protocol.NewParseError(err.Error()))
		return
	}
	if !json.Valid(body) {
		s.writeRESTError(w, protocol.NewParseError("request body is not valid JSON"))
		return
	}
	// shape errors are reported exactly as the JSON-RPC endpoint reports them
	var req CallRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.writeRESTError(w, protocol.NewInvalidParams("Invalid parameters for tools/call: "+err.Error()))
		return
	}

	result, rpcErr := s.dispatcher.CallTool(r.Context(), protocol.CallToolParams{Name: req.Name, Arguments: req.Args})
	if rpcErr != nil {
		s.writeRESTError(w, rpcErr)
		return
	}
	s.dispatcher.Metrics().RecordRequest(protocol.MethodToolsCall.String(), 0)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) writeRESTError(w http.ResponseWriter, rpcErr *protocol.Error) {
	s.dispatcher.Metrics().RecordRequest(protocol.MethodToolsCall.String(), rpcErr.Code)
	writeJSON(w, rpcErr.HTTPStatus(), ErrorBody{Error: rpcErr})
}

// handleHealth reports derived status only. It never goes through the dispatcher, so it answers while
// tool calls are in flight.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	opts := s.dispatcher.Options()
	writeJSON(w, http.StatusOK, Health{
		Status:      "ok",
		Service:     opts.ServerName,
		Protocol:    opts.ProtocolVersion,
		Version:     opts.ServerVersion,
		ToolsCount:  s.dispatcher.ToolCount(),
		Initialized: s.dispatcher.Session().Initialized(),
	})
}
