package server

import "chat-help-mcp/internal/protocol"

// CallRequest is the body of the REST tools/call alias.
type CallRequest struct {
	Name string         `json:"name"`
	Args map[string]any `json:"arguments"`
}

// ErrorBody wraps a protocol error for the REST aliases.
type ErrorBody struct {
	Error *protocol.Error `json:"error"`
}

// Health is the liveness document served on GET /health.
type Health struct {
	Status      string `json:"status"`
	Service     string `json:"service"`
	Protocol    string `json:"protocol"`
	Version     string `json:"version"`
	ToolsCount  int    `json:"tools_count"`
	Initialized bool   `json:"initialized"`
}
