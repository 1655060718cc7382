// Package protocol defines the JSON-RPC 2.0 envelope and the MCP message shapes served by chat-help.
package protocol

import (
	"encoding/json"
)

// Version is the JSON-RPC version string every envelope must carry.
const Version = "2.0"

// DefaultProtocolVersion is the MCP protocol version announced by the server unless configured otherwise.
const DefaultProtocolVersion = "2024-11-05"

// Request represents a JSON-RPC 2.0 request or notification.
type Request struct {
	JSONRPC string          `json:"jsonrpc"` // Must be "2.0"
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no id member at all.
// An explicit null id is still answered.
func (r *Request) IsNotification() bool {
	return len(r.ID) == 0
}

// Response represents a JSON-RPC 2.0 response. Exactly one of Result and Error is set.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// NewResult builds a success response echoing id.
func NewResult(id json.RawMessage, result any) *Response {
	if result == nil {
		result = struct{}{}
	}
	return &Response{JSONRPC: Version, ID: echoID(id), Result: result}
}

// NewErrorResponse builds an error response echoing id.
func NewErrorResponse(id json.RawMessage, err *Error) *Response {
	return &Response{JSONRPC: Version, ID: echoID(id), Error: err}
}

// echoID returns a literal null when the caller supplied no id, so the field is never dropped.
func echoID(id json.RawMessage) json.RawMessage {
	if len(id) == 0 {
		return json.RawMessage("null")
	}
	return id
}

// InitializeParams contains parameters for the initialize method.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities,omitempty"`
	ClientInfo      Implementation `json:"clientInfo"`
}

// Implementation describes the name and version of an MCP client or server.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is returned from the initialize method.
type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      Implementation     `json:"serverInfo"`
}

// ServerCapabilities describes what the server supports. Only tools are offered.
type ServerCapabilities struct {
	Tools ToolsCapability `json:"tools"`
}

// ToolsCapability is serialized as an empty object.
type ToolsCapability struct{}

// Tool is the wire form of a tool descriptor.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	InputSchema any    `json:"inputSchema"`
}

// ListToolsResult is returned from the tools/list method.
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams contains parameters for the tools/call method.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// CallToolResult is returned from the tools/call method.
type CallToolResult struct {
	Content []Content `json:"content"`
}

// Content is one typed block of a tool result. Only text blocks are produced.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewTextResult wraps a serialized payload into the single-block content envelope.
func NewTextResult(text string) *CallToolResult {
	return &CallToolResult{Content: []Content{{Type: "text", Text: text}}}
}
