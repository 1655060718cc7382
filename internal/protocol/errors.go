package protocol

import (
	"fmt"
	"net/http"
)

// JSON-RPC error codes (as per JSON-RPC 2.0 Specification)
const (
	CodeParseError     = -32700 // Invalid JSON was received by the server.
	CodeInvalidRequest = -32600 // The JSON sent is not a valid Request object.
	CodeMethodNotFound = -32601 // The method does not exist / is not available.
	CodeInvalidParams  = -32602 // Invalid method parameter(s), including schema validation failures.
	CodeInternalError  = -32603 // Internal JSON-RPC error.
)

// Application specific error codes
const (
	// CodeToolNotFound is returned when tools/call names a tool that is not registered.
	CodeToolNotFound = -32001

	// CodeToolExecutionFailed is returned when a tool faulted or exceeded its timeout.
	CodeToolExecutionFailed = -32002

	// CodeInvalidState is returned in strict mode when tools/call arrives before initialize.
	CodeInvalidState = -32003
)

// Error represents a JSON-RPC 2.0 error object. It implements error so handlers can return it directly.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// NewParseError creates an Error for bodies that are not valid JSON.
func NewParseError(details string) *Error {
	return &Error{Code: CodeParseError, Message: "Parse error", Data: map[string]string{"details": details}}
}

// NewInvalidRequest creates an Error for envelopes that are not valid JSON-RPC requests.
func NewInvalidRequest(details string) *Error {
	return &Error{Code: CodeInvalidRequest, Message: "Invalid Request", Data: map[string]string{"details": details}}
}

// NewMethodNotFound creates an Error for unknown methods.
func NewMethodNotFound(method string) *Error {
	return &Error{
		Code:    CodeMethodNotFound,
		Message: fmt.Sprintf("Method not found: %s", method),
		Data:    map[string]string{"method": method},
	}
}

// NewInvalidParams creates an Error for params that could not be decoded.
func NewInvalidParams(message string) *Error {
	return &Error{Code: CodeInvalidParams, Message: message}
}

// NewInvalidArguments creates an Error for tool arguments rejected by the schema validator.
// The offending field is carried in data so callers can act on it without parsing the message.
func NewInvalidArguments(tool, field, message string) *Error {
	return &Error{
		Code:    CodeInvalidParams,
		Message: message,
		Data:    map[string]string{"tool": tool, "field": field},
	}
}

// NewToolNotFound creates an Error for unregistered tool names.
func NewToolNotFound(name string) *Error {
	return &Error{
		Code:    CodeToolNotFound,
		Message: fmt.Sprintf("Tool not found: %s", name),
		Data:    map[string]string{"tool": name},
	}
}

// NewToolExecutionFailed creates an Error for a tool fault. The fault's message is the error message.
func NewToolExecutionFailed(name, message string, timedOut bool) *Error {
	data := map[string]any{"tool": name}
	if timedOut {
		data["reason"] = "timeout"
	}
	return &Error{Code: CodeToolExecutionFailed, Message: message, Data: data}
}

// NewInvalidState creates an Error for calls made before the handshake in strict mode.
func NewInvalidState(method string) *Error {
	return &Error{
		Code:    CodeInvalidState,
		Message: fmt.Sprintf("Server not initialized: %s requires a prior initialize", method),
		Data:    map[string]string{"method": method},
	}
}

// NewInternalError creates an Error for unexpected server failures.
func NewInternalError(details string) *Error {
	return &Error{Code: CodeInternalError, Message: "Internal error", Data: map[string]string{"details": details}}
}

// IsTimeout reports whether e is a tool execution failure caused by the per-call timeout.
func (e *Error) IsTimeout() bool {
	if e.Code != CodeToolExecutionFailed {
		return false
	}
	data, ok := e.Data.(map[string]any)
	return ok && data["reason"] == "timeout"
}

// HTTPStatus maps an error to the status used by the REST-shaped aliases.
// The canonical JSON-RPC endpoint always answers 200 and carries the error in the envelope.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeParseError, CodeInvalidRequest, CodeInvalidParams:
		return http.StatusBadRequest
	case CodeMethodNotFound, CodeToolNotFound:
		return http.StatusNotFound
	case CodeInvalidState:
		return http.StatusConflict
	case CodeToolExecutionFailed:
		if e.IsTimeout() {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
