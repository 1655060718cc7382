package protocol

import (
	"bytes"
	"encoding/json"
)

// ParseRequest decodes one JSON-RPC envelope. Bodies that are not JSON yield a parse error; JSON that is
// not a single request object (batches included) yields an invalid request.
func ParseRequest(body []byte) (*Request, *Error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return nil, NewParseError("body is not valid JSON")
	}
	if trimmed[0] != '{' {
		return nil, NewInvalidRequest("expected a single JSON-RPC request object")
	}
	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return nil, NewInvalidRequest(err.Error())
	}
	if len(req.ID) > 0 && (req.ID[0] == '{' || req.ID[0] == '[' || req.ID[0] == 't' || req.ID[0] == 'f') {
		return nil, NewInvalidRequest("id must be a string, a number or null")
	}
	if req.JSONRPC != Version {
		return &req, NewInvalidRequest(`"jsonrpc" must be exactly "2.0"`)
	}
	if req.Method == "" {
		return &req, NewInvalidRequest("method is required")
	}
	return &req, nil
}
