// Package dispatch routes JSON-RPC requests to the MCP method handlers and runs tools under the
// server's execution policy.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	log "github.com/sirupsen/logrus"

	"chat-help-mcp/internal/metrics"
	"chat-help-mcp/internal/protocol"
	"chat-help-mcp/internal/registry"
	"chat-help-mcp/internal/schema"
)

// DefaultToolTimeout bounds each tool execution unless configured otherwise.
const DefaultToolTimeout = 30 * time.Second

// Options carries the static identity and policy of the dispatcher.
type Options struct {
	ServerName      string
	ServerVersion   string
	ProtocolVersion string
	// Strict rejects tools/call before a successful initialize.
	Strict      bool
	ToolTimeout time.Duration
}

// Dispatcher resolves methods and executes them against the registry.
type Dispatcher struct {
	opts     Options
	registry *registry.Registry
	session  *Session
	metrics  *metrics.Metrics
	logger   log.FieldLogger
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the logger used for dispatch entries.
func WithLogger(logger log.FieldLogger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics sets the collectors updated on every dispatch.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithSession injects the session state. Tests use it to share or inspect state.
func WithSession(s *Session) Option {
	return func(d *Dispatcher) {
		if s != nil {
			d.session = s
		}
	}
}

// New constructs a Dispatcher over reg.
func New(reg *registry.Registry, opts Options, options ...Option) *Dispatcher {
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = DefaultToolTimeout
	}
	if opts.ProtocolVersion == "" {
		opts.ProtocolVersion = protocol.DefaultProtocolVersion
	}
	d := &Dispatcher{
		opts:     opts,
		registry: reg,
		session:  NewSession(),
		metrics:  metrics.New(),
		logger:   log.StandardLogger(),
	}
	for _, o := range options {
		o(d)
	}
	return d
}

// Session returns the handshake state.
func (d *Dispatcher) Session() *Session { return d.session }

// Metrics returns the collectors updated by this dispatcher.
func (d *Dispatcher) Metrics() *metrics.Metrics { return d.metrics }

// ToolCount is the number of registered tools.
func (d *Dispatcher) ToolCount() int { return d.registry.Len() }

// Options returns the configured options.
func (d *Dispatcher) Options() Options { return d.opts }

// Handle processes one envelope. It returns nil for notifications.
func (d *Dispatcher) Handle(ctx context.Context, req *protocol.Request) *protocol.Response {
	start := time.Now()
	method := protocol.ParseMethod(req.Method)

	var (
		result any
		rpcErr *protocol.Error
	)
	if req.JSONRPC != protocol.Version || req.Method == "" {
		rpcErr = protocol.NewInvalidRequest(`envelope must carry "jsonrpc":"2.0" and a method`)
	} else {
		result, rpcErr = d.route(ctx, method, req)
	}

	code := 0
	entry := d.logger.WithFields(log.Fields{
		"method":   req.Method,
		"id":       string(req.ID),
		"duration": time.Since(start),
	})
	if rpcErr != nil {
		code = rpcErr.Code
		entry.WithField("code", rpcErr.Code).Debugf("request failed: %s", rpcErr.Message)
	} else {
		entry.Debug("request handled")
	}
	d.metrics.RecordRequest(method.String(), code)

	if req.IsNotification() {
		return nil
	}
	if rpcErr != nil {
		return protocol.NewErrorResponse(req.ID, rpcErr)
	}
	return protocol.NewResult(req.ID, result)
}

// HandleMessage parses one raw envelope and handles it. Envelope errors echo the request id when it could
// be read. It returns nil for notifications.
func (d *Dispatcher) HandleMessage(ctx context.Context, raw []byte) *protocol.Response {
	req, rpcErr := protocol.ParseRequest(raw)
	if rpcErr != nil {
		var id json.RawMessage
		if req != nil {
			id = req.ID
		}
		d.metrics.RecordRequest("invalid", rpcErr.Code)
		return protocol.NewErrorResponse(id, rpcErr)
	}
	return d.Handle(ctx, req)
}

func (d *Dispatcher) route(ctx context.Context, method protocol.Method, req *protocol.Request) (any, *protocol.Error) {
	switch method {
	case protocol.MethodInitialize:
		var params protocol.InitializeParams
		if err := decodeParams(req.Params, &params); err != nil {
			// initialize never fails; unreadable params only lose the client's requested version.
			d.logger.WithError(err).Debug("ignoring malformed initialize params")
		}
		return d.Initialize(params), nil
	case protocol.MethodInitialized:
		return nil, nil
	case protocol.MethodToolsList:
		return d.ListTools(), nil
	case protocol.MethodToolsCall:
		var params protocol.CallToolParams
		if err := decodeParams(req.Params, &params); err != nil {
			return nil, protocol.NewInvalidParams("Invalid parameters for tools/call: " + err.Error())
		}
		return d.CallTool(ctx, params)
	case protocol.MethodPing:
		return struct{}{}, nil
	default: // protocol.MethodUnknown
		return nil, protocol.NewMethodNotFound(req.Method)
	}
}

// Initialize completes the handshake. It always succeeds and is idempotent; the server's protocol
// version is returned whatever the client asked for.
func (d *Dispatcher) Initialize(params protocol.InitializeParams) *protocol.InitializeResult {
	if d.session.MarkInitialized() {
		d.logger.WithFields(log.Fields{
			"client":           params.ClientInfo.Name,
			"clientVersion":    params.ClientInfo.Version,
			"requestedVersion": params.ProtocolVersion,
			"protocolVersion":  d.opts.ProtocolVersion,
		}).Info("session initialized")
	}
	return &protocol.InitializeResult{
		ProtocolVersion: d.opts.ProtocolVersion,
		Capabilities:    protocol.ServerCapabilities{Tools: protocol.ToolsCapability{}},
		ServerInfo: protocol.Implementation{
			Name:    d.opts.ServerName,
			Version: d.opts.ServerVersion,
		},
	}
}

// ListTools returns every registered descriptor in registration order.
func (d *Dispatcher) ListTools() *protocol.ListToolsResult {
	return &protocol.ListToolsResult{Tools: d.Descriptors()}
}

// Descriptors returns the wire form of the registered tools.
func (d *Dispatcher) Descriptors() []protocol.Tool {
	descs := d.registry.List()
	tools := make([]protocol.Tool, 0, len(descs))
	for _, desc := range descs {
		tools = append(tools, protocol.Tool{
			Name:        desc.Name,
			Description: desc.Description,
			InputSchema: desc.InputSchema,
		})
	}
	return tools
}

// CallTool resolves, validates and executes one tool call. Tool code never runs when the name is unknown
// or the arguments are rejected.
func (d *Dispatcher) CallTool(ctx context.Context, params protocol.CallToolParams) (*protocol.CallToolResult, *protocol.Error) {
	if d.opts.Strict && !d.session.Initialized() {
		return nil, protocol.NewInvalidState(protocol.MethodToolsCall.String())
	}
	if params.Name == "" {
		return nil, protocol.NewInvalidParams("Invalid parameters for tools/call: missing tool name")
	}
	entry, err := d.registry.Resolve(params.Name)
	if err != nil {
		return nil, protocol.NewToolNotFound(params.Name)
	}
	args := params.Arguments
	if args == nil {
		args = map[string]any{}
	}
	if err := schema.Validate(entry.InputSchema, args); err != nil {
		field := ""
		if verr, ok := err.(*schema.ValidationError); ok {
			field = verr.Field
		}
		return nil, protocol.NewInvalidArguments(params.Name, field, err.Error())
	}

	out := d.execute(ctx, entry, args)
	if !out.Success {
		return nil, protocol.NewToolExecutionFailed(params.Name, out.Err, out.TimedOut)
	}
	text, err := encodePayload(out.Payload)
	if err != nil {
		return nil, protocol.NewToolExecutionFailed(params.Name, "tool result could not be serialized: "+err.Error(), false)
	}
	return protocol.NewTextResult(text), nil
}

// decodeParams unmarshals optional params. Absent or null params leave target untouched.
func decodeParams(raw json.RawMessage, target any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, target)
}

// encodePayload serializes a tool payload without HTML escaping, so text stays readable for clients.
func encodePayload(payload any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", err
	}
	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
