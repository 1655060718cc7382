package dispatch

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-help-mcp/internal/protocol"
	"chat-help-mcp/internal/registry"
	"chat-help-mcp/internal/schema"
)

type fixture struct {
	dispatcher *Dispatcher
	executions atomic.Int32
}

func newFixture(t *testing.T, opts Options, extra ...registry.Entry) *fixture {
	t.Helper()
	f := &fixture{}
	reg := registry.New()
	reg.MustRegister(registry.Descriptor{
		Name:        "echo",
		Description: "Returns its arguments",
		InputSchema: schema.New(
			schema.Prop("text", schema.String, schema.Required()),
			schema.Prop("count", schema.Integer),
		),
	}, registry.ToolFunc(func(_ context.Context, args map[string]any) (any, error) {
		f.executions.Add(1)
		return map[string]any{"success": true, "echo": args["text"], "nested": []any{"a", 1.5, nil}}, nil
	}))
	for _, e := range extra {
		reg.MustRegister(e.Descriptor, e.Tool)
	}
	logger, _ := test.NewNullLogger()
	f.dispatcher = New(reg, opts, WithLogger(logger))
	return f
}

func call(t *testing.T, d *Dispatcher, id, method string, params any) *protocol.Response {
	t.Helper()
	req := &protocol.Request{JSONRPC: protocol.Version, Method: method}
	if id != "" {
		req.ID = json.RawMessage(id)
	}
	if params != nil {
		raw, err := json.Marshal(params)
		require.NoError(t, err)
		req.Params = raw
	}
	return d.Handle(context.Background(), req)
}

func toolCall(name string, args map[string]any) map[string]any {
	return map[string]any{"name": name, "arguments": args}
}

func TestInitializeIsIdempotent(t *testing.T) {
	f := newFixture(t, Options{ServerName: "chat-help", ServerVersion: "1.0.0"})
	params := map[string]any{"protocolVersion": "2025-03-26", "clientInfo": map[string]any{"name": "c", "version": "1"}}

	first := call(t, f.dispatcher, "1", "initialize", params)
	second := call(t, f.dispatcher, "2", "initialize", params)
	require.Nil(t, first.Error)
	require.Nil(t, second.Error)
	assert.Equal(t, first.Result, second.Result)

	result := first.Result.(*protocol.InitializeResult)
	assert.Equal(t, protocol.DefaultProtocolVersion, result.ProtocolVersion)
	assert.Equal(t, "chat-help", result.ServerInfo.Name)
	assert.Equal(t, "1.0.0", result.ServerInfo.Version)
	assert.True(t, f.dispatcher.Session().Initialized())
}

func TestInitializeToleratesMalformedParams(t *testing.T) {
	f := newFixture(t, Options{})
	req := &protocol.Request{JSONRPC: "2.0", ID: json.RawMessage(`7`), Method: "initialize", Params: json.RawMessage(`[1,2]`)}
	resp := f.dispatcher.Handle(context.Background(), req)
	require.Nil(t, resp.Error)
	assert.Equal(t, json.RawMessage(`7`), resp.ID)
}

func TestNotificationsProduceNoResponse(t *testing.T) {
	f := newFixture(t, Options{})
	assert.Nil(t, call(t, f.dispatcher, "", "notifications/initialized", nil))
	assert.Nil(t, call(t, f.dispatcher, "", "does/not/exist", nil))
}

func TestNullIDIsAnswered(t *testing.T) {
	f := newFixture(t, Options{})
	resp := call(t, f.dispatcher, "null", "ping", nil)
	require.NotNil(t, resp)
	assert.Equal(t, json.RawMessage("null"), resp.ID)
}

func TestUnknownMethod(t *testing.T) {
	f := newFixture(t, Options{})
	resp := call(t, f.dispatcher, `"abc"`, "resources/list", nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeMethodNotFound, resp.Error.Code)
	assert.Equal(t, json.RawMessage(`"abc"`), resp.ID)
}

func TestInvalidEnvelope(t *testing.T) {
	f := newFixture(t, Options{})
	resp := f.dispatcher.Handle(context.Background(), &protocol.Request{JSONRPC: "1.0", ID: json.RawMessage("3"), Method: "ping"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeInvalidRequest, resp.Error.Code)
}

func TestListToolsKeepsRegistrationOrder(t *testing.T) {
	f := newFixture(t, Options{}, registry.Entry{
		Descriptor: registry.Descriptor{Name: "second", Description: "x", InputSchema: schema.New()},
		Tool:       registry.ToolFunc(func(context.Context, map[string]any) (any, error) { return nil, nil }),
	})
	listNames := func() []string {
		resp := call(t, f.dispatcher, "1", "tools/list", nil)
		require.Nil(t, resp.Error)
		var names []string
		for _, tool := range resp.Result.(*protocol.ListToolsResult).Tools {
			names = append(names, tool.Name)
		}
		return names
	}

	first := listNames()
	assert.Equal(t, []string{"echo", "second"}, first)
	call(t, f.dispatcher, "2", "tools/call", toolCall("echo", map[string]any{"text": "x"}))
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, listNames())
	}
}

func TestHandleMessage(t *testing.T) {
	f := newFixture(t, Options{})
	ctx := context.Background()

	resp := f.dispatcher.HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","id":7,"method":"ping"}`))
	require.NotNil(t, resp)
	assert.Nil(t, resp.Error)
	assert.Equal(t, json.RawMessage("7"), resp.ID)

	assert.Nil(t, f.dispatcher.HandleMessage(ctx, []byte(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)))

	resp = f.dispatcher.HandleMessage(ctx, []byte(`{"jsonrpc":"1.0","id":"v","method":"ping"}`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeInvalidRequest, resp.Error.Code)
	assert.Equal(t, json.RawMessage(`"v"`), resp.ID)

	resp = f.dispatcher.HandleMessage(ctx, []byte(`{`))
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeParseError, resp.Error.Code)
	assert.Equal(t, json.RawMessage("null"), resp.ID)
}

func TestCallToolRoundTripsPayload(t *testing.T) {
	f := newFixture(t, Options{})
	resp := call(t, f.dispatcher, "1", "tools/call", toolCall("echo", map[string]any{"text": "<b>salut</b>", "extra": true}))
	require.Nil(t, resp.Error)

	result := resp.Result.(*protocol.CallToolResult)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)
	assert.Contains(t, result.Content[0].Text, "<b>salut</b>")

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &payload))
	assert.Equal(t, map[string]any{"success": true, "echo": "<b>salut</b>", "nested": []any{"a", 1.5, nil}}, payload)
}

func TestRejectedCallsDoNotExecute(t *testing.T) {
	tests := map[string]struct {
		params    any
		wantCode  int
		wantField string
	}{
		"unknown tool": {
			params:   toolCall("does_not_exist", map[string]any{}),
			wantCode: protocol.CodeToolNotFound,
		},
		"missing required": {
			params:    toolCall("echo", map[string]any{}),
			wantCode:  protocol.CodeInvalidParams,
			wantField: "text",
		},
		"wrong type": {
			params:    toolCall("echo", map[string]any{"text": 42}),
			wantCode:  protocol.CodeInvalidParams,
			wantField: "text",
		},
		"fractional integer": {
			params:    toolCall("echo", map[string]any{"text": "x", "count": 1.5}),
			wantCode:  protocol.CodeInvalidParams,
			wantField: "count",
		},
		"missing name": {
			params:   map[string]any{"arguments": map[string]any{}},
			wantCode: protocol.CodeInvalidParams,
		},
		"params not an object": {
			params:   []int{1},
			wantCode: protocol.CodeInvalidParams,
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, Options{})
			resp := call(t, f.dispatcher, "9", "tools/call", tc.params)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tc.wantCode, resp.Error.Code)
			assert.Equal(t, int32(0), f.executions.Load())
			if tc.wantField != "" {
				data := resp.Error.Data.(map[string]string)
				assert.Equal(t, tc.wantField, data["field"])
				assert.Equal(t, "echo", data["tool"])
			}
		})
	}
}

func TestToolNotFoundMessage(t *testing.T) {
	f := newFixture(t, Options{})
	resp := call(t, f.dispatcher, "3", "tools/call", toolCall("does_not_exist", nil))
	require.NotNil(t, resp.Error)
	assert.Equal(t, "Tool not found: does_not_exist", resp.Error.Message)
}

func TestStrictModeRequiresInitialize(t *testing.T) {
	f := newFixture(t, Options{Strict: true})
	resp := call(t, f.dispatcher, "1", "tools/call", toolCall("echo", map[string]any{"text": "x"}))
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeInvalidState, resp.Error.Code)
	assert.Equal(t, int32(0), f.executions.Load())

	call(t, f.dispatcher, "2", "initialize", nil)
	resp = call(t, f.dispatcher, "3", "tools/call", toolCall("echo", map[string]any{"text": "x"}))
	require.Nil(t, resp.Error)
	assert.Equal(t, int32(1), f.executions.Load())
}

func TestLenientModeAllowsCallsBeforeInitialize(t *testing.T) {
	f := newFixture(t, Options{})
	resp := call(t, f.dispatcher, "1", "tools/call", toolCall("echo", map[string]any{"text": "x"}))
	require.Nil(t, resp.Error)
	assert.False(t, f.dispatcher.Session().Initialized())
}

func TestToolErrorsAndPanicsAreContained(t *testing.T) {
	f := newFixture(t, Options{},
		registry.Entry{
			Descriptor: registry.Descriptor{Name: "failing", InputSchema: schema.New()},
			Tool: registry.ToolFunc(func(context.Context, map[string]any) (any, error) {
				return nil, errors.New("wiki unreachable")
			}),
		},
		registry.Entry{
			Descriptor: registry.Descriptor{Name: "panicking", InputSchema: schema.New()},
			Tool: registry.ToolFunc(func(context.Context, map[string]any) (any, error) {
				panic("boom")
			}),
		},
	)

	resp := call(t, f.dispatcher, "1", "tools/call", toolCall("failing", nil))
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeToolExecutionFailed, resp.Error.Code)
	assert.Equal(t, "wiki unreachable", resp.Error.Message)

	resp = call(t, f.dispatcher, "2", "tools/call", toolCall("panicking", nil))
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeToolExecutionFailed, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "boom")

	// the dispatcher keeps serving after a panic
	resp = call(t, f.dispatcher, "3", "ping", nil)
	assert.Nil(t, resp.Error)
}

func TestToolTimeoutDiscardsLateResult(t *testing.T) {
	release := make(chan struct{})
	finished := make(chan struct{})
	f := newFixture(t, Options{ToolTimeout: 20 * time.Millisecond}, registry.Entry{
		Descriptor: registry.Descriptor{Name: "stuck", InputSchema: schema.New()},
		Tool: registry.ToolFunc(func(context.Context, map[string]any) (any, error) {
			defer close(finished)
			<-release
			return "late", nil
		}),
	})

	resp := call(t, f.dispatcher, "1", "tools/call", toolCall("stuck", nil))
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeToolExecutionFailed, resp.Error.Code)
	assert.True(t, resp.Error.IsTimeout())

	close(release)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("late tool never completed its send")
	}

	resp = call(t, f.dispatcher, "2", "tools/call", toolCall("echo", map[string]any{"text": "x"}))
	assert.Nil(t, resp.Error)
}

func TestCallerCancellationIsNotATimeout(t *testing.T) {
	f := newFixture(t, Options{}, registry.Entry{
		Descriptor: registry.Descriptor{Name: "blocking", InputSchema: schema.New()},
		Tool: registry.ToolFunc(func(ctx context.Context, _ map[string]any) (any, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}),
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, rpcErr := f.dispatcher.CallTool(ctx, protocol.CallToolParams{Name: "blocking"})
	require.NotNil(t, rpcErr)
	assert.Equal(t, protocol.CodeToolExecutionFailed, rpcErr.Code)
	assert.False(t, rpcErr.IsTimeout())
}

func TestConcurrentCallsDoNotBlockEachOther(t *testing.T) {
	slowStarted := make(chan struct{})
	releaseSlow := make(chan struct{})
	f := newFixture(t, Options{}, registry.Entry{
		Descriptor: registry.Descriptor{Name: "slow", InputSchema: schema.New()},
		Tool: registry.ToolFunc(func(context.Context, map[string]any) (any, error) {
			close(slowStarted)
			<-releaseSlow
			return map[string]any{"which": "slow"}, nil
		}),
	})

	var wg sync.WaitGroup
	var slowResp *protocol.Response
	wg.Add(1)
	go func() {
		defer wg.Done()
		slowResp = call(t, f.dispatcher, "1", "tools/call", toolCall("slow", nil))
	}()
	<-slowStarted

	fast := call(t, f.dispatcher, "2", "tools/call", toolCall("echo", map[string]any{"text": "fast"}))
	require.Nil(t, fast.Error)
	assert.Equal(t, json.RawMessage("2"), fast.ID)

	close(releaseSlow)
	wg.Wait()
	require.Nil(t, slowResp.Error)
	assert.Equal(t, json.RawMessage("1"), slowResp.ID)
	assert.JSONEq(t, `{"which":"slow"}`, slowResp.Result.(*protocol.CallToolResult).Content[0].Text)
}

func TestUnserializablePayloadFails(t *testing.T) {
	f := newFixture(t, Options{}, registry.Entry{
		Descriptor: registry.Descriptor{Name: "chan", InputSchema: schema.New()},
		Tool: registry.ToolFunc(func(context.Context, map[string]any) (any, error) {
			return make(chan int), nil
		}),
	})
	resp := call(t, f.dispatcher, "1", "tools/call", toolCall("chan", nil))
	require.NotNil(t, resp.Error)
	assert.Equal(t, protocol.CodeToolExecutionFailed, resp.Error.Code)
}

func TestHandleLogsFailures(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)
	d := New(registry.New(), Options{}, WithLogger(logger))
	call(t, d, "1", "nope", nil)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, protocol.CodeMethodNotFound, entry.Data["code"])
	assert.Equal(t, "nope", entry.Data["method"])
}
