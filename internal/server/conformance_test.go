package server

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	o "github.com/onsi/gomega"
	"github.com/sirupsen/logrus/hooks/test"

	"chat-help-mcp/internal/dispatch"
	"chat-help-mcp/internal/registry"
	"chat-help-mcp/internal/tools"
	"chat-help-mcp/internal/wiki"
)

// The built-in tool set served through the router must decode cleanly into a reference MCP client's types.

func newBuiltinServer(t *testing.T) *Server {
	t.Helper()
	g := o.NewWithT(t)

	wikiAPI := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(wikiAPI.Close)

	reg := registry.New()
	g.Expect(tools.Register(reg, tools.Deps{
		Wiki: wiki.New(wikiAPI.URL, nil, nil),
		Rand: rand.New(rand.NewSource(7)),
	})).To(o.Succeed())

	logger, _ := test.NewNullLogger()
	d := dispatch.New(reg, dispatch.Options{ServerName: "chat-help", ServerVersion: "1.0.0"}, dispatch.WithLogger(logger))
	return New(d, Config{Logger: logger})
}

type rpcEnvelope struct {
	ID     json.RawMessage `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func rpc(t *testing.T, s *Server, body string) rpcEnvelope {
	t.Helper()
	g := o.NewWithT(t)
	rr := httptest.NewRecorder()
	s.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body)))
	g.Expect(rr.Code).To(o.Equal(http.StatusOK))
	var env rpcEnvelope
	g.Expect(json.Unmarshal(rr.Body.Bytes(), &env)).To(o.Succeed())
	return env
}

func TestConformanceHandshakeAndListing(t *testing.T) {
	g := o.NewWithT(t)
	s := newBuiltinServer(t)

	env := rpc(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2024-11-05","clientInfo":{"name":"n8n","version":"1"}}}`)
	g.Expect(env.Error).To(o.BeNil())
	var initResult mcp.InitializeResult
	g.Expect(json.Unmarshal(env.Result, &initResult)).To(o.Succeed())
	g.Expect(initResult.ProtocolVersion).To(o.Equal("2024-11-05"))
	g.Expect(initResult.ServerInfo.Name).To(o.Equal("chat-help"))
	g.Expect(initResult.Capabilities.Tools).NotTo(o.BeNil())

	first := rpc(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/list"}`)
	second := rpc(t, s, `{"jsonrpc":"2.0","id":3,"method":"tools/list"}`)
	g.Expect(string(first.Result)).To(o.MatchJSON(string(second.Result)))

	var list mcp.ListToolsResult
	g.Expect(json.Unmarshal(first.Result, &list)).To(o.Succeed())
	names := make([]string, len(list.Tools))
	for i, tool := range list.Tools {
		names[i] = tool.Name
		g.Expect(tool.InputSchema.Type).To(o.Equal("object"))
	}
	g.Expect(names).To(o.Equal([]string{"search_wiki", "explain_concept", "analyze_code", "debug_helper", "get_joke", "motivational_quote"}))
	g.Expect(list.Tools[0].InputSchema.Required).To(o.ConsistOf("query"))
}

func TestConformanceToolCall(t *testing.T) {
	g := o.NewWithT(t)
	s := newBuiltinServer(t)

	env := rpc(t, s, `{"jsonrpc":"2.0","id":"j","method":"tools/call","params":{"name":"get_joke","arguments":{"language":"fr"}}}`)
	g.Expect(env.Error).To(o.BeNil())
	var result mcp.CallToolResult
	g.Expect(json.Unmarshal(env.Result, &result)).To(o.Succeed())
	g.Expect(result.Content).To(o.HaveLen(1))
	text, ok := result.Content[0].(mcp.TextContent)
	g.Expect(ok).To(o.BeTrue())

	var payload map[string]any
	g.Expect(json.Unmarshal([]byte(text.Text), &payload)).To(o.Succeed())
	g.Expect(payload).To(o.HaveKeyWithValue("success", true))
	g.Expect(payload).To(o.HaveKeyWithValue("language", "fr"))
	g.Expect(payload).To(o.HaveKey("answer"))

	// the wiki is down: search still succeeds with a fallback link
	env = rpc(t, s, `{"jsonrpc":"2.0","id":"w","method":"tools/call","params":{"name":"search_wiki","arguments":{"query":"tcp"}}}`)
	g.Expect(env.Error).To(o.BeNil())
	g.Expect(json.Unmarshal(env.Result, &result)).To(o.Succeed())
	g.Expect(result.Content[0].(mcp.TextContent).Text).To(o.ContainSubstring(`"wiki_url"`))

	env = rpc(t, s, `{"jsonrpc":"2.0","id":"e","method":"tools/call","params":{"name":"explain_concept","arguments":{}}}`)
	g.Expect(env.Error).NotTo(o.BeNil())
	g.Expect(env.Error.Code).To(o.Equal(-32602))
	g.Expect(env.Error.Message).To(o.ContainSubstring("concept"))
}
