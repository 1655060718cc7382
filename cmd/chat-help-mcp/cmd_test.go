package main

import (
	"bufio"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-help-mcp/internal/config"
)

func TestNewHandlerServesBuiltinTools(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--wiki-base-url", "http://127.0.0.1:1"}))
	cfg, err := config.Load(viper.New(), fs)
	require.NoError(t, err)

	srv, err := newHandler(cfg)
	require.NoError(t, err)

	rr := httptest.NewRecorder()
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"tools_count":6`)

	rr = httptest.NewRecorder()
	body := strings.NewReader(`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"motivational_quote"}}`)
	srv.Router().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/", body))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `\"success\":true`)
}

func TestRootCommandRejectsInvalidConfig(t *testing.T) {
	cmd := rootCmd()
	cmd.SetArgs([]string{"--log-format", "xml"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_format")
}

func TestServeStdioAnswersOnStdout(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	config.RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"--stdio", "--wiki-base-url", "http://127.0.0.1:1"}))
	cfg, err := config.Load(viper.New(), fs)
	require.NoError(t, err)
	require.True(t, cfg.Stdio)

	inR, inW := io.Pipe()
	outR, outW := io.Pipe()
	done := make(chan error, 1)
	go func() {
		done <- serveStdio(context.Background(), cfg, inR, outW)
		_ = outW.Close()
	}()

	_, err = io.WriteString(inW, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`+"\n")
	require.NoError(t, err)
	line, err := bufio.NewReader(outR).ReadString('\n')
	require.NoError(t, err)
	assert.Contains(t, line, `"search_wiki"`)
	assert.Contains(t, line, `"motivational_quote"`)

	require.NoError(t, inW.Close())
	assert.NoError(t, <-done)
}
