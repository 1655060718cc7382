// Package stdio serves the dispatcher over newline-delimited JSON-RPC on a reader/writer pair,
// normally the process's stdin and stdout.
package stdio

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sync"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"chat-help-mcp/internal/dispatch"
	"chat-help-mcp/internal/protocol"
)

const (
	// DefaultMaxLineBytes caps a single inbound envelope.
	DefaultMaxLineBytes = 1 << 20
	maxInFlight         = 32
)

// Transport reads one envelope per line and writes one response per line.
type Transport struct {
	dispatcher   *dispatch.Dispatcher
	in           io.Reader
	out          io.Writer
	writeMu      sync.Mutex
	maxLineBytes int
	logger       log.FieldLogger
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the logger. Logs must not go to the same stream as out.
func WithLogger(l log.FieldLogger) Option {
	return func(t *Transport) { t.logger = l }
}

// WithMaxLineBytes caps the length of one inbound line.
func WithMaxLineBytes(n int) Option {
	return func(t *Transport) {
		if n > 0 {
			t.maxLineBytes = n
		}
	}
}

// New builds a transport over in and out.
func New(d *dispatch.Dispatcher, in io.Reader, out io.Writer, options ...Option) *Transport {
	t := &Transport{
		dispatcher:   d,
		in:           in,
		out:          out,
		maxLineBytes: DefaultMaxLineBytes,
		logger:       log.StandardLogger(),
	}
	for _, o := range options {
		o(t)
	}
	return t
}

// Serve handles lines until in reaches EOF or ctx is done, then waits for in-flight calls. Calls run
// concurrently and each reply is written as one whole line in completion order. A clean EOF or a
// cancelled ctx returns nil.
func (t *Transport) Serve(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInFlight)

	lines := make(chan []byte)
	scanErr := make(chan error, 1)
	go t.scan(gctx, lines, scanErr)

	t.logger.Info("serving MCP over stdio")
	var err error
loop:
	for {
		select {
		case <-gctx.Done():
			break loop
		case line, ok := <-lines:
			if !ok {
				err = <-scanErr
				break loop
			}
			g.Go(func() error {
				return t.handleLine(gctx, line)
			})
		}
	}

	if werr := g.Wait(); werr != nil {
		return werr
	}
	t.logger.Info("stdio session ended")
	return err
}

func (t *Transport) scan(ctx context.Context, lines chan<- []byte, errc chan<- error) {
	defer close(lines)
	sc := bufio.NewScanner(t.in)
	sc.Buffer(make([]byte, 0, 64*1024), t.maxLineBytes)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		select {
		case lines <- append([]byte(nil), line...):
		case <-ctx.Done():
			errc <- nil
			return
		}
	}
	if err := sc.Err(); err != nil {
		errc <- errors.Wrap(err, "reading stdin")
		return
	}
	errc <- nil
}

func (t *Transport) handleLine(ctx context.Context, line []byte) error {
	resp := t.dispatcher.HandleMessage(ctx, line)
	if resp == nil {
		return nil
	}
	payload, err := json.Marshal(resp)
	if err != nil {
		t.logger.WithError(err).Error("failed to encode response")
		payload, _ = json.Marshal(protocol.NewErrorResponse(resp.ID, protocol.NewInternalError("response could not be encoded")))
	}
	return t.write(payload)
}

func (t *Transport) write(payload []byte) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	if _, err := t.out.Write(append(payload, '\n')); err != nil {
		return errors.Wrap(err, "writing response")
	}
	return nil
}
