package dispatch

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"chat-help-mcp/internal/registry"
)

// Outcome is the result of running one tool: either a payload or a failure reason.
type Outcome struct {
	Success  bool
	Payload  any
	Err      string
	TimedOut bool
}

// execute runs the tool in its own goroutine bounded by the tool timeout. Panics and returned errors are
// both turned into failed outcomes. The result channel is buffered so a tool that finishes after the
// deadline completes its send and is dropped instead of leaking.
func (d *Dispatcher) execute(ctx context.Context, entry registry.Entry, args map[string]any) Outcome {
	ctx, cancel := context.WithTimeout(ctx, d.opts.ToolTimeout)
	defer cancel()

	logger := d.logger.WithField("tool", entry.Name)
	done := d.metrics.ToolStarted(entry.Name)

	results := make(chan Outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- Outcome{Err: fmt.Sprintf("tool %s panicked: %v", entry.Name, r)}
			}
		}()
		payload, err := entry.Tool.Execute(ctx, args)
		if err != nil {
			results <- Outcome{Err: err.Error()}
			return
		}
		results <- Outcome{Success: true, Payload: payload}
	}()

	select {
	case out := <-results:
		if out.Success {
			done("success")
		} else {
			done("failure")
			logger.Warnf("tool failed: %s", out.Err)
		}
		return out
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			done("timeout")
			logger.WithField("timeout", d.opts.ToolTimeout).Warn("tool timed out")
			return Outcome{
				Err:      fmt.Sprintf("tool %s timed out after %s", entry.Name, d.opts.ToolTimeout),
				TimedOut: true,
			}
		}
		done("cancelled")
		logger.WithError(ctx.Err()).Info("tool call cancelled by caller")
		return Outcome{Err: fmt.Sprintf("tool %s cancelled: %v", entry.Name, ctx.Err())}
	}
}
