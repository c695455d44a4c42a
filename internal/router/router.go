// Package router maps symbolic target names to invocable handlers. The
// routing table is built at startup and read-only while serving; adding a
// downstream target is one more Register call.
package router

import (
	"context"
	"encoding/json"
	"time"

	"github.com/assistdeck/gateway/internal/errors"
)

// Handler is a downstream unit of business logic reachable through the
// routing table.
type Handler interface {
	Invoke(ctx context.Context, action string, payload json.RawMessage) (interface{}, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, action string, payload json.RawMessage) (interface{}, error)

// Invoke implements Handler.
func (f HandlerFunc) Invoke(ctx context.Context, action string, payload json.RawMessage) (interface{}, error) {
	return f(ctx, action, payload)
}

// Result is the outcome of a dispatched call.
type Result struct {
	// Output is the handler's result, passed through verbatim.
	Output interface{}

	// Duration is the handler's wall-clock execution time.
	Duration time.Duration
}

// Table is the static routing table.
type Table struct {
	handlers map[string]Handler

	// timeout bounds each downstream invocation. Zero means no bound
	// beyond the caller's context.
	timeout time.Duration
}

// NewTable creates an empty routing table. timeout bounds every
// downstream invocation; a handler overrunning it surfaces as a
// DownstreamError rather than hanging the caller.
func NewTable(timeout time.Duration) *Table {
	return &Table{
		handlers: make(map[string]Handler),
		timeout:  timeout,
	}
}

// Register adds a handler for the target name. Call only during startup;
// the table is read-only once serving begins.
func (t *Table) Register(target string, h Handler) {
	t.handlers[target] = h
}

// Targets returns the registered target names.
func (t *Table) Targets() []string {
	names := make([]string, 0, len(t.handlers))
	for name := range t.handlers {
		names = append(names, name)
	}
	return names
}

// Route dispatches the payload to the named target. The router does not
// interpret or transform handler payloads.
func (t *Table) Route(ctx context.Context, target, action string, payload json.RawMessage) (*Result, error) {
	h, ok := t.handlers[target]
	if !ok {
		return nil, errors.UnknownTarget(target)
	}

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := h.Invoke(ctx, action, payload)
	elapsed := time.Since(start)

	if err != nil {
		return &Result{Duration: elapsed}, errors.Downstream(target, err)
	}
	return &Result{Output: out, Duration: elapsed}, nil
}
