package router

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gwerrors "github.com/assistdeck/gateway/internal/errors"
)

func TestRoute_Dispatch(t *testing.T) {
	table := NewTable(0)

	var gotAction string
	var gotPayload json.RawMessage
	table.Register("tasks", HandlerFunc(func(_ context.Context, action string, payload json.RawMessage) (interface{}, error) {
		gotAction = action
		gotPayload = payload
		return map[string]string{"status": "done"}, nil
	}))

	payload := json.RawMessage(`{"id":7}`)
	result, err := table.Route(context.Background(), "tasks", "complete", payload)
	if err != nil {
		t.Fatalf("Route() error = %v", err)
	}

	if gotAction != "complete" {
		t.Errorf("action = %q, want %q", gotAction, "complete")
	}
	if string(gotPayload) != `{"id":7}` {
		t.Errorf("payload = %s, want %s", gotPayload, payload)
	}

	out, ok := result.Output.(map[string]string)
	if !ok || out["status"] != "done" {
		t.Errorf("Output = %v, want handler result passed through", result.Output)
	}
}

func TestRoute_UnknownTarget(t *testing.T) {
	table := NewTable(0)

	_, err := table.Route(context.Background(), "nonexistent-handler", "x", nil)
	if !gwerrors.IsUnknownTarget(err) {
		t.Fatalf("Route() error = %v, want UnknownTarget", err)
	}
}

func TestRoute_DownstreamErrorPassedThrough(t *testing.T) {
	table := NewTable(0)
	table.Register("broken", HandlerFunc(func(context.Context, string, json.RawMessage) (interface{}, error) {
		return nil, errors.New("database on fire")
	}))

	result, err := table.Route(context.Background(), "broken", "x", nil)
	se := gwerrors.GetServiceError(err)
	if se == nil || se.Code != gwerrors.CodeDownstream {
		t.Fatalf("Route() error = %v, want DownstreamError", err)
	}
	// The handler's message is passed through verbatim.
	if se.Message != "database on fire" {
		t.Errorf("message = %q, want handler message", se.Message)
	}
	if result == nil {
		t.Error("result = nil, want timing even on failure")
	}
}

func TestRoute_Timeout(t *testing.T) {
	table := NewTable(20 * time.Millisecond)
	table.Register("slow", HandlerFunc(func(ctx context.Context, _ string, _ json.RawMessage) (interface{}, error) {
		select {
		case <-time.After(5 * time.Second):
			return "too late", nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}))

	start := time.Now()
	_, err := table.Route(context.Background(), "slow", "x", nil)
	if time.Since(start) > time.Second {
		t.Fatal("Route() did not honor the timeout")
	}

	se := gwerrors.GetServiceError(err)
	if se == nil || se.Code != gwerrors.CodeDownstream {
		t.Errorf("Route() error = %v, want DownstreamError on timeout", err)
	}
}

func TestTargets(t *testing.T) {
	table := NewTable(0)
	table.Register("a", HandlerFunc(func(context.Context, string, json.RawMessage) (interface{}, error) { return nil, nil }))
	table.Register("b", HandlerFunc(func(context.Context, string, json.RawMessage) (interface{}, error) { return nil, nil }))

	if got := len(table.Targets()); got != 2 {
		t.Errorf("len(Targets()) = %d, want 2", got)
	}
}
