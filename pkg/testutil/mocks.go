// Package testutil provides common testing utilities and mock
// implementations of the gateway's collaborator interfaces.
package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/assistdeck/gateway/internal/audit"
)

// SpyHandler is a router.Handler that records every invocation.
type SpyHandler struct {
	mu     sync.Mutex
	calls  []SpyCall
	result interface{}
	err    error
}

// SpyCall is one recorded handler invocation.
type SpyCall struct {
	Action  string
	Payload json.RawMessage
}

// NewSpyHandler creates a spy returning the given result.
func NewSpyHandler(result interface{}) *SpyHandler {
	return &SpyHandler{result: result}
}

// NewFailingHandler creates a spy that reports the given error.
func NewFailingHandler(err error) *SpyHandler {
	return &SpyHandler{err: err}
}

// Invoke implements router.Handler.
func (h *SpyHandler) Invoke(_ context.Context, action string, payload json.RawMessage) (interface{}, error) {
	h.mu.Lock()
	h.calls = append(h.calls, SpyCall{Action: action, Payload: payload})
	h.mu.Unlock()
	if h.err != nil {
		return nil, h.err
	}
	return h.result, nil
}

// Calls returns the recorded invocations.
func (h *SpyHandler) Calls() []SpyCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]SpyCall, len(h.calls))
	copy(out, h.calls)
	return out
}

// CallCount returns the number of recorded invocations.
func (h *SpyHandler) CallCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

// StaticValidator is a schemaguard.Validator with a fixed verdict.
type StaticValidator struct {
	Err error
}

// Validate implements schemaguard.Validator.
func (v *StaticValidator) Validate(context.Context, string) error { return v.Err }

// RecordingFixer is a schemaguard.Fixer that records fix requests and
// signals each one on a channel so tests can wait for async dispatch.
type RecordingFixer struct {
	mu       sync.Mutex
	requests []FixRequest

	// Done receives one value per fix request.
	Done chan struct{}
}

// FixRequest is one recorded remediation request.
type FixRequest struct {
	Operation string
	Reason    string
}

// NewRecordingFixer creates a recording fixer.
func NewRecordingFixer() *RecordingFixer {
	return &RecordingFixer{Done: make(chan struct{}, 16)}
}

// RequestFix implements schemaguard.Fixer.
func (f *RecordingFixer) RequestFix(_ context.Context, operation, reason string) error {
	f.mu.Lock()
	f.requests = append(f.requests, FixRequest{Operation: operation, Reason: reason})
	f.mu.Unlock()
	f.Done <- struct{}{}
	return nil
}

// Requests returns the recorded fix requests.
func (f *RecordingFixer) Requests() []FixRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]FixRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

// FailingAuditStore is an audit.Store whose every write fails, for
// verifying that audit failures never reach the caller path.
type FailingAuditStore struct {
	mu       sync.Mutex
	attempts int
}

// WriteActivity implements audit.Store.
func (s *FailingAuditStore) WriteActivity(context.Context, audit.Entry) error {
	s.mu.Lock()
	s.attempts++
	s.mu.Unlock()
	return errors.New("audit store unreachable")
}

// WriteCallLog implements audit.Store.
func (s *FailingAuditStore) WriteCallLog(context.Context, audit.CallRecord) error {
	s.mu.Lock()
	s.attempts++
	s.mu.Unlock()
	return errors.New("audit store unreachable")
}

// Attempts returns the number of attempted writes.
func (s *FailingAuditStore) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}
