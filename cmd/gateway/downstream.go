package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPHandler adapts a serverless function endpoint to the router's
// Handler interface. Each invocation posts {action, payload} to the
// function URL and passes the JSON result through untouched.
type HTTPHandler struct {
	name       string
	url        string
	credential string
	httpClient *http.Client
}

// NewHTTPHandler creates a downstream function adapter.
func NewHTTPHandler(name, url, credential string) *HTTPHandler {
	return &HTTPHandler{
		name:       name,
		url:        url,
		credential: credential,
		// The router bounds invocation time via context; this is a
		// safety net for handlers invoked outside it.
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

type downstreamRequest struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type downstreamError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Invoke implements router.Handler.
func (h *HTTPHandler) Invoke(ctx context.Context, action string, payload json.RawMessage) (interface{}, error) {
	body, err := json.Marshal(downstreamRequest{Action: action, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.credential != "" {
		req.Header.Set("X-Service-Credential", h.credential)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", h.name, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response: %w", h.name, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var de downstreamError
		if json.Unmarshal(data, &de) == nil && de.Message != "" {
			return nil, fmt.Errorf("%s: %s", h.name, de.Message)
		}
		return nil, fmt.Errorf("%s: status %d", h.name, resp.StatusCode)
	}

	if len(data) == 0 {
		return nil, nil
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", h.name, err)
	}
	return out, nil
}
