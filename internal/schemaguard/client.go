package schemaguard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient calls the schema-management collaborator's validation and
// remediation endpoints over HTTP. It implements both Validator and Fixer.
type HTTPClient struct {
	baseURL    string
	credential string
	httpClient *http.Client
}

// HTTPClientConfig configures the collaborator client.
type HTTPClientConfig struct {
	// BaseURL is the collaborator's base URL, e.g. the schema-manager
	// function endpoint.
	BaseURL string

	// Credential is sent as the internal service credential header.
	Credential string

	// Timeout bounds each call. Defaults to 15s.
	Timeout time.Duration
}

// NewHTTPClient creates a collaborator client.
func NewHTTPClient(cfg HTTPClientConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		baseURL:    cfg.BaseURL,
		credential: cfg.Credential,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type validateRequest struct {
	Operation string `json:"operation"`
}

type validateResponse struct {
	Valid  bool   `json:"valid"`
	Reason string `json:"reason,omitempty"`
}

type fixRequest struct {
	Operation string `json:"operation"`
	Reason    string `json:"reason"`
	AutoFix   bool   `json:"auto_fix"`
}

// Validate asks the collaborator to approve the operation.
func (c *HTTPClient) Validate(ctx context.Context, operation string) error {
	var resp validateResponse
	if err := c.post(ctx, "/validate", validateRequest{Operation: operation}, &resp); err != nil {
		return fmt.Errorf("validator call: %w", err)
	}
	if !resp.Valid {
		if resp.Reason == "" {
			resp.Reason = "operation rejected by validator"
		}
		return fmt.Errorf("%s", resp.Reason)
	}
	return nil
}

// RequestFix asks the collaborator to remediate a rejected operation.
func (c *HTTPClient) RequestFix(ctx context.Context, operation, reason string) error {
	if err := c.post(ctx, "/fix", fixRequest{Operation: operation, Reason: reason, AutoFix: true}, nil); err != nil {
		return fmt.Errorf("fixer call: %w", err)
	}
	return nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.credential != "" {
		req.Header.Set("X-Service-Credential", c.credential)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(b))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
