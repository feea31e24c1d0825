// Package sidecar is the HTTP client for the local SkillGate decision
// service. The sidecar performs the authenticated policy-decision and
// entitlement queries the editor cannot do itself; this client is a thin,
// timeout-bounded pass-through and implements none of the decision logic.
package sidecar

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultBaseURL is where a locally started sidecar listens.
	DefaultBaseURL = "http://127.0.0.1:9911"

	// healthTimeout keeps the reachability probe fast enough for UI use.
	healthTimeout = 1200 * time.Millisecond

	// requestTimeout bounds entitlement and decision calls.
	requestTimeout = 5 * time.Second

	// maxResponseBytes caps how much of a response body is read.
	maxResponseBytes = 1 << 20
)

// ErrNeedsLogin reports a 401 from the sidecar: the session license is
// missing or expired and the user must authenticate.
var ErrNeedsLogin = errors.New("skillgate: sidecar session needs login")

// DegradedError reports a non-2xx, non-401 sidecar response: the service is
// up but answering in a limited or degraded mode.
type DegradedError struct {
	StatusCode int
	Body       string
}

func (e *DegradedError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("skillgate: sidecar returned %d", e.StatusCode)
	}
	return fmt.Sprintf("skillgate: sidecar returned %d: %s", e.StatusCode, e.Body)
}

// Entitlements is the sidecar's view of the active license.
type Entitlements struct {
	Tier        string `json:"tier"` // free | pro | team | enterprise
	LicenseMode string `json:"license_mode"`
}

// Client talks to one sidecar instance. Safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the given base URL, or DefaultBaseURL when empty.
// Timeouts are applied per call, not on the underlying http.Client, because
// the health probe runs on a much tighter budget than decision calls.
func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{},
	}
}

// BaseURL reports the configured sidecar address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health reports whether the sidecar answers GET /v1/health with a 2xx.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/health", nil)
	if err != nil {
		return fmt.Errorf("skillgate: build health request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("skillgate: sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("skillgate: sidecar health returned %d", resp.StatusCode)
	}
	return nil
}

// Entitlements fetches the active license tier and mode. A 401 maps to
// ErrNeedsLogin; any other non-2xx maps to a DegradedError so callers can
// present "limited" rather than "broken".
func (c *Client) Entitlements(ctx context.Context) (Entitlements, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/entitlements", nil)
	if err != nil {
		return Entitlements{}, fmt.Errorf("skillgate: build entitlements request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return Entitlements{}, fmt.Errorf("skillgate: sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return Entitlements{}, err
	}
	if err := classifyStatus(resp.StatusCode, body); err != nil {
		return Entitlements{}, err
	}

	var ent Entitlements
	if err := json.Unmarshal(body, &ent); err != nil {
		return Entitlements{}, fmt.Errorf("skillgate: decode entitlements: %w", err)
	}
	return ent, nil
}

// post sends a JSON body and returns the raw response body on 2xx.
func (c *Client) post(ctx context.Context, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("skillgate: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("skillgate: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("skillgate: sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := readBody(resp)
	if err != nil {
		return nil, err
	}
	if err := classifyStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("skillgate: read sidecar response: %w", err)
	}
	return body, nil
}

// classifyStatus maps response codes to the error taxonomy: 2xx is success,
// 401 needs login, everything else is degraded service.
func classifyStatus(status int, body []byte) error {
	switch {
	case status >= 200 && status <= 299:
		return nil
	case status == http.StatusUnauthorized:
		return ErrNeedsLogin
	default:
		return &DegradedError{StatusCode: status, Body: strings.TrimSpace(string(body))}
	}
}
