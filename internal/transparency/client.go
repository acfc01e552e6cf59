// Package transparency implements the HTTP client for the DSA Art.24(5)
// Transparency Database. Submissions are redacted statements of reasons; the
// export queue in the services layer owns retry budgeting and dead-lettering,
// while this client handles the wire protocol and transient-failure retries
// within a single attempt.
package transparency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"

	"github.com/cultivarhq/go-moderation-backend/internal/config"
)

// ErrDisabled is returned when no endpoint is configured. The export queue
// leaves rows pending so enabling the endpoint later drains the backlog.
var ErrDisabled = errors.New("transparency: no endpoint configured")

// Submission is the redacted statement-of-reasons payload. No reporter or
// user identity ever crosses this boundary.
type Submission struct {
	StatementID        string   `json:"statement_id"`
	DecisionGround     string   `json:"decision_ground"`
	LegalReference     string   `json:"legal_reference,omitempty"`
	Facts              string   `json:"facts_and_circumstances"`
	Action             string   `json:"action"`
	ContentType        string   `json:"content_type"`
	AutomatedDetection bool     `json:"automated_detection"`
	AutomatedDecision  bool     `json:"automated_decision"`
	TerritorialScope   []string `json:"territorial_scope,omitempty"`
	DecidedAt          string   `json:"decided_at"`
}

type submitResponse struct {
	UUID string `json:"uuid"`
}

// Client submits statements of reasons to the Transparency Database.
type Client struct {
	http     *retryablehttp.Client
	endpoint string
	apiKey   string
}

// NewClient builds a client from configuration. Transient HTTP failures are
// retried with backoff inside one Submit call; the caller's attempt budget is
// spent one Submit at a time.
func NewClient(cfg config.TransparencyConfig) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil
	return &Client{http: rc, endpoint: cfg.Endpoint, apiKey: cfg.APIKey}
}

// Submit sends one statement and returns the remote correlation id. The
// idempotency key deduplicates retried submissions on the remote side.
func (c *Client) Submit(ctx context.Context, idempotencyKey string, sub Submission) (string, error) {
	if c.endpoint == "" {
		return "", ErrDisabled
	}
	body, err := json.Marshal(sub)
	if err != nil {
		return "", err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("transparency: submit returned %d", resp.StatusCode)
	}
	var out submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("transparency: decode response: %w", err)
	}
	if out.UUID == "" {
		return "", errors.New("transparency: response missing uuid")
	}
	return out.UUID, nil
}
