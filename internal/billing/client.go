// Package billing wraps the external billing system behind a small typed
// client. Authentication only needs one capability from it: create a
// customer record and hand back its id.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Client is the boundary to the external billing system.
type Client interface {
	// CreateCustomer registers a customer for the given user details and
	// returns the billing system's customer id.
	CreateCustomer(ctx context.Context, name, email string) (string, error)
}

// HTTPClient talks to the billing provider's REST API.
//
// The request runs under a bounded deadline with a single retry on
// transient failure: a billing outage must degrade the login flow, not
// hang it. Retrying a create is acceptable here — a duplicate customer on
// the provider side is an accepted (and reconciled-elsewhere) cost, the
// same trade the concurrent-login race already makes.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient creates a billing client for the given API base URL.
// timeout bounds each individual attempt.
func NewHTTPClient(baseURL, apiKey string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// CreateCustomer POSTs to /v1/customers and returns the new customer id.
func (c *HTTPClient) CreateCustomer(ctx context.Context, name, email string) (string, error) {
	if c.baseURL == "" {
		return "", errors.New("billing: no provider configured")
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		id, err := c.createOnce(ctx, name, email)
		if err == nil {
			return id, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			// The caller's deadline is gone; a retry cannot succeed.
			break
		}
	}
	return "", lastErr
}

func (c *HTTPClient) createOnce(ctx context.Context, name, email string) (string, error) {
	payload, err := json.Marshal(map[string]string{
		"name":  name,
		"email": email,
	})
	if err != nil {
		return "", fmt.Errorf("billing: encoding customer payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/customers", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("billing: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("billing: calling provider: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("billing: provider returned status %d", resp.StatusCode)
	}

	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("billing: decoding provider response: %w", err)
	}
	if body.ID == "" {
		return "", errors.New("billing: provider returned an empty customer id")
	}

	return body.ID, nil
}
