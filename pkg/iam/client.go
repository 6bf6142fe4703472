// Package iam talks to the identity server's admin REST API (Keycloak shaped).
package iam

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

var (
	// ErrClientNotFound is returned when the client lookup yields no match.
	ErrClientNotFound = errors.New("iam client not found")
	// ErrMalformed is returned when a response body cannot be decoded.
	ErrMalformed = errors.New("iam malformed response")
)

// StatusError reports a non-2xx response.
type StatusError struct {
	Op   string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("iam %s: unexpected status %d", e.Op, e.Code)
}

// IsNotFound reports whether err is a 404 StatusError.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusNotFound
}

// Config configures the admin API client.
type Config struct {
	BaseURL string // https://iam.example.com
	Realm   string

	// Service account used for the admin API. When TokenURL is empty requests
	// are sent without a bearer.
	TokenURL     string
	ClientID     string
	ClientSecret string

	Timeout time.Duration
}

// Resource is one authorization resource registered on a resource server.
type Resource struct {
	ID     string  `json:"_id"`
	Name   string  `json:"name"`
	Scopes []Scope `json:"scopes"`
}

// Scope is a resource scope.
type Scope struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// Client calls the admin API. Safe for concurrent use.
type Client struct {
	base    string
	timeout time.Duration
	http    *http.Client
}

// NewClient builds a Client. The returned client obtains and caches a service
// account token with the client-credentials grant when cfg.TokenURL is set.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	base := &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	hc := base
	if cfg.TokenURL != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
		}
		hc = cc.Client(context.WithValue(context.Background(), oauth2.HTTPClient, base))
	}
	return &Client{
		base:    strings.TrimRight(cfg.BaseURL, "/") + "/admin/realms/" + url.PathEscape(cfg.Realm),
		timeout: timeout,
		http:    hc,
	}
}

// LookupClient resolves a public client id to the server's internal id.
func (c *Client) LookupClient(ctx context.Context, clientID string) (string, error) {
	var clients []struct {
		ID       string `json:"id"`
		ClientID string `json:"clientId"`
	}
	u := c.base + "/clients?clientId=" + url.QueryEscape(clientID)
	if err := c.get(ctx, "lookup client", u, &clients); err != nil {
		return "", err
	}
	if len(clients) == 0 || clients[0].ID == "" {
		return "", fmt.Errorf("%w: %s", ErrClientNotFound, clientID)
	}
	return clients[0].ID, nil
}

// ListResources lists the authorization resources of the client with internal id.
func (c *Client) ListResources(ctx context.Context, internalID string) ([]Resource, error) {
	var out []Resource
	u := c.base + "/clients/" + url.PathEscape(internalID) + "/authz/resource-server/resource"
	if err := c.get(ctx, "list resources", u, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) get(ctx context.Context, op, u string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("iam %s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("iam %s: %w", op, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return &StatusError{Op: op, Code: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, op, err)
	}
	return nil
}
