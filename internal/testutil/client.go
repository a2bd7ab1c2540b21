// Package testutil provides the HTTP client, Postgres container, OpenAPI
// checks and transaction fakes used by tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
)

// Client is an HTTP client for testing API endpoints.
type Client struct {
	BaseURL     string
	Token       string
	HTTPClient  *http.Client
	Validator   *OpenAPIValidator
	ValidateAPI bool
	t           *testing.T
}

// NewClientWithValidator creates a new test client with a pre-loaded OpenAPI validator.
// Use this in TestMain where *testing.T is not available during initialization.
func NewClientWithValidator(baseURL string, validator *OpenAPIValidator) *Client {
	return &Client{
		BaseURL:     baseURL,
		HTTPClient:  &http.Client{},
		Validator:   validator,
		ValidateAPI: true,
	}
}

// SetT sets the testing.T for validation error reporting.
// This should be called at the beginning of each test when using a shared client.
func (c *Client) SetT(t *testing.T) {
	c.t = t
}

// SignIn authenticates as wallet: it requests a challenge, signs it and
// stores the returned bearer token for subsequent requests.
func (c *Client) SignIn(t *testing.T, wallet solana.PrivateKey) {
	t.Helper()
	c.t = t

	resp, err := c.POST("/api/v1/auth/challenge", map[string]string{
		"public_key": wallet.PublicKey().String(),
	})
	if err != nil {
		t.Fatalf("challenge request failed: %v", err)
	}
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("challenge failed: status=%d body=%s", resp.StatusCode, ReadBody(t, resp))
	}
	var challenge struct {
		Data struct {
			Nonce   string `json:"nonce"`
			Message string `json:"message"`
		} `json:"data"`
	}
	DecodeJSON(t, resp, &challenge)

	signature, err := wallet.Sign([]byte(challenge.Data.Message))
	if err != nil {
		t.Fatalf("sign challenge: %v", err)
	}

	resp, err = c.POST("/api/v1/auth/verify", map[string]string{
		"public_key": wallet.PublicKey().String(),
		"nonce":      challenge.Data.Nonce,
		"signature":  signature.String(),
	})
	if err != nil {
		t.Fatalf("verify request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("verify failed: status=%d body=%s", resp.StatusCode, ReadBody(t, resp))
	}
	var token struct {
		Data struct {
			AccessToken string `json:"access_token"`
		} `json:"data"`
	}
	DecodeJSON(t, resp, &token)
	c.Token = token.Data.AccessToken
}

// ClearToken removes the stored token.
func (c *Client) ClearToken() {
	c.Token = ""
}

// GET performs a GET request.
func (c *Client) GET(path string) (*http.Response, error) {
	return c.do("GET", path, nil)
}

// POST performs a POST request with JSON body.
func (c *Client) POST(path string, body interface{}) (*http.Response, error) {
	return c.do("POST", path, body)
}

func (c *Client) do(method, path string, body interface{}) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}

	if c.ValidateAPI && c.Validator != nil && c.t != nil {
		route, _, _ := strings.Cut(path, "?")
		c.Validator.CheckResponse(c.t, method, route, resp)
	}

	return resp, nil
}

// DecodeJSON decodes response body into v.
func DecodeJSON(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// ReadBody reads and returns response body as string.
func ReadBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}
