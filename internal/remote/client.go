// Package remote is the HTTP client for the care data store. Its methods
// are the opaque operations the resilience layer executes; it performs no
// retries of its own.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/careops/caresync/internal/core/apperr"
)

// Config holds remote store settings.
type Config struct {
	BaseURL  string        `yaml:"base_url"`
	ProbeURL string        `yaml:"probe_url"`
	APIKey   string        `yaml:"api_key"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Client talks to the remote care data store.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client for the given store.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

// apiError is the error envelope the store returns.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return apperr.NewNetwork("remote call", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.decodeError(resp)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	} else {
		io.Copy(io.Discard, resp.Body)
	}
	return nil
}

// decodeError maps the store's status codes and error envelope onto the
// failure taxonomy so the retry layer can classify them.
func (c *Client) decodeError(resp *http.Response) error {
	var ae apiError
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	_ = json.Unmarshal(data, &ae)

	msg := ae.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	if ae.Code != "" {
		msg = fmt.Sprintf("%s (%s)", msg, ae.Code)
	}
	err := fmt.Errorf("remote store: %d %s", resp.StatusCode, msg)

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperr.NewAuth(msg, err)
	case http.StatusBadRequest, http.StatusNotFound,
		http.StatusConflict, http.StatusUnprocessableEntity:
		return apperr.NewValidation(msg, err)
	case http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return apperr.NewNetwork(msg, err)
	}

	// Backend-coded failures (unique violation, expired JWT) can arrive
	// with generic statuses; fall back to the message classifier.
	switch apperr.Classify(err) {
	case apperr.KindAuth:
		return apperr.NewAuth(msg, err)
	case apperr.KindValidation:
		return apperr.NewValidation(msg, err)
	}
	return err
}
