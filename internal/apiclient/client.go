// Package apiclient is a typed HTTP client for the payments backend.
package apiclient

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
	statusSuccess = "success"
	statusError   = "error"
)

// APIError is an application level rejection returned by the backend.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend rejected request (http %d): %s", e.Status, e.Message)
}

// IsTransport reports whether err happened before the backend produced an
// application answer: network failures, timeouts and undecodable replies.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	return !errors.As(err, &apiErr)
}

// Retryable reports whether the same request may succeed later. Transport
// failures, server errors, throttling, in-flight duplicates and expired
// sessions are retryable; validation and business rejections are not.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	switch apiErr.Status {
	case http.StatusUnauthorized, http.StatusRequestTimeout, http.StatusConflict, http.StatusTooManyRequests:
		return true
	}
	return apiErr.Status >= 500
}

// RegisterRequest creates an account.
type RegisterRequest struct {
	Name string `json:"name"`
	Num  string `json:"num"`
	Pass string `json:"pass"`
}

// LoginRequest authenticates an existing account.
type LoginRequest struct {
	Num  string `json:"num"`
	Pass string `json:"pass"`
}

// TransferRequest moves amount from one number to another.
type TransferRequest struct {
	From   string `json:"num_from"`
	To     string `json:"num_to"`
	Amount int64  `json:"amount"`
}

// Statement is the authoritative balance and log for the caller.
type Statement struct {
	Balance int64
	Logs    []string
}

type envelope struct {
	Status  string   `json:"status"`
	Error   string   `json:"error,omitempty"`
	Token   string   `json:"token,omitempty"`
	Logs    []string `json:"logs,omitempty"`
	Balance *int64   `json:"balance,omitempty"`
}

// Client talks to the backend at baseURL.
type Client struct {
	baseURL string
	client  *http.Client
}

// New builds a client whose requests are bounded by timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Register creates an account and returns its bearer token.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (string, error) {
	return c.token(ctx, "/api/register", req)
}

// Login returns a bearer token for existing credentials.
func (c *Client) Login(ctx context.Context, req LoginRequest) (string, error) {
	return c.token(ctx, "/api/login", req)
}

// Transfer submits a transfer. A non-empty idempotencyKey makes replays safe.
func (c *Client) Transfer(ctx context.Context, token string, req TransferRequest, idempotencyKey string) error {
	var env envelope
	return c.do(ctx, http.MethodPost, "/api/transfer", token, idempotencyKey, req, &env)
}

// Refetch returns the caller's balance and full log.
func (c *Client) Refetch(ctx context.Context, token string) (Statement, error) {
	var env envelope
	if err := c.do(ctx, http.MethodGet, "/api/refetch", token, "", nil, &env); err != nil {
		return Statement{}, err
	}
	if env.Balance == nil {
		return Statement{}, errors.New("refetch: missing balance in response")
	}
	logs := env.Logs
	if logs == nil {
		logs = []string{}
	}
	return Statement{Balance: *env.Balance, Logs: logs}, nil
}

func (c *Client) token(ctx context.Context, path string, body any) (string, error) {
	var env envelope
	if err := c.do(ctx, http.MethodPost, path, "", "", body, &env); err != nil {
		return "", err
	}
	if env.Token == "" {
		return "", fmt.Errorf("%s: missing token in response", path)
	}
	return env.Token, nil
}

func (c *Client) do(ctx context.Context, method, path, token, idempotencyKey string, body any, out *envelope) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, path, err)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%s %s: unexpected status code: %d body=%q", method, path, resp.StatusCode, string(raw))
		}
		return fmt.Errorf("%s %s: failed to decode json: %w body=%q", method, path, err, string(raw))
	}

	switch {
	case out.Status == statusSuccess && resp.StatusCode < 300:
		return nil
	case out.Status == statusError || resp.StatusCode >= 400:
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: msg}
	default:
		return fmt.Errorf("%s %s: unexpected status %q body=%q", method, path, out.Status, string(raw))
	}
}
