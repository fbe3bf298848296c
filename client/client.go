// Package client is a Go client for the ragchat HTTP API. It mirrors what a
// frontend does: synchronous chat with retry, and SSE streaming that
// tolerates malformed frames instead of aborting mid-answer.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dataninja/ragchat/logging"
)

// Options configure the client.
type Options struct {
	// HTTPClient is the transport; defaults to one with a request timeout
	// suited for non-streaming calls.
	HTTPClient *http.Client
	// MaxRetries bounds retry attempts for the synchronous Chat call.
	MaxRetries int
	// RetryDelay is the pause between retries.
	RetryDelay time.Duration
	// Logger receives client events.
	Logger logging.Logger
}

// Client talks to a ragchat server.
type Client struct {
	baseURL string
	opts    Options
}

// New creates a client for the server at baseURL (e.g. "http://localhost:8000").
func New(baseURL string, optFns ...func(o *Options)) *Client {
	opts := Options{
		HTTPClient: &http.Client{Timeout: 120 * time.Second},
		MaxRetries: 3,
		RetryDelay: time.Second,
		Logger:     logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), opts: opts}
}

type chatRequest struct {
	UserPrompt string `json:"user_prompt"`
}

type chatResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Chat sends a prompt to POST /chat and returns the complete answer.
// Transport failures and 5xx responses are retried with a fixed delay; 4xx
// responses fail immediately since retrying cannot fix the request.
func (c *Client) Chat(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			c.opts.Logger.Warn("chat retry", "attempt", attempt, "error", lastErr.Error())
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(c.opts.RetryDelay):
			}
		}

		answer, retryable, err := c.chatOnce(ctx, prompt)
		if err == nil {
			return answer, nil
		}
		if !retryable {
			return "", err
		}
		lastErr = err
	}
	return "", fmt.Errorf("chat failed after %d attempts: %w", c.opts.MaxRetries+1, lastErr)
}

func (c *Client) chatOnce(ctx context.Context, prompt string) (answer string, retryable bool, err error) {
	resp, err := c.post(ctx, "/chat", prompt)
	if err != nil {
		return "", true, err
	}
	defer resp.Body.Close()

	var body chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", true, fmt.Errorf("decode response: %w", err)
	}
	switch {
	case resp.StatusCode == http.StatusOK:
		return body.Response, false, nil
	case resp.StatusCode >= 500:
		return "", true, fmt.Errorf("server error %d: %s", resp.StatusCode, body.Error)
	default:
		return "", false, fmt.Errorf("request rejected %d: %s", resp.StatusCode, body.Error)
	}
}

// ChatStream sends a prompt to POST /chat/stream and invokes onFragment for
// every content fragment as it arrives. The stream ends at the server's
// terminating sentinel. Malformed data lines are skipped, not fatal; an
// in-band error frame ends the stream with that error after all preceding
// content was delivered.
func (c *Client) ChatStream(ctx context.Context, prompt string, onFragment func(text string)) error {
	resp, err := c.post(ctx, "/chat/stream", prompt)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("stream rejected %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		payload := strings.TrimPrefix(line, "data: ")
		if payload == "[DONE]" {
			return nil
		}

		var frame struct {
			Content *string `json:"content"`
			Error   *string `json:"error"`
		}
		if err := json.Unmarshal([]byte(payload), &frame); err != nil {
			c.opts.Logger.Debug("skipping malformed stream frame", "payload", payload)
			continue
		}
		if frame.Error != nil {
			return fmt.Errorf("stream error: %s", *frame.Error)
		}
		if frame.Content != nil {
			onFragment(*frame.Content)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read stream: %w", err)
	}
	return fmt.Errorf("stream ended without done sentinel")
}

// Health checks GET /health.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned %d", resp.StatusCode)
	}
	return nil
}

// Config fetches the server's public configuration from GET /config.
func (c *Client) Config(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/config", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch config: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("config returned %d", resp.StatusCode)
	}
	var cfg map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func (c *Client) post(ctx context.Context, path, prompt string) (*http.Response, error) {
	payload, err := json.Marshal(chatRequest{UserPrompt: prompt})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post %s: %w", path, err)
	}
	return resp, nil
}
