package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// DefaultURL is where the canvas serves the queue.
const DefaultURL = "http://localhost:5174"

// Size bounds accepted by the client.
const (
	MinWidth  = 200
	MaxWidth  = 2000
	MinHeight = 150
	MaxHeight = 1500
)

// SpawnParams is a spawn request. Zero Width/Height take the defaults.
type SpawnParams struct {
	Name    string  `json:"name"`
	X       float64 `json:"x"`
	Y       float64 `json:"y"`
	Width   float64 `json:"width"`
	Height  float64 `json:"height"`
	Command string  `json:"command,omitempty"`
	Profile string  `json:"profile,omitempty"`
}

// Validate fills defaults and checks the size bounds.
func (p *SpawnParams) Validate() error {
	if p.Name == "" {
		p.Name = DefaultName
	}
	if p.Width == 0 {
		p.Width = DefaultWidth
	}
	if p.Height == 0 {
		p.Height = DefaultHeight
	}
	if p.Width < MinWidth || p.Width > MaxWidth {
		return fmt.Errorf("width %v out of range %d-%d", p.Width, MinWidth, MaxWidth)
	}
	if p.Height < MinHeight || p.Height > MaxHeight {
		return fmt.Errorf("height %v out of range %d-%d", p.Height, MinHeight, MaxHeight)
	}
	return nil
}

// SpawnResult is the queue's answer to a spawn request.
type SpawnResult struct {
	Success bool         `json:"success"`
	Command SpawnCommand `json:"command"`
	Message string       `json:"message"`
	Error   string       `json:"error"`
}

// Client talks to the queue endpoints of a running canvas.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient returns a client for baseURL, or DefaultURL when empty.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 5 * time.Second},
	}
}

// Spawn queues a terminal.
func (c *Client) Spawn(ctx context.Context, params SpawnParams) (SpawnResult, error) {
	if err := params.Validate(); err != nil {
		return SpawnResult{}, err
	}
	var res SpawnResult
	if err := c.do(ctx, http.MethodPost, "/api/canvas/spawn", params, &res); err != nil {
		return SpawnResult{}, err
	}
	return res, nil
}

// Pending implements Source.
func (c *Client) Pending(ctx context.Context) ([]SpawnCommand, error) {
	var res pendingResponse
	if err := c.do(ctx, http.MethodGet, "/api/canvas/pending", nil, &res); err != nil {
		return nil, err
	}
	return res.Commands, nil
}

// Ack implements Source.
func (c *Client) Ack(ctx context.Context, ids []string) (int, error) {
	var res ackResponse
	if err := c.do(ctx, http.MethodPost, "/api/canvas/ack", ackRequest{IDs: ids}, &res); err != nil {
		return 0, err
	}
	return res.Remaining, nil
}

// Health reports the queue status.
func (c *Client) Health(ctx context.Context) (HealthResponse, error) {
	var res HealthResponse
	err := c.do(ctx, http.MethodGet, "/api/canvas/health", nil, &res)
	return res, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if errors.Is(err, syscall.ECONNREFUSED) {
			return fmt.Errorf("cannot connect to tabz-canvas at %s; make sure the canvas server is running (tabz-canvas serve): %w", c.BaseURL, err)
		}
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		var e ErrorResponse
		if json.Unmarshal(data, &e) == nil && e.Error != "" {
			return fmt.Errorf("HTTP %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return nil
}
