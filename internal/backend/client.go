// Package backend connects canvas terminals to the terminal backend: an HTTP
// API that hands out tokens and sessions, and a WebSocket per session that
// carries input, output and resize messages.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/websocket"
)

// Default backend endpoints.
const (
	DefaultURL          = "http://localhost:8129"
	DefaultWebSocketURL = "ws://localhost:8129"
)

var logger *log.Logger

func init() {
	logger = log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "backend",
	})
}

// SetLogLevel sets the logging level for the backend package.
func SetLogLevel(level log.Level) {
	logger.SetLevel(level)
}

// StatusError is returned when the backend answers with a non-2xx status.
type StatusError struct {
	Op     string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: backend returned HTTP %d", e.Op, e.Status)
}

// Profile is a terminal profile defined in the backend.
type Profile struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	ThemeName  string `json:"themeName"`
	FontFamily string `json:"fontFamily"`
	FontSize   int    `json:"fontSize"`
	WorkingDir string `json:"workingDir,omitempty"`
	Command    string `json:"command,omitempty"`
	Category   string `json:"category,omitempty"`
}

// Client calls the backend API.
type Client struct {
	BaseURL      string
	WebSocketURL string
	HTTP         *http.Client
}

// NewClient returns a client; empty URLs take the defaults.
func NewClient(baseURL, wsURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if wsURL == "" {
		wsURL = DefaultWebSocketURL
	}
	return &Client{
		BaseURL:      strings.TrimRight(baseURL, "/"),
		WebSocketURL: wsURL,
		HTTP:         &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthToken fetches a token for the spawn and WebSocket calls.
func (c *Client) AuthToken(ctx context.Context) (string, error) {
	var res struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, "auth-token", http.MethodGet, "/api/auth-token", "", nil, &res); err != nil {
		return "", err
	}
	return res.Token, nil
}

// SpawnSession asks the backend for a new session and returns its name.
func (c *Client) SpawnSession(ctx context.Context, token, name, workingDir string) (string, error) {
	req := map[string]string{"name": name, "workingDir": workingDir}
	var res struct {
		Session struct {
			Name string `json:"name"`
		} `json:"session"`
	}
	if err := c.do(ctx, "spawn", http.MethodPost, "/api/spawn", token, req, &res); err != nil {
		return "", err
	}
	if res.Session.Name == "" {
		return "", fmt.Errorf("spawn: backend returned no session")
	}
	return res.Session.Name, nil
}

// Profiles lists the backend's terminal profiles. Missing fields take the
// defaults the canvas renders with.
func (c *Client) Profiles(ctx context.Context) ([]Profile, error) {
	token, err := c.AuthToken(ctx)
	if err != nil {
		return nil, err
	}
	var res struct {
		Profiles []Profile `json:"profiles"`
	}
	if err := c.do(ctx, "profiles", http.MethodGet, "/api/browser/profiles", token, nil, &res); err != nil {
		return nil, err
	}
	for i := range res.Profiles {
		p := &res.Profiles[i]
		if p.ThemeName == "" {
			p.ThemeName = "high-contrast"
		}
		if p.FontFamily == "" {
			p.FontFamily = "monospace"
		}
		if p.FontSize == 0 {
			p.FontSize = 16
		}
	}
	return res.Profiles, nil
}

// Dial opens the WebSocket for a session.
func (c *Client) Dial(ctx context.Context, sessionID, token string) (*Conn, error) {
	u, err := url.Parse(c.WebSocketURL)
	if err != nil {
		return nil, fmt.Errorf("invalid websocket url: %w", err)
	}
	q := u.Query()
	q.Set("sessionId", sessionID)
	q.Set("token", token)
	u.RawQuery = q.Encode()

	ws, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	ws.SetReadLimit(1 << 20)
	return &Conn{ws: ws}, nil
}

func (c *Client) do(ctx context.Context, op, method, path, token string, in, out any) error {
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
	if token != "" {
		req.Header.Set("X-Auth-Token", token)
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Op: op, Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}
