package backend

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Message types on a session WebSocket.
const (
	MsgInput  = "input"
	MsgOutput = "output"
	MsgResize = "resize"
)

// Message is the envelope of every WebSocket frame.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ResizeMessage is the payload of a resize message.
type ResizeMessage struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

// Conn is an open session WebSocket. Writes are serialized.
type Conn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *Conn) send(ctx context.Context, typ string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return wsjson.Write(ctx, c.ws, Message{Type: typ, Payload: data})
}

// SendInput sends keystrokes to the session.
func (c *Conn) SendInput(ctx context.Context, data string) error {
	return c.send(ctx, MsgInput, data)
}

// SendResize sends the terminal dimensions.
func (c *Conn) SendResize(ctx context.Context, cols, rows int) error {
	return c.send(ctx, MsgResize, ResizeMessage{Cols: cols, Rows: rows})
}

// Read returns the next message.
func (c *Conn) Read(ctx context.Context) (Message, error) {
	var msg Message
	err := wsjson.Read(ctx, c.ws, &msg)
	return msg, err
}

// Close closes the socket normally.
func (c *Conn) Close() error {
	return c.ws.Close(websocket.StatusNormalClosure, "")
}

// CloseNow closes the socket without the close handshake.
func (c *Conn) CloseNow() error {
	return c.ws.CloseNow()
}
