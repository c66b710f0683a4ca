package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is the host side of the bridge.
type Client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

// Dial connects to a bridge URL such as ws://127.0.0.1:8765/ws and waits for
// its one-time loaded message.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	c := &Client{conn: conn}

	if deadline, ok := ctx.Deadline(); ok {
		conn.SetReadDeadline(deadline)
	} else {
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	}
	msg, err := c.Next()
	conn.SetReadDeadline(time.Time{})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to read loaded: %w", err)
	}
	if msg.Command != CommandLoaded {
		c.Close()
		return nil, fmt.Errorf("expected %s, got %s", CommandLoaded, msg.Command)
	}
	return c, nil
}

// Send writes one message.
func (c *Client) Send(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(msg)
}

func (c *Client) SetShader(src string) error {
	return c.Send(Message{Command: CommandSetShader, Shader: src})
}

// Next blocks for the next message from the core.
func (c *Client) Next() (Message, error) {
	var msg Message
	err := c.conn.ReadJSON(&msg)
	return msg, err
}

// WaitRendered reads until the outcome of a setShader arrives. A failed
// render is returned as an error carrying the compiler text.
func (c *Client) WaitRendered() (float64, error) {
	for {
		msg, err := c.Next()
		if err != nil {
			return 0, err
		}
		switch msg.Command {
		case CommandRendered:
			return msg.Duration, nil
		case CommandError:
			return 0, fmt.Errorf("render failed: %s", msg.Error)
		}
	}
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	return c.conn.Close()
}
