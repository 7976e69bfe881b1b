// Package transport is the client end of the relay connection: one JSON
// message per websocket text frame.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adwski/scenesync/backend/model"
	"github.com/gorilla/websocket"
)

const (
	defaultHandshakeTimeout   = 5 * time.Second
	defaultWriteDeadline      = 5 * time.Second
	defaultCloseWriteDeadline = 2 * time.Second
	defaultMaxMessageSize     = 64 * 1024
)

var (
	ErrDial      = errors.New("unable to connect to relay")
	ErrMalformed = errors.New("malformed message")
)

// Conn is a connected websocket transport. ReadMessage and WriteMessage may
// be used from one goroutine each; Close is safe to call from anywhere.
type Conn struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

// Dialer opens websocket transports.
type Dialer struct {
	HandshakeTimeout time.Duration
}

func (d Dialer) Dial(ctx context.Context, url string) (*Conn, error) {
	timeout := d.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	dialer := websocket.Dialer{HandshakeTimeout: timeout}

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Join(ErrDial, err)
	}
	conn.SetReadLimit(defaultMaxMessageSize)
	return &Conn{conn: conn}, nil
}

// WriteMessage sends one frame. A message that cannot be encoded is
// reported as ErrMalformed before anything is written.
func (c *Conn) WriteMessage(msg model.Message) error {
	b, err := json.Marshal(&msg)
	if err != nil {
		return errors.Join(ErrMalformed, fmt.Errorf("marshal outgoing message: %w", err))
	}
	if err = c.conn.SetWriteDeadline(time.Now().Add(defaultWriteDeadline)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// ReadMessage blocks for the next frame. A frame that does not decode is
// reported as ErrMalformed and the connection stays usable.
func (c *Conn) ReadMessage() (model.Message, error) {
	_, b, err := c.conn.ReadMessage()
	if err != nil {
		return model.Message{}, err
	}
	var msg model.Message
	if err = json.Unmarshal(b, &msg); err != nil {
		return model.Message{}, errors.Join(ErrMalformed, err)
	}
	return msg, nil
}

// Close sends a close frame and tears the connection down. It also unblocks
// a pending ReadMessage.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(defaultCloseWriteDeadline))
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
