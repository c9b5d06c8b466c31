package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// Frame is one server message as received; every frame carries a type
type Frame map[string]any

// Type returns the frame's message type
func (f Frame) Type() string {
	t, _ := f["type"].(string)
	return t
}

// Int returns a numeric field, or 0 if absent
func (f Frame) Int(key string) int {
	n, _ := f[key].(float64)
	return int(n)
}

// String returns a string field, or "" if absent
func (f Frame) String(key string) string {
	s, _ := f[key].(string)
	return s
}

// Socket is a verified game socket connection
type Socket struct {
	conn *websocket.Conn
}

// Dial connects to the game socket and verifies with token. An empty
// token verifies as a guest.
func Dial(ctx context.Context, url, token, tz string) (*Socket, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}

	s := &Socket{conn: conn}
	verify := map[string]any{"type": "verify", "tz": tz}
	if token != "" {
		verify["secret"] = token
	}
	if err := s.Send(verify); err != nil {
		_ = conn.Close()
		return nil, err
	}

	// Closing the socket unblocks a pending read once ctx is cancelled
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	return s, nil
}

// Send writes a command frame
func (s *Socket) Send(cmd map[string]any) error {
	return s.conn.WriteJSON(cmd)
}

// Next blocks until the next frame arrives. Time frames double as the
// server heartbeat and are answered with a pong.
func (s *Socket) Next() (Frame, error) {
	_, data, err := s.conn.ReadMessage()
	if err != nil {
		var closeErr *websocket.CloseError
		if errors.As(err, &closeErr) {
			return nil, fmt.Errorf("server closed connection: %d %s", closeErr.Code, closeErr.Text)
		}
		return nil, err
	}

	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("malformed frame: %w", err)
	}
	if frame.Type() == "t" {
		if err := s.Send(map[string]any{"type": "pong"}); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

// Close says goodbye and closes the connection
func (s *Socket) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return s.conn.Close()
}
