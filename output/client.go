package output

import (
	"errors"
	"fmt"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gofiber/websocket/v2"
)

var ErrClosed = errors.New("downstream writer closed")

// Socket is the write side of the downstream client connection.
type Socket interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Frame is the JSON control frame sent to the browser client.
type Frame struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ClientOutput serializes every write to one downstream socket.
type ClientOutput struct {
	mu     sync.Mutex
	ws     Socket
	closed bool
}

func NewClientOutput(ws Socket) (*ClientOutput, error) {
	if ws == nil {
		return nil, fmt.Errorf("downstream socket is required")
	}
	return &ClientOutput{ws: ws}, nil
}

// Status sends {type:"status", message}.
func (o *ClientOutput) Status(message string) error {
	return o.sendFrame(Frame{Type: "status", Message: message})
}

// Error sends {type:"error", message}.
func (o *ClientOutput) Error(message string) error {
	return o.sendFrame(Frame{Type: "error", Message: message})
}

// Audio sends one conditioned PCM batch as a binary frame.
func (o *ClientOutput) Audio(pcm []byte) error {
	return o.write(websocket.BinaryMessage, pcm)
}

// Text sends a pre-encoded JSON text frame.
func (o *ClientOutput) Text(data []byte) error {
	return o.write(websocket.TextMessage, data)
}

// CloseWith sends a close frame carrying code and reason, then closes the socket.
func (o *ClientOutput) CloseWith(code int, reason string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	_ = o.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	return o.ws.Close()
}

// Stop closes the socket without a close frame. Safe to call more than once.
func (o *ClientOutput) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return nil
	}
	o.closed = true
	return o.ws.Close()
}

func (o *ClientOutput) sendFrame(f Frame) error {
	data, err := sonic.Marshal(f)
	if err != nil {
		return fmt.Errorf("encode %s frame: %w", f.Type, err)
	}
	return o.write(websocket.TextMessage, data)
}

func (o *ClientOutput) write(messageType int, data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return ErrClosed
	}
	return o.ws.WriteMessage(messageType, data)
}
