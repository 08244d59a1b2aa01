package output

import (
	"sync"
	"testing"

	"github.com/gofiber/websocket/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedMessage struct {
	Type int
	Data []byte
}

type fakeSocket struct {
	mu       sync.Mutex
	messages []recordedMessage
	closes   int
}

func (f *fakeSocket) WriteMessage(mt int, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, recordedMessage{mt, append([]byte(nil), data...)})
	return nil
}

func (f *fakeSocket) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	return nil
}

func TestClientOutputFrames(t *testing.T) {
	ws := &fakeSocket{}
	out, err := NewClientOutput(ws)
	require.NoError(t, err)

	require.NoError(t, out.Status("connected"))
	require.NoError(t, out.Error("upstream failed"))
	require.NoError(t, out.Audio([]byte{1, 2}))
	require.NoError(t, out.Text([]byte(`{"type":"progress","progress":10}`)))

	require.Len(t, ws.messages, 4)
	assert.Equal(t, websocket.TextMessage, ws.messages[0].Type)
	assert.JSONEq(t, `{"type":"status","message":"connected"}`, string(ws.messages[0].Data))
	assert.JSONEq(t, `{"type":"error","message":"upstream failed"}`, string(ws.messages[1].Data))
	assert.Equal(t, websocket.BinaryMessage, ws.messages[2].Type)
	assert.Equal(t, []byte{1, 2}, ws.messages[2].Data)
	assert.Equal(t, websocket.TextMessage, ws.messages[3].Type)
}

func TestClientOutputCloseOnce(t *testing.T) {
	ws := &fakeSocket{}
	out, _ := NewClientOutput(ws)

	require.NoError(t, out.CloseWith(websocket.ClosePolicyViolation, "call_id is required"))
	require.NoError(t, out.Stop())
	assert.Equal(t, 1, ws.closes)
	require.Len(t, ws.messages, 1)
	assert.Equal(t, websocket.CloseMessage, ws.messages[0].Type)

	assert.ErrorIs(t, out.Audio([]byte{1}), ErrClosed)
}

func TestNewClientOutputRequiresSocket(t *testing.T) {
	_, err := NewClientOutput(nil)
	assert.Error(t, err)
}
