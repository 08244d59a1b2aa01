package main

import (
	"testing"

	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mrsingh-rishi/voice-bridge/model"
	"github.com/mrsingh-rishi/voice-bridge/output"
	"github.com/mrsingh-rishi/voice-bridge/playback"
)

func newRouter() (*router, *[]output.Frame) {
	var frames []output.Frame
	buf := playback.NewBuffer(playback.Options{})
	return &router{
		buf:      buf,
		logger:   zap.NewNop(),
		onStatus: func(f output.Frame) { frames = append(frames, f) },
	}, &frames
}

func TestRouterQueuesBinaryAudio(t *testing.T) {
	r, _ := newRouter()
	r.handle(gws.BinaryMessage, []byte{0x00, 0x40, 0x00, 0xC0})

	out := make([]float32, 4)
	require.True(t, r.buf.Render(out))
	assert.Equal(t, []float32{0.5, -0.5, 0, 0}, out)
}

func TestRouterAppliesControlMessages(t *testing.T) {
	r, frames := newRouter()
	r.handle(gws.TextMessage, []byte(`{"type":"set-config","data":{"sampleRate":8000,"encoding":"mulaw"}}`))
	assert.Equal(t, model.EncodingMulaw, r.buf.Config().Encoding)

	r.handle(gws.BinaryMessage, []byte{0xFF})
	r.handle(gws.TextMessage, []byte(`{"type":"clear-buffer"}`))
	out := make([]float32, 1)
	assert.False(t, r.buf.Render(out), "clear-buffer empties the queue")
	assert.Empty(t, *frames)
}

func TestRouterForwardsStatusFrames(t *testing.T) {
	r, frames := newRouter()
	r.handle(gws.TextMessage, []byte(`{"type":"status","message":"connected to call 7"}`))
	r.handle(gws.TextMessage, []byte(`{"type":"error","message":"upstream connection error"}`))
	r.handle(gws.TextMessage, []byte(`not json`))

	require.Len(t, *frames, 2)
	assert.Equal(t, output.Frame{Type: "status", Message: "connected to call 7"}, (*frames)[0])
	assert.Equal(t, "error", (*frames)[1].Type)
}
