package main

import (
	"errors"

	"github.com/bytedance/sonic"
	gws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mrsingh-rishi/voice-bridge/output"
	"github.com/mrsingh-rishi/voice-bridge/playback"
)

// router feeds frames read from the proxy into a playback buffer. It runs on
// the socket read goroutine, which is the buffer's only producer.
type router struct {
	buf    *playback.Buffer
	logger *zap.Logger
	// onStatus receives status and error frames from the proxy.
	onStatus func(output.Frame)
}

func (r *router) handle(mt int, data []byte) {
	switch mt {
	case gws.BinaryMessage:
		if err := r.buf.Post(playback.AudioData{Data: data}); err != nil {
			r.logger.Debug("dropping audio frame", zap.Int("bytes", len(data)), zap.Error(err))
		}
	case gws.TextMessage:
		r.handleText(data)
	}
}

// handleText accepts both playback control messages and proxy status frames.
func (r *router) handleText(data []byte) {
	msg, err := playback.ParseMessage(data)
	if err == nil {
		if err := r.buf.Post(msg); err != nil {
			r.logger.Warn("control message rejected", zap.Error(err))
		}
		return
	}
	if !errors.Is(err, playback.ErrUnknownMessage) {
		r.logger.Warn("malformed control message", zap.Error(err))
		return
	}

	var f output.Frame
	if err := sonic.Unmarshal(data, &f); err != nil || f.Type == "" {
		r.logger.Warn("unrecognized text frame", zap.ByteString("frame", data))
		return
	}
	if r.onStatus != nil {
		r.onStatus(f)
	}
}
