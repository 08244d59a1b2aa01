package playback

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/mrsingh-rishi/voice-bridge/model"
)

var ErrUnknownMessage = errors.New("unknown playback message type")

// Message is one control message for the playback buffer:
// AudioData, SetConfig or ClearBuffer.
type Message interface {
	playbackMessage()
}

// AudioData carries one raw chunk in the currently configured encoding.
type AudioData struct {
	Data model.AudioChunk
}

// SetConfig changes how subsequent AudioData is decoded.
type SetConfig struct {
	SampleRate int
	Encoding   model.Encoding
}

// ClearBuffer drops everything queued, e.g. when the call is interrupted.
type ClearBuffer struct{}

func (AudioData) playbackMessage()   {}
func (SetConfig) playbackMessage()   {}
func (ClearBuffer) playbackMessage() {}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type configData struct {
	SampleRate int    `json:"sampleRate"`
	Encoding   string `json:"encoding"`
}

// ParseMessage decodes the {type, data} wire form. audio-data carries its
// bytes either as a base64 string or as an array of byte values.
func ParseMessage(raw []byte) (Message, error) {
	var env envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("malformed playback message: %w", err)
	}
	switch env.Type {
	case "audio-data":
		data, err := parseAudioBytes(env.Data)
		if err != nil {
			return nil, fmt.Errorf("audio-data: %w", err)
		}
		return AudioData{Data: data}, nil
	case "set-config":
		var cfg configData
		if err := sonic.Unmarshal(env.Data, &cfg); err != nil {
			return nil, fmt.Errorf("set-config: %w", err)
		}
		enc, err := model.ParseEncoding(cfg.Encoding)
		if err != nil {
			return nil, fmt.Errorf("set-config: %w", err)
		}
		if cfg.SampleRate <= 0 {
			return nil, fmt.Errorf("set-config: sample rate must be positive, got %d", cfg.SampleRate)
		}
		return SetConfig{SampleRate: cfg.SampleRate, Encoding: enc}, nil
	case "clear-buffer":
		return ClearBuffer{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
}

func parseAudioBytes(raw []byte) ([]byte, error) {
	if len(raw) == 0 {
		return nil, errors.New("missing data")
	}
	if raw[0] == '[' {
		var values []int
		if err := sonic.Unmarshal(raw, &values); err != nil {
			return nil, err
		}
		out := make([]byte, len(values))
		for i, v := range values {
			if v < 0 || v > 255 {
				return nil, fmt.Errorf("byte value %d out of range", v)
			}
			out[i] = byte(v)
		}
		return out, nil
	}
	var encoded string
	if err := sonic.Unmarshal(raw, &encoded); err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(encoded)
}
