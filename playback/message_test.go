package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrsingh-rishi/voice-bridge/model"
)

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want Message
	}{
		{
			name: "audio data as byte array",
			raw:  `{"type":"audio-data","data":[0,255,16]}`,
			want: AudioData{Data: []byte{0, 255, 16}},
		},
		{
			name: "audio data as base64",
			raw:  `{"type":"audio-data","data":"AP8Q"}`,
			want: AudioData{Data: []byte{0, 255, 16}},
		},
		{
			name: "set config",
			raw:  `{"type":"set-config","data":{"sampleRate":8000,"encoding":"mulaw"}}`,
			want: SetConfig{SampleRate: 8000, Encoding: model.EncodingMulaw},
		},
		{
			name: "clear buffer",
			raw:  `{"type":"clear-buffer"}`,
			want: ClearBuffer{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMessage([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseMessageErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `audio`},
		{"unknown type", `{"type":"volume","data":1}`},
		{"audio without data", `{"type":"audio-data"}`},
		{"byte out of range", `{"type":"audio-data","data":[256]}`},
		{"bad encoding", `{"type":"set-config","data":{"sampleRate":8000,"encoding":"opus"}}`},
		{"bad rate", `{"type":"set-config","data":{"sampleRate":0,"encoding":"pcm"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseMessage([]byte(tt.raw))
			assert.Error(t, err)
		})
	}

	_, err := ParseMessage([]byte(`{"type":"volume"}`))
	assert.ErrorIs(t, err, ErrUnknownMessage)
}
