package encoder

import (
	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
)

// wireMessage is the JSON form of a Message:
// {type:"progress", progress}, {type:"success", mp3Blob} or {type:"error", error}.
type wireMessage struct {
	Type     string   `json:"type"`
	Progress *float64 `json:"progress,omitempty"`
	MP3Blob  []byte   `json:"mp3Blob,omitempty"`
	Error    string   `json:"error,omitempty"`
}

// MarshalMessage encodes m for a worker client. mp3Blob is base64.
func MarshalMessage(m Message) ([]byte, error) {
	var w wireMessage
	switch v := m.(type) {
	case Progress:
		p := v.Percent
		w = wireMessage{Type: "progress", Progress: &p}
	case Success:
		w = wireMessage{Type: "success", MP3Blob: v.MP3}
	case Failure:
		w = wireMessage{Type: "error", Error: v.Error}
	default:
		return nil, errors.Errorf("unknown encoder message %T", m)
	}
	return sonic.Marshal(w)
}

// UnmarshalMessage is the inverse of MarshalMessage.
func UnmarshalMessage(data []byte) (Message, error) {
	var w wireMessage
	if err := sonic.Unmarshal(data, &w); err != nil {
		return nil, errors.Wrap(err, "malformed encoder message")
	}
	switch w.Type {
	case "progress":
		if w.Progress == nil {
			return nil, errors.New("progress message without progress")
		}
		return Progress{Percent: *w.Progress}, nil
	case "success":
		return Success{MP3: w.MP3Blob}, nil
	case "error":
		return Failure{Error: w.Error}, nil
	}
	return nil, errors.Errorf("unknown encoder message type %q", w.Type)
}
