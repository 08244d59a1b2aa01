package model

import "fmt"

// AudioChunk represents a chunk of audio data as it arrived from the network or
// a capture buffer. Consumers treat it as immutable.
type AudioChunk []byte

// Encoding is the sample encoding carried implicitly by an AudioChunk.
type Encoding string

const (
	EncodingPCM   Encoding = "pcm"
	EncodingMulaw Encoding = "mulaw"
)

// ParseEncoding maps the wire names used by the playback protocol to an Encoding.
func ParseEncoding(s string) (Encoding, error) {
	switch s {
	case "pcm", "pcm16", "linear16":
		return EncodingPCM, nil
	case "mulaw", "ulaw", "mu-law":
		return EncodingMulaw, nil
	}
	return "", fmt.Errorf("unknown audio encoding %q", s)
}

// DefaultSampleRate is the rate of narrow-band call audio.
const DefaultSampleRate = 8000
