package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/mrsingh-rishi/voice-bridge/model"
)

var ErrOddLength = errors.New("pcm16 data has odd byte count")

// BytesToInt16 reads little-endian 16-bit samples. A trailing odd byte is ignored.
func BytesToInt16(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// Int16ToBytes writes samples as little-endian 16-bit PCM.
func Int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Int16ToFloat32 normalizes samples to [-1, 1).
func Int16ToFloat32(samples []int16) []float32 {
	out := make([]float32, len(samples))
	for i, s := range samples {
		out[i] = float32(s) / 32768
	}
	return out
}

// Float32ToInt16 scales and clamps normalized samples to the signed 16-bit range.
// Negative values scale by 32768 and positive ones by 32767 so that both
// -1 and 1 land exactly on the range limits.
func Float32ToInt16(samples []float32) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		v := float64(s)
		if math.IsNaN(v) {
			v = 0
		}
		v = math.Max(-1, math.Min(1, v))
		if v < 0 {
			out[i] = int16(v * 32768)
		} else {
			out[i] = int16(v * 32767)
		}
	}
	return out
}

// DecodeChunk turns a raw chunk into normalized float samples according to enc.
func DecodeChunk(data []byte, enc model.Encoding) ([]float32, error) {
	switch enc {
	case model.EncodingMulaw:
		return Int16ToFloat32(DecodeMulaw(data)), nil
	case model.EncodingPCM, "":
		if len(data)%2 != 0 {
			return nil, fmt.Errorf("decode %d bytes: %w", len(data), ErrOddLength)
		}
		return Int16ToFloat32(BytesToInt16(data)), nil
	}
	return nil, fmt.Errorf("decode chunk: unsupported encoding %q", enc)
}

func clamp16(v int32) int16 {
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
