package audio

import (
	"encoding/binary"
	"fmt"
)

// Gain is the soft boost applied before low-pass filtering.
const Gain = 1.2

// Condition applies the gain, clamped to the 16-bit range, followed by a 3-tap
// moving average over the gained samples. The first and last samples only get
// the gain. A trailing odd byte is passed through untouched.
func Condition(pcm []byte) []byte {
	n := len(pcm) / 2
	gained := make([]int32, n)
	for i := 0; i < n; i++ {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		gained[i] = int32(clamp16(int32(float64(s) * Gain)))
	}

	out := make([]byte, len(pcm))
	copy(out, pcm)
	for i := 0; i < n; i++ {
		v := gained[i]
		if i > 0 && i < n-1 {
			v = (gained[i-1] + gained[i] + gained[i+1]) / 3
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(clamp16(v)))
	}
	return out
}

// Filter transforms a stitched PCM buffer.
type Filter func(pcm []byte) []byte

// ApplySafe runs f on pcm and returns its result. If f panics or returns a
// buffer of a different length, the untouched input is returned with the
// fault so the caller can still forward the audio.
func ApplySafe(f Filter, pcm []byte) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = pcm
			err = fmt.Errorf("conditioning panicked: %v", r)
		}
	}()
	res := f(pcm)
	if len(res) != len(pcm) {
		return pcm, fmt.Errorf("conditioning changed length from %d to %d", len(pcm), len(res))
	}
	return res, nil
}
