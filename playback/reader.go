package playback

import (
	"encoding/binary"
	"math"
)

// Reader exposes a Buffer as an endless stream of little-endian float32
// samples, rendered frameSize samples at a time. Hosts that pull audio through
// an io.Reader (oto players, for instance) call Read from their own render
// goroutine. Underruns read as silence.
type Reader struct {
	buf     *Buffer
	frame   []float32
	pending []byte
	bytes   []byte
}

func NewReader(buf *Buffer, frameSize int) *Reader {
	if frameSize < 1 {
		frameSize = 128
	}
	return &Reader{
		buf:   buf,
		frame: make([]float32, frameSize),
		bytes: make([]byte, frameSize*4),
	}
}

func (r *Reader) Read(p []byte) (int, error) {
	n := 0
	for n < len(p) {
		if len(r.pending) == 0 {
			r.buf.Render(r.frame)
			for i, s := range r.frame {
				binary.LittleEndian.PutUint32(r.bytes[i*4:], math.Float32bits(s))
			}
			r.pending = r.bytes
		}
		c := copy(p[n:], r.pending)
		r.pending = r.pending[c:]
		n += c
	}
	return n, nil
}
