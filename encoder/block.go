package encoder

import (
	"bytes"

	shine "github.com/braheezy/shine-mp3/pkg/mp3"
	"github.com/pkg/errors"
)

// BlockSize is the number of samples per channel in one MPEG-1 Layer III frame.
const BlockSize = 1152

// BlockEncoder is a stateful compressor fed one block at a time. Output may
// lag input; Flush returns whatever is still buffered.
type BlockEncoder interface {
	// EncodeBlock takes one block per channel, each at most BlockSize long.
	EncodeBlock(channels [][]int16) ([]byte, error)
	Flush() ([]byte, error)
}

// NewBlockEncoderFunc builds the block encoder of one job.
type NewBlockEncoderFunc func(opts Options) (BlockEncoder, error)

// shineEncoder drives the pure Go shine port. Shine emits whole frames per
// write, so blocks are padded to BlockSize and nothing is left to flush.
type shineEncoder struct {
	enc        *shine.Encoder
	channels   int
	interleave []int16
	out        bytes.Buffer
}

// NewShineEncoder is the default NewBlockEncoderFunc. Shine always encodes at
// 128 kbps, so opts.BitRate only takes part in validation.
func NewShineEncoder(opts Options) (BlockEncoder, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &shineEncoder{
		enc:        shine.NewEncoder(opts.SampleRate, opts.Channels),
		channels:   opts.Channels,
		interleave: make([]int16, BlockSize*opts.Channels),
	}, nil
}

func (s *shineEncoder) EncodeBlock(channels [][]int16) ([]byte, error) {
	if len(channels) != s.channels {
		return nil, errors.Errorf("block has %d channels, encoder expects %d", len(channels), s.channels)
	}
	clear(s.interleave)
	for ch, samples := range channels {
		if len(samples) > BlockSize {
			return nil, errors.Errorf("block of %d samples exceeds %d", len(samples), BlockSize)
		}
		for i, v := range samples {
			s.interleave[i*s.channels+ch] = v
		}
	}
	s.out.Reset()
	if err := s.enc.Write(&s.out, s.interleave); err != nil {
		return nil, errors.Wrap(err, "shine encode")
	}
	return bytes.Clone(s.out.Bytes()), nil
}

func (s *shineEncoder) Flush() ([]byte, error) {
	return nil, nil
}
