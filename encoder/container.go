package encoder

import (
	"bytes"
	"io"

	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-bridge/audio"
)

var (
	ErrEmptyInput        = errors.New("no audio data")
	ErrUnknownContainer  = errors.New("unrecognized audio container")
	ErrUnsupportedFormat = errors.New("unsupported sample format")
)

// decoded is one channel-separated audio buffer at its native rate.
type decoded struct {
	channels   [][]float32
	sampleRate int
}

func decodeContainer(input []byte) (*decoded, error) {
	switch {
	case len(input) == 0:
		return nil, ErrEmptyInput
	case len(input) >= 12 && string(input[0:4]) == "RIFF" && string(input[8:12]) == "WAVE":
		return decodeWAV(input)
	case looksLikeMP3(input):
		return decodeMP3(input)
	}
	return nil, ErrUnknownContainer
}

func looksLikeMP3(b []byte) bool {
	if len(b) >= 3 && string(b[:3]) == "ID3" {
		return true
	}
	return len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0
}

func decodeWAV(input []byte) (*decoded, error) {
	d := wav.NewDecoder(bytes.NewReader(input))
	if !d.IsValidFile() {
		return nil, errors.Wrap(ErrUnknownContainer, "invalid wav header")
	}
	buf, err := d.FullPCMBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "read wav samples")
	}
	numChannels := buf.Format.NumChannels
	if numChannels < 1 {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%d channels", numChannels)
	}
	depth := buf.SourceBitDepth
	if depth != 8 && depth != 16 && depth != 24 && depth != 32 {
		return nil, errors.Wrapf(ErrUnsupportedFormat, "%d-bit wav", depth)
	}

	frames := len(buf.Data) / numChannels
	out := &decoded{channels: make([][]float32, numChannels), sampleRate: buf.Format.SampleRate}
	for ch := range out.channels {
		out.channels[ch] = make([]float32, frames)
	}
	scale := float32(int64(1) << (depth - 1))
	for i := 0; i < frames*numChannels; i++ {
		v := buf.Data[i]
		if depth == 8 {
			v -= 128 // 8-bit wav is unsigned
		}
		out.channels[i%numChannels][i/numChannels] = float32(v) / scale
	}
	return out, nil
}

// decodeMP3 re-reads an MP3 upload; go-mp3 always yields 16-bit stereo.
func decodeMP3(input []byte) (*decoded, error) {
	d, err := gomp3.NewDecoder(bytes.NewReader(input))
	if err != nil {
		return nil, errors.Wrap(err, "open mp3 stream")
	}
	pcm, err := io.ReadAll(d)
	if err != nil {
		return nil, errors.Wrap(err, "read mp3 samples")
	}
	samples := audio.BytesToInt16(pcm)
	frames := len(samples) / 2
	left, right := make([]int16, frames), make([]int16, frames)
	for i := 0; i < frames; i++ {
		left[i], right[i] = samples[2*i], samples[2*i+1]
	}
	return &decoded{
		channels:   [][]float32{audio.Int16ToFloat32(left), audio.Int16ToFloat32(right)},
		sampleRate: d.SampleRate(),
	}, nil
}
