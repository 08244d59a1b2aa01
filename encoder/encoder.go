package encoder

import (
	"bytes"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mrsingh-rishi/voice-bridge/audio"
	"github.com/mrsingh-rishi/voice-bridge/metrics"
)

var ErrInvalidOptions = errors.New("invalid encoder options")

// Options are the target parameters of the compressed output.
type Options struct {
	Channels   int
	SampleRate int
	// BitRate in kbps. It must be an MPEG-1 Layer III rate, but the default
	// shine backend always encodes at 128 kbps whatever is set here; only a
	// custom BlockEncoder can honour other values.
	BitRate int
}

// DefaultOptions encodes mono 44.1 kHz at 128 kbps.
func DefaultOptions() Options {
	return Options{Channels: 1, SampleRate: 44100, BitRate: 128}
}

var (
	mpeg1Rates    = map[int]bool{32000: true, 44100: true, 48000: true}
	mpeg1BitRates = map[int]bool{32: true, 40: true, 48: true, 56: true, 64: true, 80: true, 96: true,
		112: true, 128: true, 160: true, 192: true, 224: true, 256: true, 320: true}
)

func (o Options) Validate() error {
	if o.Channels != 1 && o.Channels != 2 {
		return errors.Wrapf(ErrInvalidOptions, "channels must be 1 or 2, got %d", o.Channels)
	}
	if !mpeg1Rates[o.SampleRate] {
		return errors.Wrapf(ErrInvalidOptions, "sample rate %d is not an MPEG-1 rate", o.SampleRate)
	}
	if !mpeg1BitRates[o.BitRate] {
		return errors.Wrapf(ErrInvalidOptions, "bit rate %d kbps is not an MPEG-1 bit rate", o.BitRate)
	}
	return nil
}

// Encoder runs encode jobs. It holds no per-job state and may be shared.
type Encoder struct {
	opts            Options
	newBlockEncoder NewBlockEncoderFunc
	logger          *zap.Logger
	metrics         *metrics.Metrics
}

type Option func(*Encoder)

// WithBlockEncoder replaces the shine backend.
func WithBlockEncoder(f NewBlockEncoderFunc) Option {
	return func(e *Encoder) { e.newBlockEncoder = f }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Encoder) { e.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Encoder) { e.metrics = m }
}

func New(opts Options, options ...Option) (*Encoder, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	e := &Encoder{
		opts:            opts,
		newBlockEncoder: NewShineEncoder,
		logger:          zap.NewNop(),
	}
	for _, o := range options {
		o(e)
	}
	return e, nil
}

// Job is a started encode. Messages is closed after the terminal message.
type Job struct {
	ID       string
	Messages <-chan Message
}

// Start runs one job on its own goroutine. The caller must drain Messages;
// a job cannot be cancelled once started.
func (e *Encoder) Start(input []byte) *Job {
	ch := make(chan Message, 16)
	id := uuid.NewString()
	go func() {
		defer close(ch)
		e.run(id, input, func(m Message) { ch <- m })
	}()
	return &Job{ID: id, Messages: ch}
}

// Run encodes input synchronously, calling report for every message.
func (e *Encoder) Run(input []byte, report func(Message)) {
	e.run(uuid.NewString(), input, report)
}

// state is owned by one job for its whole duration.
type state struct {
	channels   int
	sampleRate int
	bitRate    int
	segments   [][]byte
	last       float64
	report     func(Message)
}

func (s *state) progress(p float64) {
	if p <= s.last {
		return
	}
	s.last = p
	s.report(Progress{Percent: p})
}

func (e *Encoder) run(id string, input []byte, report func(Message)) {
	start := time.Now()
	logger := e.logger.With(zap.String("job_id", id))
	st := &state{
		channels:   e.opts.Channels,
		sampleRate: e.opts.SampleRate,
		bitRate:    e.opts.BitRate,
		last:       -1,
		report:     report,
	}

	out, err := e.encode(st, input)
	if err != nil {
		logger.Warn("encode failed", zap.Error(err), zap.Int("input_bytes", len(input)))
		e.metrics.EncodeFinished("failure", time.Since(start))
		report(Failure{Error: err.Error()})
		return
	}
	st.progress(100)
	logger.Info("encode finished",
		zap.Int("input_bytes", len(input)),
		zap.Int("output_bytes", len(out)),
		zap.Duration("took", time.Since(start)),
	)
	e.metrics.EncodeFinished("success", time.Since(start))
	report(Success{MP3: out})
}

func (e *Encoder) encode(st *state, input []byte) (out []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, errors.Errorf("encoder panic: %v", r)
		}
	}()

	st.progress(10)
	dec, err := decodeContainer(input)
	if err != nil {
		return nil, errors.Wrap(err, "decode container")
	}
	if len(dec.channels) == 0 || len(dec.channels[0]) == 0 {
		return nil, errors.Wrap(ErrEmptyInput, "container holds no samples")
	}
	st.progress(30)

	pcm := quantize(dec, st.channels, st.sampleRate)
	st.progress(50)

	be, err := e.newBlockEncoder(Options{Channels: st.channels, SampleRate: st.sampleRate, BitRate: st.bitRate})
	if err != nil {
		return nil, errors.Wrap(err, "create block encoder")
	}
	frames := len(pcm[0])
	if frames == 0 {
		return nil, errors.Wrapf(ErrEmptyInput, "no samples left after resampling to %d Hz", st.sampleRate)
	}
	blocks := (frames + BlockSize - 1) / BlockSize
	block := make([][]int16, st.channels)
	for i := 0; i < blocks; i++ {
		lo, hi := i*BlockSize, min((i+1)*BlockSize, frames)
		for ch := range block {
			block[ch] = pcm[ch][lo:hi]
		}
		seg, err := be.EncodeBlock(block)
		if err != nil {
			return nil, errors.Wrapf(err, "encode block %d/%d", i+1, blocks)
		}
		if len(seg) > 0 {
			st.segments = append(st.segments, seg)
		}
		st.progress(50 + 40*float64(i+1)/float64(blocks))
	}
	st.progress(90)

	tail, err := be.Flush()
	if err != nil {
		return nil, errors.Wrap(err, "flush encoder")
	}
	if len(tail) > 0 {
		st.segments = append(st.segments, tail)
	}
	st.progress(95)

	return bytes.Join(st.segments, nil), nil
}

// quantize converts the decoded audio to 16-bit samples with the target
// channel count and sample rate.
func quantize(dec *decoded, channels, sampleRate int) [][]int16 {
	src := make([][]int16, len(dec.channels))
	for i, ch := range dec.channels {
		src[i] = audio.Float32ToInt16(ch)
	}

	var shaped [][]int16
	switch {
	case channels == 1:
		shaped = [][]int16{audio.Downmix(src)}
	case len(src) == 1:
		shaped = [][]int16{src[0], src[0]}
	default:
		shaped = src[:channels]
	}
	for i := range shaped {
		shaped[i] = audio.Resample(shaped[i], dec.sampleRate, sampleRate)
	}
	return shaped
}
