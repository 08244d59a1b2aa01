package playback

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/mrsingh-rishi/voice-bridge/audio"
	"github.com/mrsingh-rishi/voice-bridge/model"
	"github.com/mrsingh-rishi/voice-bridge/queue"
)

const DefaultCapacity = 100

var ErrDecode = errors.New("playback chunk could not be decoded")

// OverflowPolicy decides what happens to the samples of a dequeued chunk that
// do not fit in the render frame.
type OverflowPolicy int

const (
	// OverflowDiscard drops the excess; every render consumes exactly one chunk.
	OverflowDiscard OverflowPolicy = iota
	// OverflowCarry keeps the excess and plays it on the next render.
	OverflowCarry
)

type Options struct {
	Capacity   int
	Overflow   OverflowPolicy
	SampleRate int
	Encoding   model.Encoding
	Logger     *zap.Logger
}

// Stats is a point-in-time view of the buffer counters.
type Stats struct {
	// Queued is the render-side queue length as of the last render.
	Queued int
	// Pending counts chunks posted but not yet picked up by a render.
	Pending   int
	Underruns uint64
	Evicted   uint64
	Dropped   uint64
	Truncated uint64
}

// Buffer decouples bursty chunk arrival from the fixed-rate render pull.
//
// Post is called from a single producer goroutine and Render from a single
// render goroutine. Posted chunks land in a bounded pending ring guarded by a
// short critical section; Render only ever TryLocks it, so a render that
// races a Post plays what it already holds instead of waiting.
type Buffer struct {
	logger   *zap.Logger
	overflow OverflowPolicy

	cfgMu sync.Mutex
	cfg   SetConfig

	// producer side, guarded by pendMu
	pendMu  sync.Mutex
	pending *queue.Ring[[]float32]
	cleared bool

	// render side
	chunks *queue.Ring[[]float32]
	carry  []float32

	queued    atomic.Int64
	underruns atomic.Uint64
	evicted   atomic.Uint64
	dropped   atomic.Uint64
	truncated atomic.Uint64
}

func NewBuffer(opts Options) *Buffer {
	if opts.Capacity < 1 {
		opts.Capacity = DefaultCapacity
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = model.DefaultSampleRate
	}
	if opts.Encoding == "" {
		opts.Encoding = model.EncodingPCM
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Buffer{
		logger:   opts.Logger,
		overflow: opts.Overflow,
		cfg:      SetConfig{SampleRate: opts.SampleRate, Encoding: opts.Encoding},
		pending:  queue.New[[]float32](opts.Capacity),
		chunks:   queue.New[[]float32](opts.Capacity),
	}
}

// Config returns the decode settings currently applied to incoming audio.
func (b *Buffer) Config() SetConfig {
	b.cfgMu.Lock()
	defer b.cfgMu.Unlock()
	return b.cfg
}

// Post handles one control message. AudioData is decoded here, on the
// producer side, so the render path only moves ready frames. A chunk that
// fails to decode is dropped and reported; the queue is left untouched.
// When more chunks arrive than the buffer holds, the oldest pending ones
// are evicted.
func (b *Buffer) Post(msg Message) error {
	switch m := msg.(type) {
	case AudioData:
		if len(m.Data) == 0 {
			return nil
		}
		cfg := b.Config()
		frames, err := audio.DecodeChunk(m.Data, cfg.Encoding)
		if err != nil {
			b.dropped.Add(1)
			b.logger.Debug("dropping undecodable chunk", zap.Int("bytes", len(m.Data)), zap.Error(err))
			return fmt.Errorf("%w: %v", ErrDecode, err)
		}
		b.pendMu.Lock()
		if b.pending.Push(frames) {
			b.evicted.Add(1)
		}
		b.pendMu.Unlock()
		return nil

	case SetConfig:
		if _, err := model.ParseEncoding(string(m.Encoding)); err != nil {
			return err
		}
		b.cfgMu.Lock()
		if m.SampleRate > 0 {
			b.cfg.SampleRate = m.SampleRate
		}
		b.cfg.Encoding = m.Encoding
		b.cfgMu.Unlock()
		return nil

	case ClearBuffer:
		b.pendMu.Lock()
		b.pending.Clear()
		b.cleared = true
		b.pendMu.Unlock()
		return nil
	}
	return fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
}

// Render fills out with the next chunk. On an empty queue out is zeroed and
// false is returned. It never blocks and never allocates.
func (b *Buffer) Render(out []float32) bool {
	b.drain()

	var chunk []float32
	if len(b.carry) > 0 {
		chunk, b.carry = b.carry, nil
	} else {
		var ok bool
		chunk, ok = b.chunks.Pop()
		b.queued.Store(int64(b.chunks.Len()))
		if !ok {
			clear(out)
			b.underruns.Add(1)
			return false
		}
	}

	n := copy(out, chunk)
	clear(out[n:])
	if len(chunk) > len(out) {
		if b.overflow == OverflowCarry {
			b.carry = chunk[len(out):]
		} else {
			b.truncated.Add(1)
		}
	}
	return true
}

// drain moves pending chunks into the render queue, applying a clear first.
// If the producer holds the lock, this render makes do with what it has.
func (b *Buffer) drain() {
	if !b.pendMu.TryLock() {
		return
	}
	if b.cleared {
		b.chunks.Clear()
		b.carry = nil
		b.cleared = false
	}
	for {
		frames, ok := b.pending.Pop()
		if !ok {
			break
		}
		if b.chunks.Push(frames) {
			b.evicted.Add(1)
		}
	}
	b.pendMu.Unlock()
	b.queued.Store(int64(b.chunks.Len()))
}

func (b *Buffer) Stats() Stats {
	b.pendMu.Lock()
	pending := b.pending.Len()
	b.pendMu.Unlock()
	return Stats{
		Queued:    int(b.queued.Load()),
		Pending:   pending,
		Underruns: b.underruns.Load(),
		Evicted:   b.evicted.Load(),
		Dropped:   b.dropped.Load(),
		Truncated: b.truncated.Load(),
	}
}
