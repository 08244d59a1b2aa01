package call

import "time"

const (
	DefaultMaxChunks = 10
	DefaultMaxDelay  = 100 * time.Millisecond
)

// Batcher accumulates upstream chunks until a flush is due.
// It is owned by a single session goroutine.
type Batcher struct {
	maxChunks int
	chunks    [][]byte
	started   time.Time
}

func NewBatcher(maxChunks int) *Batcher {
	if maxChunks < 1 {
		maxChunks = DefaultMaxChunks
	}
	return &Batcher{maxChunks: maxChunks, chunks: make([][]byte, 0, maxChunks)}
}

// Add appends chunk and reports whether the size threshold has been reached.
// first is true when chunk opened a new batch.
func (b *Batcher) Add(chunk []byte, now time.Time) (full, first bool) {
	if len(b.chunks) == 0 {
		b.started = now
		first = true
	}
	b.chunks = append(b.chunks, chunk)
	return len(b.chunks) >= b.maxChunks, first
}

// Due reports whether the oldest buffered chunk has waited at least maxDelay.
func (b *Batcher) Due(now time.Time, maxDelay time.Duration) bool {
	return len(b.chunks) > 0 && now.Sub(b.started) >= maxDelay
}

// Drain returns the buffered chunks in arrival order and resets the batch.
func (b *Batcher) Drain() [][]byte {
	out := b.chunks
	b.chunks = make([][]byte, 0, b.maxChunks)
	b.started = time.Time{}
	return out
}

func (b *Batcher) Len() int {
	return len(b.chunks)
}
