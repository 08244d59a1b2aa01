package call

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mrsingh-rishi/voice-bridge/audio"
	"github.com/mrsingh-rishi/voice-bridge/metrics"
	"github.com/mrsingh-rishi/voice-bridge/output"
	"github.com/mrsingh-rishi/voice-bridge/upstream"
)

var (
	errUpstreamClosed = errors.New("upstream stream ended")
	errClientGone     = errors.New("downstream client disconnected")
)

// ClientConn is the downstream socket as seen by the session's read loop.
// Teardown expires the read deadline to release a blocked ReadMessage.
type ClientConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	SetReadDeadline(t time.Time) error
}

// Config controls batching and conditioning.
type Config struct {
	MaxChunks int
	MaxDelay  time.Duration
	// Filter conditions each stitched batch; defaults to audio.Condition.
	Filter audio.Filter
}

func (c Config) withDefaults() Config {
	if c.MaxChunks < 1 {
		c.MaxChunks = DefaultMaxChunks
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.Filter == nil {
		c.Filter = audio.Condition
	}
	return c
}

// Params carries everything a session needs; the sockets are already open.
type Params struct {
	CallID   string
	Client   ClientConn
	Output   *output.ClientOutput
	Upstream upstream.Conn
	Config   Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
}

// Session binds one upstream call stream to one downstream client.
type Session struct {
	ID        string
	CallID    string
	StartedAt time.Time

	client  ClientConn
	out     *output.ClientOutput
	up      upstream.Conn
	cfg     Config
	batch   *Batcher
	logger  *zap.Logger
	metrics *metrics.Metrics

	upstreamErr error
	cleanup     sync.Once

	closeMu     sync.Mutex
	closeCode   int
	closeReason string
}

func NewSession(p Params) (*Session, error) {
	if p.CallID == "" {
		return nil, upstream.ErrEmptyCallID
	}
	if p.Client == nil || p.Output == nil || p.Upstream == nil {
		return nil, errors.New("session requires client, output and upstream sockets")
	}
	cfg := p.Config.withDefaults()
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.NewString()
	s := &Session{
		ID:        id,
		CallID:    p.CallID,
		StartedAt: time.Now(),
		client:    p.Client,
		out:       p.Output,
		up:        p.Upstream,
		cfg:       cfg,
		batch:     NewBatcher(cfg.MaxChunks),
		logger:    logger.With(zap.String("call_id", p.CallID), zap.String("session_id", id)),
		metrics:   p.Metrics,
	}
	// replaced once the session knows why it ended
	s.closeCode, s.closeReason = gws.CloseGoingAway, "session ended"
	return s, nil
}

// Status sends a status frame to the client.
func (s *Session) Status(message string) error {
	return s.out.Status(message)
}

// Run pumps audio until either side disconnects or ctx is cancelled. Both
// sockets are closed when Run returns. A nil error means an orderly end.
func (s *Session) Run(parent context.Context) error {
	s.metrics.SessionStarted()
	defer s.metrics.SessionEnded()
	defer s.CleanupResources()

	g, ctx := errgroup.WithContext(parent)
	frames := make(chan []byte, s.cfg.MaxChunks*4)

	g.Go(func() error {
		s.readUpstream(ctx, frames)
		return nil
	})
	g.Go(func() error {
		return s.batchLoop(ctx, frames)
	})
	g.Go(func() error {
		return s.readClient()
	})
	g.Go(func() error {
		<-ctx.Done()
		if parent.Err() != nil {
			s.setCloseStatus(gws.CloseGoingAway, "server shutting down")
		}
		s.CleanupResources()
		return nil
	})

	err := g.Wait()
	switch {
	case errors.Is(err, errClientGone), errors.Is(err, context.Canceled):
		s.logger.Info("session ended", zap.Error(err), zap.Duration("duration", time.Since(s.StartedAt)))
		return nil
	case errors.Is(err, errUpstreamClosed):
		if s.upstreamErr != nil && !upstream.IsNormalClosure(s.upstreamErr) {
			return fmt.Errorf("upstream read: %w", s.upstreamErr)
		}
		s.logger.Info("upstream finished", zap.Duration("duration", time.Since(s.StartedAt)))
		return nil
	}
	return err
}

// CleanupResources closes both sockets once. The client gets a close frame
// carrying the reason the session ended.
func (s *Session) CleanupResources() {
	s.cleanup.Do(func() {
		// read before closing upstream, which wakes the read loop
		code, reason := s.closeStatus()
		if err := s.up.Close(); err != nil {
			s.logger.Debug("closing upstream", zap.Error(err))
		}
		if err := s.out.CloseWith(code, reason); err != nil {
			s.logger.Debug("closing downstream", zap.Error(err))
		}
		// a hijacked server socket ignores Close while its handler runs
		if err := s.client.SetReadDeadline(time.Now()); err != nil {
			s.logger.Debug("expiring downstream read", zap.Error(err))
		}
	})
}

func (s *Session) setCloseStatus(code int, reason string) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	s.closeCode, s.closeReason = code, reason
}

func (s *Session) closeStatus() (int, string) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	return s.closeCode, s.closeReason
}

// readUpstream forwards binary frames into frames and closes it on exit.
// The terminating read error is kept in upstreamErr; the channel close orders
// that write before batchLoop reads it.
func (s *Session) readUpstream(ctx context.Context, frames chan<- []byte) {
	defer close(frames)
	for {
		mt, msg, err := s.up.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				s.upstreamErr = err
			}
			return
		}
		if mt != gws.BinaryMessage || len(msg) == 0 {
			s.logger.Debug("ignoring non-audio upstream frame", zap.Int("type", mt), zap.Int("bytes", len(msg)))
			continue
		}
		s.metrics.ChunkReceived()
		select {
		case frames <- msg:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Session) readClient() error {
	for {
		if _, _, err := s.client.ReadMessage(); err != nil {
			return errClientGone
		}
	}
}

func (s *Session) batchLoop(ctx context.Context, frames <-chan []byte) error {
	timer := time.NewTimer(s.cfg.MaxDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case chunk, ok := <-frames:
			if !ok {
				return s.finishUpstream()
			}
			full, first := s.batch.Add(chunk, time.Now())
			if full {
				timer.Stop()
				if err := s.flush("size"); err != nil {
					return err
				}
			} else if first {
				timer.Reset(s.cfg.MaxDelay)
			}

		case <-timer.C:
			if s.batch.Len() == 0 {
				continue
			}
			if err := s.flush("timer"); err != nil {
				return err
			}
		}
	}
}

// finishUpstream forwards what is left of the batch and reports an unexpected
// upstream failure to the client before the session is torn down.
func (s *Session) finishUpstream() error {
	if s.batch.Len() > 0 {
		if err := s.flush("drain"); err != nil {
			return err
		}
	}
	if s.upstreamErr == nil || upstream.IsNormalClosure(s.upstreamErr) {
		s.setCloseStatus(gws.CloseNormalClosure, "call ended")
	} else {
		s.setCloseStatus(gws.CloseInternalServerErr, "upstream connection error")
		s.metrics.UpstreamError()
		s.logger.Warn("upstream connection failed", zap.Error(s.upstreamErr))
		if err := s.out.Error(fmt.Sprintf("upstream connection error: %v", s.upstreamErr)); err != nil {
			s.logger.Debug("sending error frame", zap.Error(err))
		}
	}
	return errUpstreamClosed
}

func (s *Session) flush(trigger string) error {
	chunks := s.batch.Drain()
	start := time.Now()
	stitched := audio.Stitch(chunks)
	processed, err := audio.ApplySafe(s.cfg.Filter, stitched)
	if err != nil {
		s.logger.Warn("conditioning failed, forwarding raw audio", zap.Error(err))
	}
	s.metrics.Flushed(trigger, len(processed), time.Since(start), err != nil)

	if err := s.out.Audio(processed); err != nil {
		return fmt.Errorf("forward batch: %w", err)
	}
	s.logger.Debug("flushed batch",
		zap.String("trigger", trigger),
		zap.Int("chunks", len(chunks)),
		zap.Int("bytes", len(processed)),
	)
	return nil
}
