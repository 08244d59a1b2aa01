package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mrsingh-rishi/voice-bridge/call"
	"github.com/mrsingh-rishi/voice-bridge/encoder"
	"github.com/mrsingh-rishi/voice-bridge/metrics"
	"github.com/mrsingh-rishi/voice-bridge/output"
	"github.com/mrsingh-rishi/voice-bridge/upstream"
	"github.com/mrsingh-rishi/voice-bridge/workers"
)

// maxCloseReason is the largest close reason that fits a control frame.
const maxCloseReason = 123

var errShuttingDown = errors.New("server is shutting down")

// upstreamDialer opens the upstream audio socket of a call.
type upstreamDialer interface {
	Dial(ctx context.Context, callID string) (upstream.Conn, error)
}

type serverParams struct {
	Port             int
	Dialer           upstreamDialer
	HandshakeTimeout time.Duration
	Stream           call.Config
	EncodeRequests   chan<- workers.EncodeRequest
	BodyLimit        int
	Gatherer         prometheus.Gatherer
	Metrics          *metrics.Metrics
	Logger           *zap.Logger
}

// server owns the HTTP surface and every live streaming session.
type server struct {
	app      *fiber.App
	params   serverParams
	sessions *call.Registry
	logger   *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func newServer(p serverParams) *server {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.HandshakeTimeout <= 0 {
		p.HandshakeTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &server{
		params:   p,
		sessions: call.NewRegistry(),
		logger:   p.Logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.app = fiber.New(fiber.Config{
		AppName:               "voice-bridge",
		DisableStartupMessage: true,
		BodyLimit:             p.BodyLimit,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
	})
	s.routes()
	return s
}

func (s *server) routes() {
	s.app.Get("/health", s.handleHealth)

	if s.params.Gatherer != nil {
		s.app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(s.params.Gatherer, promhttp.HandlerOpts{})))
	}

	s.app.Post("/voice-notes", s.handleVoiceNote)

	s.app.Use("/stream", requireUpgrade)
	s.app.Get("/stream", websocket.New(s.handleStream))

	s.app.Use("/voice-notes/ws", requireUpgrade)
	s.app.Get("/voice-notes/ws", websocket.New(s.handleVoiceNoteSocket))
}

// requireUpgrade rejects plain HTTP requests on websocket routes.
func requireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func (s *server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok", "port": s.params.Port})
}

// handleStream binds one downstream client to the upstream stream of the
// call named in the call_id query parameter.
func (s *server) handleStream(ws *websocket.Conn) {
	out, err := output.NewClientOutput(ws)
	if err != nil {
		s.logger.Error("wrapping client socket", zap.Error(err))
		_ = ws.Close()
		return
	}

	callID := strings.TrimSpace(ws.Query("call_id"))
	if callID == "" {
		s.params.Metrics.SessionRejected("missing_call_id")
		s.logger.Info("rejecting stream without call_id")
		_ = out.CloseWith(websocket.ClosePolicyViolation, "call_id query parameter is required")
		return
	}
	logger := s.logger.With(zap.String("call_id", callID))

	if err := s.sessions.Reserve(callID); err != nil {
		s.params.Metrics.SessionRejected("duplicate_call_id")
		fields := []zap.Field{zap.Error(err)}
		if active, ok := s.sessions.Get(callID); ok {
			fields = append(fields, zap.String("active_session", active.ID), zap.Time("active_since", active.StartedAt))
		}
		logger.Info("call already has a listener", fields...)
		_ = out.CloseWith(websocket.ClosePolicyViolation, "call is already being streamed")
		return
	}
	defer s.sessions.Release(callID)

	dialCtx, cancel := context.WithTimeout(s.ctx, s.params.HandshakeTimeout)
	up, err := s.params.Dialer.Dial(dialCtx, callID)
	cancel()
	if err != nil {
		s.params.Metrics.SessionRejected("upstream_unavailable")
		s.params.Metrics.UpstreamError()
		logger.Warn("upstream dial failed", zap.Error(err))
		_ = out.Error(fmt.Sprintf("could not connect to call %s: %v", callID, err))
		_ = out.CloseWith(websocket.CloseInternalServerErr, closeReason("upstream unavailable: "+err.Error()))
		return
	}

	sess, err := call.NewSession(call.Params{
		CallID:   callID,
		Client:   ws,
		Output:   out,
		Upstream: up,
		Config:   s.params.Stream,
		Logger:   s.logger,
		Metrics:  s.params.Metrics,
	})
	if err != nil {
		logger.Error("creating session", zap.Error(err))
		_ = up.Close()
		_ = out.CloseWith(websocket.CloseInternalServerErr, closeReason(err.Error()))
		return
	}
	s.sessions.Bind(sess)

	if err := sess.Status("connected to call " + callID); err != nil {
		logger.Debug("sending status frame", zap.Error(err))
	}
	logger.Info("stream connected", zap.String("session_id", sess.ID))
	if err := sess.Run(s.ctx); err != nil {
		logger.Warn("stream ended with error", zap.Error(err))
	}
}

// encode runs input on the worker pool and calls onMessage for every message
// of the job. It returns errShuttingDown if no worker will take the job.
func (s *server) encode(input []byte, onMessage func(encoder.Message)) (string, error) {
	reply := make(chan encoder.Message, 16)
	req := workers.EncodeRequest{ID: uuid.NewString(), Input: input, Reply: reply}
	select {
	case s.params.EncodeRequests <- req:
	case <-s.ctx.Done():
		return req.ID, errShuttingDown
	}
	for m := range reply {
		onMessage(m)
	}
	return req.ID, nil
}

// handleVoiceNote compresses an uploaded recording to MP3 and returns it.
func (s *server) handleVoiceNote(c *fiber.Ctx) error {
	var last encoder.Message
	id, err := s.encode(bytes.Clone(c.Body()), func(m encoder.Message) {
		if p, ok := m.(encoder.Progress); ok {
			s.logger.Debug("voice note progress", zap.Float64("percent", p.Percent))
			return
		}
		last = m
	})
	if err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	c.Set("X-Job-Id", id)

	switch m := last.(type) {
	case encoder.Success:
		c.Set(fiber.HeaderContentType, "audio/mpeg")
		return c.Send(m.MP3)
	case encoder.Failure:
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": m.Error})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "encoder stopped without a result"})
}

// handleVoiceNoteSocket takes one binary recording and streams every encoder
// message back as JSON, then closes normally.
func (s *server) handleVoiceNoteSocket(ws *websocket.Conn) {
	out, err := output.NewClientOutput(ws)
	if err != nil {
		_ = ws.Close()
		return
	}
	if s.params.BodyLimit > 0 {
		ws.SetReadLimit(int64(s.params.BodyLimit))
	}

	mt, input, err := ws.ReadMessage()
	if err != nil {
		_ = out.Stop()
		return
	}
	if mt != websocket.BinaryMessage {
		_ = out.CloseWith(websocket.CloseUnsupportedData, "send the recording as one binary message")
		return
	}

	_, err = s.encode(input, func(m encoder.Message) {
		data, err := encoder.MarshalMessage(m)
		if err != nil {
			s.logger.Error("encoding worker message", zap.Error(err))
			return
		}
		if err := out.Text(data); err != nil {
			s.logger.Debug("voice note client gone", zap.Error(err))
		}
	})
	if err != nil {
		_ = out.CloseWith(websocket.CloseGoingAway, err.Error())
		return
	}
	_ = out.CloseWith(websocket.CloseNormalClosure, "done")
}

// shutdown stops accepting connections and ends every live session.
func (s *server) shutdown(timeout time.Duration) error {
	s.cancel()
	s.sessions.CloseAll()
	return s.app.ShutdownWithTimeout(timeout)
}

func closeReason(reason string) string {
	if len(reason) <= maxCloseReason {
		return reason
	}
	return reason[:maxCloseReason]
}
