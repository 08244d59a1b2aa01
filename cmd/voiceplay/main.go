// Command voiceplay listens to one call through the voice bridge and plays
// the conditioned audio on the default output device.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"time"

	"github.com/ebitengine/oto/v3"
	gws "github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mrsingh-rishi/voice-bridge/model"
	"github.com/mrsingh-rishi/voice-bridge/output"
	"github.com/mrsingh-rishi/voice-bridge/playback"
)

func main() {
	var (
		server    = flag.String("server", "ws://localhost:3000/stream", "voice bridge stream endpoint")
		callID    = flag.String("call", "", "call id to listen to")
		rate      = flag.Int("rate", model.DefaultSampleRate, "sample rate of the call audio")
		encoding  = flag.String("encoding", string(model.EncodingPCM), "audio encoding: pcm or mulaw")
		frameSize = flag.Int("frame", 160, "samples rendered per pull")
		bufferMs  = flag.Int("buffer-ms", 100, "output device buffer in milliseconds")
		carry     = flag.Bool("carry", false, "play the tail of oversized chunks instead of dropping it")
		debug     = flag.Bool("debug", false, "verbose logging")
	)
	flag.Parse()

	logger, _ := zap.NewProduction()
	if *debug {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	if *callID == "" {
		fmt.Fprintln(os.Stderr, "usage: voiceplay -call <id> [-server ws://host:port/stream]")
		os.Exit(2)
	}
	enc, err := model.ParseEncoding(*encoding)
	if err != nil {
		logger.Fatal("invalid encoding", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, logger, options{
		server:    *server,
		callID:    *callID,
		rate:      *rate,
		encoding:  enc,
		frameSize: *frameSize,
		bufferMs:  *bufferMs,
		carry:     *carry,
	}); err != nil {
		logger.Fatal("playback stopped", zap.Error(err))
	}
}

type options struct {
	server    string
	callID    string
	rate      int
	encoding  model.Encoding
	frameSize int
	bufferMs  int
	carry     bool
}

func run(ctx context.Context, logger *zap.Logger, opts options) error {
	endpoint, err := url.Parse(opts.server)
	if err != nil {
		return fmt.Errorf("parse server url: %w", err)
	}
	q := endpoint.Query()
	q.Set("call_id", opts.callID)
	endpoint.RawQuery = q.Encode()

	overflow := playback.OverflowDiscard
	if opts.carry {
		overflow = playback.OverflowCarry
	}
	buf := playback.NewBuffer(playback.Options{
		Overflow:   overflow,
		SampleRate: opts.rate,
		Encoding:   opts.encoding,
		Logger:     logger,
	})

	otoCtx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   opts.rate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(opts.bufferMs) * time.Millisecond,
	})
	if err != nil {
		return fmt.Errorf("audio device: %w", err)
	}
	<-ready

	conn, _, err := gws.DefaultDialer.DialContext(ctx, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}
	defer conn.Close()
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	player := otoCtx.NewPlayer(playback.NewReader(buf, opts.frameSize))
	player.Play()
	defer func() { _ = player.Close() }()

	r := &router{
		buf:    buf,
		logger: logger,
		onStatus: func(f output.Frame) {
			fmt.Printf("[%s] %s\n", f.Type, f.Message)
		},
	}
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || gws.IsCloseError(err, gws.CloseNormalClosure) {
				return nil
			}
			st := buf.Stats()
			logger.Info("stream ended",
				zap.Uint64("underruns", st.Underruns),
				zap.Uint64("evicted", st.Evicted),
				zap.Uint64("dropped", st.Dropped),
			)
			return err
		}
		r.handle(mt, data)
	}
}
