package workers

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mrsingh-rishi/voice-bridge/encoder"
)

// EncodeRequest asks a worker to compress one voice note. Every message of
// the job is sent on Reply, which the worker closes after the terminal one.
type EncodeRequest struct {
	ID    string
	Input []byte
	Reply chan<- encoder.Message
}

// EncodeWorker runs voice-note encodes off the request path.
type EncodeWorker struct {
	ctx            context.Context
	cancel         context.CancelFunc
	Encoder        *encoder.Encoder
	RequestChannel <-chan EncodeRequest
	Concurrency    int
	logger         *zap.Logger
	wg             sync.WaitGroup
}

func NewEncodeWorker(enc *encoder.Encoder, requestChannel <-chan EncodeRequest, concurrency int, logger *zap.Logger) (*EncodeWorker, error) {
	if enc == nil {
		return nil, fmt.Errorf("encoder is required")
	}
	if requestChannel == nil {
		return nil, fmt.Errorf("request channel is required")
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &EncodeWorker{
		ctx:            ctx,
		cancel:         cancel,
		Encoder:        enc,
		RequestChannel: requestChannel,
		Concurrency:    concurrency,
		logger:         logger,
	}, nil
}

func (ew *EncodeWorker) Start() {
	for i := 0; i < ew.Concurrency; i++ {
		ew.wg.Add(1)
		go func() {
			defer ew.wg.Done()
			for {
				select {
				case <-ew.ctx.Done():
					return
				case req, ok := <-ew.RequestChannel:
					if !ok {
						return
					}
					ew.handle(req)
				}
			}
		}()
	}
}

func (ew *EncodeWorker) handle(req EncodeRequest) {
	ew.logger.Debug("encoding voice note", zap.String("request_id", req.ID), zap.Int("bytes", len(req.Input)))
	defer close(req.Reply)
	ew.Encoder.Run(req.Input, func(m encoder.Message) {
		req.Reply <- m
	})
}

// Stop cancels idle workers and waits for in-flight jobs to finish.
func (ew *EncodeWorker) Stop() {
	ew.cancel()
	ew.wg.Wait()
}
