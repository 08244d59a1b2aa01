package workers

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrsingh-rishi/voice-bridge/encoder"
)

type stubBlocks struct{}

func (stubBlocks) EncodeBlock([][]int16) ([]byte, error) { return []byte{0xFF}, nil }
func (stubBlocks) Flush() ([]byte, error)                { return nil, nil }

func newStubEncoder(t *testing.T) *encoder.Encoder {
	t.Helper()
	enc, err := encoder.New(encoder.DefaultOptions(), encoder.WithBlockEncoder(
		func(encoder.Options) (encoder.BlockEncoder, error) { return stubBlocks{}, nil },
	))
	require.NoError(t, err)
	return enc
}

func TestNewEncodeWorkerValidation(t *testing.T) {
	_, err := NewEncodeWorker(nil, make(chan EncodeRequest), 1, nil)
	assert.Error(t, err)
	_, err = NewEncodeWorker(newStubEncoder(t), nil, 1, nil)
	assert.Error(t, err)

	w, err := NewEncodeWorker(newStubEncoder(t), make(chan EncodeRequest), 0, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, w.Concurrency)
}

func TestEncodeWorkerRepliesAndCloses(t *testing.T) {
	requests := make(chan EncodeRequest)
	w, err := NewEncodeWorker(newStubEncoder(t), requests, 2, nil)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	reply := make(chan encoder.Message, 32)
	requests <- EncodeRequest{ID: "r1", Input: []byte("junk"), Reply: reply}

	var msgs []encoder.Message
	timeout := time.After(2 * time.Second)
	for done := false; !done; {
		select {
		case m, ok := <-reply:
			if !ok {
				done = true
				break
			}
			msgs = append(msgs, m)
		case <-timeout:
			t.Fatal("worker never closed the reply channel")
		}
	}
	require.NotEmpty(t, msgs)
	assert.IsType(t, encoder.Failure{}, msgs[len(msgs)-1])
}

func TestEncodeWorkerStop(t *testing.T) {
	w, err := NewEncodeWorker(newStubEncoder(t), make(chan EncodeRequest), 3, nil)
	require.NoError(t, err)
	w.Start()

	stopped := make(chan struct{})
	go func() {
		w.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return")
	}
}
