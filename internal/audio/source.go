package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"

	"github.com/rbright/askvoice/internal/capture"
	"github.com/rbright/askvoice/internal/encoding"
)

const (
	// SampleRate is the capture rate for every recording.
	SampleRate = 16000

	fragmentSizeBytes = 640 // 20ms @ 16kHz mono s16
	chunkQueueDepth   = 64
)

// Source is the PulseAudio microphone as a capture.Device.
type Source struct {
	Input    string
	Fallback string
	Logger   *slog.Logger
}

var _ capture.Device = (*Source)(nil)

// CaptureSupported reports whether a usable input source can be selected.
func (s *Source) CaptureSupported(ctx context.Context) (bool, error) {
	if _, err := SelectInput(ctx, s.Input, s.Fallback); err != nil {
		return false, err
	}
	return true, nil
}

// Supports reports whether the source can produce enc. Pulse capture is PCM, shipped as WAV.
func (s *Source) Supports(enc encoding.Encoding) bool {
	return enc == encoding.WAV
}

// Open selects an input source and connects a Pulse client for it.
func (s *Source) Open(ctx context.Context) (capture.Stream, error) {
	selection, err := SelectInput(ctx, s.Input, s.Fallback)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", capture.ErrAccessDenied, err)
	}
	if selection.Warning != "" && s.Logger != nil {
		s.Logger.Warn(selection.Warning)
	}

	client, err := newPulseClient()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", capture.ErrAccessDenied, err)
	}
	source, err := client.SourceByID(selection.Input.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: resolve source %q: %v", capture.ErrAccessDenied, selection.Input.ID, err)
	}

	if s.Logger != nil {
		s.Logger.Info("microphone opened", "input", DescribeInput(selection.Input))
	}
	return &stream{client: client, source: source, input: selection.Input}, nil
}

// DescribeInput formats source metadata for logs.
func DescribeInput(input Input) string {
	if input.Description == "" {
		return input.ID
	}
	if input.ID == "" {
		return input.Description
	}
	return fmt.Sprintf("%s (%s)", input.Description, input.ID)
}

// stream owns one Pulse client connection and at most one active recorder.
type stream struct {
	client *pulse.Client
	source *pulse.Source
	input  Input

	mu       sync.Mutex
	recorder *recorder
	closed   bool
}

func (s *stream) Record(enc encoding.Encoding, timeslice time.Duration) (capture.Recorder, error) {
	if enc != encoding.WAV {
		return nil, fmt.Errorf("pulse capture cannot produce %s", enc)
	}
	if timeslice <= 0 {
		timeslice = time.Second
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New("stream already closed")
	}
	if s.recorder != nil {
		return nil, errors.New("stream already recording")
	}

	rec := newRecorder(blockSizeFor(timeslice))
	writer := pulse.NewWriter(writerFunc(rec.onPCM), pulseproto.FormatInt16LE)
	record, err := s.client.NewRecord(
		writer,
		pulse.RecordSource(s.source),
		pulse.RecordMono,
		pulse.RecordSampleRate(SampleRate),
		pulse.RecordBufferFragmentSize(fragmentSizeBytes),
		pulse.RecordMediaName("askvoice dictation"),
	)
	if err != nil {
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}
	rec.record = record

	rec.chunks <- wavHeader(unknownSize, SampleRate, 1)
	record.Start()
	s.recorder = rec
	return rec, nil
}

// Close aborts any active recorder and disconnects from Pulse. Idempotent.
func (s *stream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	rec := s.recorder
	s.mu.Unlock()

	if rec != nil {
		rec.abort()
	}
	if s.client != nil {
		s.client.Close()
	}
	return nil
}

// blockSizeFor converts a timeslice into PCM bytes at 16kHz mono s16.
func blockSizeFor(timeslice time.Duration) int {
	bytesPerSecond := SampleRate * (bitsPerSample / 8)
	size := int(int64(bytesPerSecond) * int64(timeslice) / int64(time.Second))
	if size < fragmentSizeBytes {
		size = fragmentSizeBytes
	}
	return size - size%2
}

// recorder slices captured PCM into timeslice-sized blocks.
type recorder struct {
	blockSize int
	record    *pulse.RecordStream

	chunks chan []byte
	stopCh chan struct{}

	mu      sync.Mutex
	pending []byte
	stopped bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
}

func newRecorder(blockSize int) *recorder {
	return &recorder{
		blockSize: blockSize,
		chunks:    make(chan []byte, chunkQueueDepth),
		stopCh:    make(chan struct{}),
	}
}

func (r *recorder) Chunks() <-chan []byte {
	return r.chunks
}

// BytesCaptured reports PCM bytes accepted from Pulse.
func (r *recorder) BytesCaptured() int64 {
	return r.bytes.Load()
}

// Stop halts capture, emits the residual partial block, and closes Chunks.
func (r *recorder) Stop(ctx context.Context) error {
	if !r.halt() {
		return nil
	}

	r.mu.Lock()
	residual := r.pending
	r.pending = nil
	r.mu.Unlock()

	var err error
	if len(residual) > 0 {
		select {
		case r.chunks <- residual:
		case <-ctx.Done():
			err = fmt.Errorf("flush final block: %w", ctx.Err())
		}
	}
	close(r.chunks)
	return err
}

// abort halts capture and drops any residual block.
func (r *recorder) abort() {
	if !r.halt() {
		return
	}
	r.mu.Lock()
	r.pending = nil
	r.mu.Unlock()
	close(r.chunks)
}

// halt stops the Pulse stream once and waits for in-flight writes. Reports whether it did the work.
func (r *recorder) halt() bool {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return false
	}
	r.stopped = true
	close(r.stopCh)
	r.mu.Unlock()

	if r.record != nil {
		r.record.Stop()
		r.record.Close()
	}
	r.inflight.Wait()
	return true
}

// onPCM receives raw Pulse frames and emits blockSize slices to r.chunks.
func (r *recorder) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	select {
	case <-r.stopCh:
		return 0, io.EOF
	default:
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return 0, io.EOF
	}
	// Add under the same mutex as r.stopped to avoid Add/Wait races.
	r.inflight.Add(1)

	r.pending = append(r.pending, buffer...)
	blocks := make([][]byte, 0, len(r.pending)/r.blockSize)
	for len(r.pending) >= r.blockSize {
		block := make([]byte, r.blockSize)
		copy(block, r.pending[:r.blockSize])
		r.pending = r.pending[r.blockSize:]
		blocks = append(blocks, block)
	}
	r.mu.Unlock()
	defer r.inflight.Done()

	r.bytes.Add(int64(len(buffer)))

	for i, block := range blocks {
		select {
		case <-r.stopCh:
			r.requeue(blocks[i:])
			return len(buffer), nil
		case r.chunks <- block:
		}
	}
	return len(buffer), nil
}

// requeue puts unsent blocks back in front of the residual so Stop can flush them.
func (r *recorder) requeue(blocks [][]byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var unsent []byte
	for _, block := range blocks {
		unsent = append(unsent, block...)
	}
	r.pending = append(unsent, r.pending...)
}
