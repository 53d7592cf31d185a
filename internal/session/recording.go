package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/askvoice/internal/capture"
	"github.com/rbright/askvoice/internal/chunk"
	"github.com/rbright/askvoice/internal/clock"
	"github.com/rbright/askvoice/internal/encoding"
	"github.com/rbright/askvoice/internal/fsm"
	"github.com/rbright/askvoice/internal/metrics"
	"github.com/rbright/askvoice/internal/speech"
)

const (
	// DefaultMinBytes is the smallest recording worth sending for transcription.
	DefaultMinBytes = 1024
	// DefaultTimeslice is how much audio each captured block covers.
	DefaultTimeslice = time.Second
	// DefaultLanguage is the transcription language hint.
	DefaultLanguage = "vi"

	tickInterval = time.Second
)

// RecordingConfig wires one recording to its device and policies.
type RecordingConfig struct {
	Device     capture.Device
	Negotiator encoding.Negotiator
	Clock      clock.Clock
	Timeslice  time.Duration
	MinBytes   int
	Language   string
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// Recording owns one microphone capture from request to finalize or abort.
//
// Blocks are buffered only while the state is recording, and elapsed time
// advances only while recording and before stop is requested.
type Recording struct {
	id  string
	cfg RecordingConfig

	mu            sync.Mutex
	state         fsm.State
	startedAt     time.Time
	elapsed       int
	enc           encoding.Encoding
	buffer        *chunk.Buffer
	stream        capture.Stream
	recorder      capture.Recorder
	ticker        clock.Ticker
	tickStop      chan struct{}
	pumpDone      chan struct{}
	stopRequested bool
	released      bool
}

// NewRecording returns an idle recording with defaults applied.
func NewRecording(cfg RecordingConfig) *Recording {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if len(cfg.Negotiator.Candidates()) == 0 {
		cfg.Negotiator = encoding.Default()
	}
	if cfg.Timeslice <= 0 {
		cfg.Timeslice = DefaultTimeslice
	}
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = DefaultMinBytes
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	return &Recording{
		id:    uuid.NewString(),
		cfg:   cfg,
		state: fsm.StateIdle,
	}
}

func (r *Recording) ID() string {
	return r.id
}

func (r *Recording) State() fsm.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Elapsed returns whole seconds recorded so far.
func (r *Recording) Elapsed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.elapsed
}

// Encoding returns the negotiated encoding once recording has begun.
func (r *Recording) Encoding() encoding.Encoding {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enc
}

// BufferedBytes reports the audio captured so far.
func (r *Recording) BufferedBytes() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.buffer == nil {
		return 0
	}
	return r.buffer.TotalSize()
}

// Start acquires the device, negotiates an encoding, and begins buffering blocks.
func (r *Recording) Start(ctx context.Context) error {
	r.mu.Lock()
	if err := r.transitionLocked(fsm.EventStart); err != nil {
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	stream, openErr := r.cfg.Device.Open(ctx)

	r.mu.Lock()
	if r.state != fsm.StateRequesting {
		r.mu.Unlock()
		if stream != nil {
			_ = stream.Close()
		}
		return errTornDown
	}
	if openErr != nil {
		_ = r.transitionLocked(fsm.EventDenied)
		r.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrDeviceAccessDenied, openErr)
	}
	r.stream = stream

	enc, supported := r.cfg.Negotiator.Negotiate(r.cfg.Device.Supports)
	if !supported {
		r.logWarn("no preferred encoding supported; using fallback", "encoding", string(enc))
	}

	recorder, err := stream.Record(enc, r.cfg.Timeslice)
	if err != nil {
		detached := r.detachLocked()
		_ = r.transitionLocked(fsm.EventFail)
		r.mu.Unlock()
		closeStream(detached)
		return fmt.Errorf("%w: start recorder (%s): %v", ErrCaptureFailed, enc, err)
	}

	if err := r.transitionLocked(fsm.EventAcquired); err != nil {
		r.mu.Unlock()
		return err
	}
	r.recorder = recorder
	r.enc = enc
	r.buffer = &chunk.Buffer{}
	r.startedAt = r.cfg.Clock.Now()
	r.elapsed = 0
	r.ticker = r.cfg.Clock.NewTicker(tickInterval)
	r.tickStop = make(chan struct{})
	r.pumpDone = make(chan struct{})

	go r.tick(r.ticker, r.tickStop)
	go r.pump(recorder.Chunks(), r.buffer, r.pumpDone)
	r.mu.Unlock()

	r.cfg.Metrics.RecordStarted()
	r.logInfo("recording started", "encoding", string(enc))
	return nil
}

// Stop flushes the recorder and finalizes the buffered audio into a request.
//
// It returns ErrNotRecording when no capture is active, ErrCaptureFailed when
// the flush fails, and ErrBelowMinimumSize when too little audio arrived.
func (r *Recording) Stop(ctx context.Context) (speech.Request, error) {
	r.mu.Lock()
	if r.state != fsm.StateRecording || r.stopRequested {
		r.mu.Unlock()
		return speech.Request{}, ErrNotRecording
	}
	r.stopRequested = true
	r.stopTickerLocked()
	recorder := r.recorder
	pumpDone := r.pumpDone
	elapsed := r.elapsed
	r.mu.Unlock()

	flushErr := recorder.Stop(ctx)
	select {
	case <-pumpDone:
	case <-ctx.Done():
		if flushErr == nil {
			flushErr = ctx.Err()
		}
	}

	r.mu.Lock()
	if r.state != fsm.StateRecording {
		r.mu.Unlock()
		return speech.Request{}, errTornDown
	}
	_ = r.transitionLocked(fsm.EventStop)

	if flushErr != nil {
		detached := r.detachLocked()
		r.buffer = nil
		_ = r.transitionLocked(fsm.EventFail)
		r.mu.Unlock()
		closeStream(detached)
		r.cfg.Metrics.RecordReleased()
		return speech.Request{}, fmt.Errorf("%w: flush recorder: %v", ErrCaptureFailed, flushErr)
	}

	size := r.buffer.TotalSize()
	blocks := r.buffer.Drain()
	r.buffer = nil
	detached := r.detachLocked()
	_ = r.transitionLocked(fsm.EventFinalize)
	enc := r.enc
	r.mu.Unlock()

	closeStream(detached)
	r.cfg.Metrics.RecordReleased()
	r.cfg.Metrics.RecordStopped(elapsed, size)

	// MinBytes bounds the uploaded blob, so a streamed container header counts toward it.
	if size < r.cfg.MinBytes {
		r.logInfo("recording below minimum size", "bytes", size, "min_bytes", r.cfg.MinBytes)
		return speech.Request{}, fmt.Errorf("%w: %d of %d bytes", ErrBelowMinimumSize, size, r.cfg.MinBytes)
	}

	r.logInfo("recording finalized", "bytes", size, "blocks", len(blocks), "elapsed_s", elapsed)
	return speech.Request{
		ID:       r.id,
		Audio:    chunk.Join(blocks),
		MimeType: enc,
		Language: r.cfg.Language,
	}, nil
}

// Teardown releases the device, stops the ticker, and drops the buffer. Idempotent.
func (r *Recording) Teardown() {
	r.mu.Lock()
	if r.state.Terminal() {
		r.mu.Unlock()
		return
	}
	hadStream := r.stream != nil && !r.released
	r.stopTickerLocked()
	detached := r.detachLocked()
	r.buffer = nil
	_ = r.transitionLocked(fsm.EventTeardown)
	r.mu.Unlock()

	closeStream(detached)
	if hadStream {
		r.cfg.Metrics.RecordReleased()
	}
	r.logInfo("recording torn down")
}

// tick advances elapsed time once per tick until stopped.
func (r *Recording) tick(ticker clock.Ticker, stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case <-ticker.C():
			r.mu.Lock()
			if r.state == fsm.StateRecording && !r.stopRequested {
				r.elapsed++
			}
			r.mu.Unlock()
		}
	}
}

// pump appends every delivered block while the recording is live.
func (r *Recording) pump(chunks <-chan []byte, buffer *chunk.Buffer, done chan<- struct{}) {
	defer close(done)
	for block := range chunks {
		r.mu.Lock()
		if r.state == fsm.StateRecording {
			buffer.Append(block)
		}
		r.mu.Unlock()
	}
}

func (r *Recording) transitionLocked(event fsm.Event) error {
	next, err := fsm.Transition(r.state, event)
	if err != nil {
		return err
	}
	r.state = next
	return nil
}

func (r *Recording) stopTickerLocked() {
	if r.ticker == nil {
		return
	}
	r.ticker.Stop()
	close(r.tickStop)
	r.ticker = nil
}

// detachLocked hands the stream to the caller for closing, at most once per recording.
func (r *Recording) detachLocked() capture.Stream {
	if r.released || r.stream == nil {
		return nil
	}
	r.released = true
	return r.stream
}

func closeStream(stream capture.Stream) {
	if stream != nil {
		_ = stream.Close()
	}
}

func (r *Recording) logInfo(msg string, args ...any) {
	if r.cfg.Logger == nil {
		return
	}
	r.cfg.Logger.Info(msg, append([]any{"recording_id", r.id}, args...)...)
}

func (r *Recording) logWarn(msg string, args ...any) {
	if r.cfg.Logger == nil {
		return
	}
	r.cfg.Logger.Warn(msg, append([]any{"recording_id", r.id}, args...)...)
}
