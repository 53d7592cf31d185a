package session

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/askvoice/internal/capability"
	"github.com/rbright/askvoice/internal/capture"
	"github.com/rbright/askvoice/internal/clock/clocktest"
	"github.com/rbright/askvoice/internal/encoding"
	"github.com/rbright/askvoice/internal/notify"
	"github.com/rbright/askvoice/internal/speech"
)

type fakeDevice struct {
	openErr   error
	recordErr error
	stopErr   error
	final     []byte
	supported map[encoding.Encoding]bool
	openGate  chan struct{}

	opens atomic.Int32

	mu      sync.Mutex
	streams []*fakeStream
}

func (d *fakeDevice) CaptureSupported(context.Context) (bool, error) {
	return true, nil
}

func (d *fakeDevice) Supports(enc encoding.Encoding) bool {
	if d.supported == nil {
		return enc == encoding.WAV
	}
	return d.supported[enc]
}

func (d *fakeDevice) Open(context.Context) (capture.Stream, error) {
	d.opens.Add(1)
	if d.openGate != nil {
		<-d.openGate
	}
	if d.openErr != nil {
		return nil, d.openErr
	}
	s := &fakeStream{recordErr: d.recordErr, stopErr: d.stopErr, final: d.final}
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

func (d *fakeDevice) stream(t *testing.T) *fakeStream {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	require.NotEmpty(t, d.streams)
	return d.streams[len(d.streams)-1]
}

type fakeStream struct {
	recordErr error
	stopErr   error
	final     []byte

	closes atomic.Int32

	mu       sync.Mutex
	recorder *fakeRecorder
	enc      encoding.Encoding
	slice    time.Duration
}

func (s *fakeStream) Record(enc encoding.Encoding, timeslice time.Duration) (capture.Recorder, error) {
	if s.recordErr != nil {
		return nil, s.recordErr
	}
	rec := &fakeRecorder{chunks: make(chan []byte, 64), stopErr: s.stopErr, final: s.final}
	s.mu.Lock()
	s.recorder = rec
	s.enc = enc
	s.slice = timeslice
	s.mu.Unlock()
	return rec, nil
}

func (s *fakeStream) Close() error {
	s.closes.Add(1)
	s.mu.Lock()
	rec := s.recorder
	s.mu.Unlock()
	if rec != nil {
		rec.finish()
	}
	return nil
}

func (s *fakeStream) rec(t *testing.T) *fakeRecorder {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotNil(t, s.recorder)
	return s.recorder
}

type fakeRecorder struct {
	chunks  chan []byte
	stopErr error
	final   []byte

	stops atomic.Int32
	once  sync.Once
}

func (r *fakeRecorder) Chunks() <-chan []byte {
	return r.chunks
}

func (r *fakeRecorder) emit(block []byte) {
	r.chunks <- block
}

func (r *fakeRecorder) Stop(context.Context) error {
	r.stops.Add(1)
	r.once.Do(func() {
		if len(r.final) > 0 {
			r.chunks <- r.final
		}
		close(r.chunks)
	})
	return r.stopErr
}

func (r *fakeRecorder) finish() {
	r.once.Do(func() { close(r.chunks) })
}

type fakeTranscriber struct {
	result  speech.Result
	gate    chan struct{}
	entered chan struct{}

	calls    atomic.Int32
	returned atomic.Int32

	mu      sync.Mutex
	reqs    []speech.Request
	ctxErrs []error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, req speech.Request) speech.Result {
	f.calls.Add(1)
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	if f.entered != nil {
		close(f.entered)
	}
	if f.gate != nil {
		<-f.gate
	}
	f.mu.Lock()
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	f.mu.Unlock()
	f.returned.Add(1)
	return f.result
}

func (f *fakeTranscriber) lastRequest(t *testing.T) speech.Request {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.reqs)
	return f.reqs[len(f.reqs)-1]
}

func (f *fakeTranscriber) lastContextErr(t *testing.T) error {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.ctxErrs)
	return f.ctxErrs[len(f.ctxErrs)-1]
}

type harness struct {
	ctrl        *Controller
	device      *fakeDevice
	transcriber *fakeTranscriber
	channel     *notify.Channel
	clock       *clocktest.Fake
	cues        *fakeCues
}

type fakeCues struct {
	starts atomic.Int32
	stops  atomic.Int32
}

func (f *fakeCues) CueStart(context.Context) { f.starts.Add(1) }
func (f *fakeCues) CueStop(context.Context)  { f.stops.Add(1) }

func newHarness(t *testing.T, device *fakeDevice, transcriber Transcriber) *harness {
	t.Helper()
	clk := clocktest.New(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC))
	channel := notify.New(notify.Options{Clock: clk})
	cues := &fakeCues{}
	ctrl := NewController(Options{
		Device:      device,
		Transcriber: transcriber,
		Notifier:    channel,
		Cues:        cues,
		Clock:       clk,
	})
	ctrl.SetCapability(capability.Capability{DeviceAvailable: true, ServiceAvailable: true})

	h := &harness{ctrl: ctrl, device: device, channel: channel, clock: clk, cues: cues}
	if ft, ok := transcriber.(*fakeTranscriber); ok {
		h.transcriber = ft
	}
	t.Cleanup(ctrl.Teardown)
	return h
}

func (h *harness) categories() []notify.Category {
	live := h.channel.Live()
	out := make([]notify.Category, 0, len(live))
	for _, n := range live {
		out = append(out, n.Category)
	}
	return out
}

// bufferBytes emits blocks and waits until the recording has buffered them.
func (h *harness) bufferBytes(t *testing.T, blocks ...[]byte) {
	t.Helper()
	rec := h.device.stream(t).rec(t)
	want := h.ctrl.recording.BufferedBytes()
	for _, block := range blocks {
		rec.emit(block)
		want += len(block)
	}
	require.Eventually(t, func() bool {
		return h.ctrl.recording.BufferedBytes() == want
	}, time.Second, time.Millisecond)
}

func waitForHostState(t *testing.T, ctrl *Controller, want HostState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return ctrl.HostState() == want
	}, time.Second, 5*time.Millisecond, "state did not reach %s (current=%s)", want, ctrl.HostState())
}

func bytesOf(n int, fill byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = fill
	}
	return out
}
