// Package session coordinates voice recordings, transcription, and their user-visible outcomes.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rbright/askvoice/internal/capability"
	"github.com/rbright/askvoice/internal/capture"
	"github.com/rbright/askvoice/internal/clock"
	"github.com/rbright/askvoice/internal/encoding"
	"github.com/rbright/askvoice/internal/fsm"
	"github.com/rbright/askvoice/internal/ipc"
	"github.com/rbright/askvoice/internal/metrics"
	"github.com/rbright/askvoice/internal/notify"
	"github.com/rbright/askvoice/internal/speech"
	"github.com/rbright/askvoice/internal/transcript"
)

// HostState is the coarse state a host UI renders.
type HostState string

const (
	HostIdle       HostState = ipc.StateIdle
	HostRecording  HostState = ipc.StateRecording
	HostProcessing HostState = ipc.StateProcessing
)

// Notifier posts user-facing notifications.
type Notifier interface {
	Post(text string, category notify.Category) notify.Notification
}

type noopNotifier struct{}

func (noopNotifier) Post(text string, category notify.Category) notify.Notification {
	return notify.Notification{Text: text, Category: category}
}

// Cues marks recording transitions, typically with a short tone.
type Cues interface {
	CueStart(context.Context)
	CueStop(context.Context)
}

type noopCues struct{}

func (noopCues) CueStart(context.Context) {}
func (noopCues) CueStop(context.Context)  {}

// Options wires a Controller. Device is required; everything else has a fallback.
type Options struct {
	Logger      *slog.Logger
	Device      capture.Device
	Transcriber Transcriber
	Notifier    Notifier
	Committer   Committer
	Cues        Cues
	Prober      *capability.Prober
	Clock       clock.Clock
	Negotiator  encoding.Negotiator
	Timeslice   time.Duration
	MinBytes    int
	Language    string
	Metrics     *metrics.Metrics
}

// Outcome is the terminal result of one stop request.
type Outcome struct {
	RecordingID string
	Category    notify.Category
	Text        string
	Detail      string
	Bytes       int
	Encoding    encoding.Encoding
	// Discarded is set when a cancel or teardown overtook the recording.
	Discarded bool
	Err       error
}

// Succeeded reports whether the outcome carries transcribed text.
func (o Outcome) Succeeded() bool {
	return o.Category == notify.CategoryTranscriptionSucceeded
}

// Snapshot is a consistent view of controller state for hosts.
type Snapshot struct {
	State        HostState
	Recording    fsm.State
	Elapsed      int
	Pending      string
	Capability   capability.Capability
	VoiceEnabled bool
}

// Controller owns application voice state: capability, the active recording,
// pending input text, and the processing flag.
type Controller struct {
	opts Options

	mu         sync.Mutex
	capability capability.Capability
	recording  *Recording
	processing bool
	generation uint64
	pending    string
	closed     bool

	actions chan action
}

// NewController constructs a controller with safe default fallbacks.
func NewController(opts Options) *Controller {
	if opts.Transcriber == nil {
		opts.Transcriber = unavailableTranscriber{}
	}
	if opts.Notifier == nil {
		opts.Notifier = noopNotifier{}
	}
	if opts.Committer == nil {
		opts.Committer = CommitFunc(func(context.Context, string) error { return nil })
	}
	if opts.Cues == nil {
		opts.Cues = noopCues{}
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	return &Controller{
		opts:    opts,
		actions: make(chan action, 1),
	}
}

// SetCapability replaces the stored probe result.
func (c *Controller) SetCapability(capa capability.Capability) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.capability = capa
}

// Capability returns the stored probe result.
func (c *Controller) Capability() capability.Capability {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capability
}

// Reprobe re-derives capability through the configured prober.
func (c *Controller) Reprobe(ctx context.Context) capability.Capability {
	if c.opts.Prober == nil {
		return c.Capability()
	}
	capa := c.opts.Prober.Probe(ctx)
	c.SetCapability(capa)
	return capa
}

// Pending returns the pending input text.
func (c *Controller) Pending() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// SetPending replaces the pending input text, as when the user edits it.
func (c *Controller) SetPending(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = text
}

// TakePending returns and clears the pending input text.
func (c *Controller) TakePending() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	text := c.pending
	c.pending = ""
	return text
}

// HostState maps the recording lifecycle onto idle/recording/processing.
func (c *Controller) HostState() HostState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hostStateLocked()
}

func (c *Controller) hostStateLocked() HostState {
	if c.processing {
		return HostProcessing
	}
	if c.recording == nil {
		return HostIdle
	}
	switch c.recording.State() {
	case fsm.StateRequesting, fsm.StateRecording:
		return HostRecording
	case fsm.StateStopping:
		return HostProcessing
	default:
		return HostIdle
	}
}

// Elapsed returns whole seconds of the active recording, 0 when idle.
func (c *Controller) Elapsed() int {
	c.mu.Lock()
	rec := c.recording
	c.mu.Unlock()
	if rec == nil {
		return 0
	}
	return rec.Elapsed()
}

// Snapshot returns the state a host renders in one call.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	snap := Snapshot{
		State:        c.hostStateLocked(),
		Recording:    fsm.StateIdle,
		Pending:      c.pending,
		Capability:   c.capability,
		VoiceEnabled: c.capability.VoiceEnabled(),
	}
	if c.recording != nil {
		snap.Recording = c.recording.State()
		if snap.State == HostRecording {
			snap.Elapsed = c.recording.Elapsed()
		}
	}
	return snap
}

// Start begins a recording. It is a no-op while a recording or transcription is active.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.capability.VoiceEnabled() {
		c.mu.Unlock()
		return ErrVoiceUnavailable
	}
	if c.processing || (c.recording != nil && !c.recording.State().Terminal()) {
		c.mu.Unlock()
		return nil
	}
	rec := NewRecording(RecordingConfig{
		Device:     c.opts.Device,
		Negotiator: c.opts.Negotiator,
		Clock:      c.opts.Clock,
		Timeslice:  c.opts.Timeslice,
		MinBytes:   c.opts.MinBytes,
		Language:   c.opts.Language,
		Logger:     c.opts.Logger,
		Metrics:    c.opts.Metrics,
	})
	c.recording = rec
	c.mu.Unlock()

	err := rec.Start(ctx)
	switch {
	case err == nil:
		c.opts.Cues.CueStart(ctx)
		return nil
	case errors.Is(err, errTornDown):
		return nil
	case errors.Is(err, ErrDeviceAccessDenied):
		c.report(Outcome{RecordingID: rec.ID(), Category: notify.CategoryDeviceAccessDenied, Err: err})
	case errors.Is(err, ErrCaptureFailed):
		c.report(Outcome{RecordingID: rec.ID(), Category: notify.CategoryCaptureFailed, Err: err})
	}
	return err
}

// Stop finalizes the active recording and transcribes it.
// It returns ErrNotRecording, without side effects, when nothing is recording.
func (c *Controller) Stop(ctx context.Context) (Outcome, error) {
	c.mu.Lock()
	rec := c.recording
	if c.processing || rec == nil || rec.State() != fsm.StateRecording {
		c.mu.Unlock()
		return Outcome{}, ErrNotRecording
	}
	c.processing = true
	gen := c.generation
	c.mu.Unlock()

	req, err := rec.Stop(ctx)
	if err != nil {
		if errors.Is(err, ErrNotRecording) {
			c.finishProcessing(gen)
			return Outcome{}, ErrNotRecording
		}
		if errors.Is(err, errTornDown) || !c.finishProcessing(gen) {
			return Outcome{RecordingID: rec.ID(), Discarded: true}, nil
		}

		outcome := Outcome{RecordingID: rec.ID(), Encoding: rec.Encoding(), Err: err}
		switch {
		case errors.Is(err, ErrBelowMinimumSize):
			outcome.Category = notify.CategoryBelowMinimumSize
		default:
			outcome.Category = notify.CategoryCaptureFailed
		}
		c.report(outcome)
		return outcome, nil
	}

	c.opts.Cues.CueStop(ctx)
	started := time.Now()
	result := c.opts.Transcriber.Transcribe(ctx, req)
	c.recordTranscription(result, time.Since(started))

	if result.Canceled() {
		c.finishProcessing(gen)
		c.logInfo("transcription abandoned by caller", "recording_id", req.ID)
		return Outcome{RecordingID: req.ID, Discarded: true}, nil
	}

	outcome := Outcome{
		RecordingID: req.ID,
		Bytes:       len(req.Audio),
		Encoding:    req.MimeType,
	}
	if result.OK() {
		outcome.Category = notify.CategoryTranscriptionSucceeded
		outcome.Text = result.Text
	} else {
		outcome.Category = categoryForReason(result.Failure.Reason)
		outcome.Detail = result.Failure.Detail
		outcome.Err = result.Failure
	}

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		c.logInfo("transcription result discarded", "recording_id", req.ID)
		return Outcome{RecordingID: req.ID, Discarded: true}, nil
	}
	c.processing = false
	if outcome.Succeeded() {
		c.pending = transcript.AppendPending(c.pending, outcome.Text)
	}
	c.mu.Unlock()

	c.report(outcome)
	return outcome, nil
}

// Cancel tears down the active recording and discards any in-flight transcription.
func (c *Controller) Cancel() {
	c.mu.Lock()
	rec := c.recording
	c.generation++
	c.processing = false
	c.mu.Unlock()

	if rec != nil {
		rec.Teardown()
	}
}

// Teardown cancels everything and refuses later starts. Idempotent.
func (c *Controller) Teardown() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.Cancel()
}

// finishProcessing clears the processing flag unless a cancel overtook gen.
func (c *Controller) finishProcessing(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		return false
	}
	c.processing = false
	return true
}

// report posts exactly one notification for a terminal outcome.
func (c *Controller) report(outcome Outcome) {
	detail := outcome.Detail
	if outcome.Succeeded() {
		detail = outcome.Text
	}
	c.opts.Notifier.Post(notify.Message(outcome.Category, detail), outcome.Category)
	c.opts.Metrics.RecordOutcome(string(outcome.Category))

	if c.opts.Logger == nil {
		return
	}
	attrs := []any{
		"recording_id", outcome.RecordingID,
		"category", string(outcome.Category),
		"bytes", outcome.Bytes,
		"encoding", string(outcome.Encoding),
	}
	if outcome.Err != nil {
		attrs = append(attrs, "error", outcome.Err.Error())
		c.opts.Logger.Warn("recording outcome", attrs...)
		return
	}
	c.opts.Logger.Info("recording outcome", attrs...)
}

func (c *Controller) recordTranscription(result speech.Result, elapsed time.Duration) {
	label := "ok"
	if !result.OK() {
		label = string(result.Failure.Reason)
	}
	c.opts.Metrics.RecordTranscription(label, elapsed)
}

func (c *Controller) logInfo(msg string, args ...any) {
	if c.opts.Logger == nil {
		return
	}
	c.opts.Logger.Info(msg, args...)
}

// categoryForReason maps a transcription failure onto its notification category.
func categoryForReason(reason speech.Reason) notify.Category {
	switch reason {
	case speech.ReasonNetworkTimeout:
		return notify.CategoryNetworkTimeout
	case speech.ReasonPayloadTooLarge:
		return notify.CategoryPayloadTooLarge
	case speech.ReasonTranscriptionFailed:
		return notify.CategoryTranscriptionFailed
	default:
		return notify.CategoryServiceUnavailable
	}
}

// FormatElapsed renders seconds as m:ss.
func FormatElapsed(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
