// Package capture defines the microphone device contract consumed by recording sessions.
package capture

import (
	"context"
	"errors"
	"time"

	"github.com/rbright/askvoice/internal/encoding"
)

// ErrAccessDenied indicates the device refused access or no input is present.
var ErrAccessDenied = errors.New("microphone access denied")

// Device is the local capture path: capability query, encoding support, and stream acquisition.
type Device interface {
	// CaptureSupported reports whether audio capture is possible at all.
	CaptureSupported(ctx context.Context) (bool, error)
	// Supports reports whether the device can record in the given encoding.
	Supports(enc encoding.Encoding) bool
	// Open acquires a live audio stream. Denials should wrap ErrAccessDenied.
	Open(ctx context.Context) (Stream, error)
}

// Stream is one acquired input stream.
type Stream interface {
	// Record starts emitting blocks of roughly timeslice worth of audio.
	Record(enc encoding.Encoding, timeslice time.Duration) (Recorder, error)
	// Close stops every track of the stream, including an active recorder.
	Close() error
}

// Recorder produces timed binary blocks over a stream.
//
// Chunks is closed once recording ends, after the final flushed block, whether
// Stop succeeds, fails, or the owning Stream is closed.
type Recorder interface {
	Chunks() <-chan []byte
	// Stop flushes the in-flight block and completes the recording.
	Stop(ctx context.Context) error
}
