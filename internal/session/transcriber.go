package session

import (
	"context"
	"errors"

	"github.com/rbright/askvoice/internal/speech"
)

var (
	// ErrVoiceUnavailable indicates the capability probe hid voice input.
	ErrVoiceUnavailable = errors.New("voice input unavailable: microphone or speech service missing")
	// ErrDeviceAccessDenied indicates the microphone could not be acquired.
	ErrDeviceAccessDenied = errors.New("microphone access denied")
	// ErrCaptureFailed indicates the device failed to record or flush.
	ErrCaptureFailed = errors.New("audio capture failed")
	// ErrBelowMinimumSize indicates the recording was too short to transcribe.
	ErrBelowMinimumSize = errors.New("recording below minimum size")
	// ErrNotRecording indicates stop was requested without an active recording.
	ErrNotRecording = errors.New("not recording")
	// ErrClosed indicates the controller was torn down.
	ErrClosed = errors.New("voice controller closed")

	errTornDown = errors.New("recording torn down")
)

// Transcriber turns one finalized recording into a classified result.
type Transcriber interface {
	Transcribe(context.Context, speech.Request) speech.Result
}

// TranscribeFunc adapts a function to the Transcriber interface.
type TranscribeFunc func(context.Context, speech.Request) speech.Result

func (f TranscribeFunc) Transcribe(ctx context.Context, req speech.Request) speech.Result {
	return f(ctx, req)
}

// unavailableTranscriber keeps the controller usable when no backend is wired.
type unavailableTranscriber struct{}

func (unavailableTranscriber) Transcribe(context.Context, speech.Request) speech.Result {
	return speech.Result{Failure: &speech.Failure{
		Reason: speech.ReasonServiceUnavailable,
		Detail: "no transcription backend configured",
	}}
}
