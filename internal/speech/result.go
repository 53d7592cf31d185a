// Package speech talks to remote transcription services and classifies their outcomes.
package speech

import (
	"context"
	"errors"
	"net"

	"github.com/rbright/askvoice/internal/encoding"
)

// DefaultFailureDetail is shown when the service answers without usable text or a message.
const DefaultFailureDetail = "Không nhận diện được giọng nói"

// Reason classifies why a transcription attempt produced no text.
type Reason string

const (
	ReasonTranscriptionFailed Reason = "transcription_failed"
	ReasonNetworkTimeout      Reason = "network_timeout"
	ReasonPayloadTooLarge     Reason = "payload_too_large"
	ReasonServiceUnavailable  Reason = "service_unavailable"
	// ReasonCanceled means the caller abandoned the request. It is never shown to the user.
	ReasonCanceled Reason = "canceled"
)

// Request is the immutable upload derived from one finalized recording.
type Request struct {
	ID       string
	Audio    []byte
	MimeType encoding.Encoding
	Language string
}

// Filename returns the upload filename implied by the request encoding.
func (r Request) Filename() string {
	return "recording" + encoding.Extension(r.MimeType)
}

// Failure is the error half of a Result.
type Failure struct {
	Reason Reason
	Detail string
}

func (f *Failure) Error() string {
	if f.Detail == "" {
		return string(f.Reason)
	}
	return string(f.Reason) + ": " + f.Detail
}

// Result is either Text (Failure == nil) or a classified Failure.
type Result struct {
	Text    string
	Failure *Failure
}

// OK reports whether the result carries usable text.
func (r Result) OK() bool {
	return r.Failure == nil
}

// Canceled reports whether the caller abandoned the attempt before a response arrived.
func (r Result) Canceled() bool {
	return r.Failure != nil && r.Failure.Reason == ReasonCanceled
}

// Err returns the failure as an error, or nil on success.
func (r Result) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

func succeeded(text string) Result {
	return Result{Text: text}
}

func failed(reason Reason, detail string) Result {
	return Result{Failure: &Failure{Reason: reason, Detail: detail}}
}

// transportFailure classifies an error that kept a complete response from arriving.
func transportFailure(err error, detail string) Result {
	switch {
	case errors.Is(err, context.Canceled):
		return failed(ReasonCanceled, "")
	case isTimeout(err):
		return failed(ReasonNetworkTimeout, "")
	default:
		return failed(ReasonServiceUnavailable, detail)
	}
}

// isTimeout reports deadline expiry at the context or transport level.
func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
