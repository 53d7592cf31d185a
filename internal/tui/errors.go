package tui

import (
	"errors"

	"github.com/rbright/askvoice/internal/session"
)

var reported = []error{
	session.ErrDeviceAccessDenied,
	session.ErrCaptureFailed,
	session.ErrBelowMinimumSize,
	session.ErrNotRecording,
}

func isReported(err error) bool {
	for _, target := range reported {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
