package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rbright/askvoice/internal/audio"
	"github.com/rbright/askvoice/internal/encoding"
	"github.com/rbright/askvoice/internal/session"
	"github.com/rbright/askvoice/internal/speech"
)

// Transcriber prepares finalized recordings for upload and forwards them to a backend.
// Streamed WAV headers get their real sizes; debug dumps are written when enabled.
type Transcriber struct {
	next      session.Transcriber
	dumpAudio bool
	logger    *slog.Logger
}

var _ session.Transcriber = (*Transcriber)(nil)

// Transcribe finalizes req and hands it to the configured backend.
func (t *Transcriber) Transcribe(ctx context.Context, req speech.Request) speech.Result {
	if req.MimeType == encoding.WAV {
		req.Audio = audio.FinalizeWAV(req.Audio)
	}
	t.writeDebugAudio(req)

	if t.next == nil {
		return speech.Result{Failure: &speech.Failure{Reason: speech.ReasonServiceUnavailable}}
	}
	return t.next.Transcribe(ctx, req)
}

// writeDebugAudio writes the upload payload when debug.audio_dump is enabled.
func (t *Transcriber) writeDebugAudio(req speech.Request) {
	if !t.dumpAudio || len(req.Audio) == 0 {
		return
	}

	ext := strings.TrimPrefix(encoding.Extension(req.MimeType), ".")
	file, err := createDebugFile("audio", ext)
	if err != nil {
		t.logWarn(fmt.Sprintf("unable to create debug audio dump: %v", err))
		return
	}
	defer file.Close()

	if _, err := file.Write(req.Audio); err != nil {
		t.logWarn(fmt.Sprintf("unable to write debug audio dump: %v", err))
	}
}

// logWarn emits warning-level logs when logger is configured.
func (t *Transcriber) logWarn(message string) {
	if t.logger == nil {
		return
	}
	t.logger.Warn(message)
}

// createDebugFile creates timestamped debug artifacts under state/askvoice/debug.
func createDebugFile(prefix string, extension string) (*os.File, error) {
	stateDir, err := resolveStateDir()
	if err != nil {
		return nil, err
	}
	debugDir := filepath.Join(stateDir, "askvoice", "debug")
	if err := os.MkdirAll(debugDir, 0o700); err != nil {
		return nil, fmt.Errorf("create debug dir: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405.000")
	path := filepath.Join(debugDir, fmt.Sprintf("%s-%s.%s", prefix, timestamp, extension))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open debug file %q: %w", path, err)
	}
	return file, nil
}

// resolveStateDir returns XDG_STATE_HOME fallback path for debug artifacts.
func resolveStateDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return xdg, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory for state: %w", err)
	}
	return filepath.Join(home, ".local", "state"), nil
}
