// Package ipc carries owner-process commands over a unix socket as JSON lines.
package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

// Commands served by the process that owns the active recording.
const (
	CommandStatus = "status"
	CommandToggle = "toggle"
	CommandStop   = "stop"
	CommandCancel = "cancel"
)

// Owner states reported in Response.State.
const (
	StateIdle       = "idle"
	StateRecording  = "recording"
	StateProcessing = "processing"
)

// KnownCommand reports whether cmd is forwarded to an owner process.
func KnownCommand(cmd string) bool {
	switch cmd {
	case CommandStatus, CommandToggle, CommandStop, CommandCancel:
		return true
	default:
		return false
	}
}

type Request struct {
	Command string `json:"command"`
}

type Response struct {
	OK      bool   `json:"ok"`
	State   string `json:"state,omitempty"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	// Elapsed is whole seconds recorded. Only a recording owner reports it.
	Elapsed int `json:"elapsed_s,omitempty"`
}

// normalized fills an absent state with idle and drops elapsed time outside recording.
func (r Response) normalized() Response {
	if r.State == "" {
		r.State = StateIdle
	}
	if r.State != StateRecording || r.Elapsed < 0 {
		r.Elapsed = 0
	}
	return r
}

func writeLine(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

// readLine decodes one newline-terminated JSON value. what names it in errors.
func readLine[T any](r io.Reader, what string) (T, error) {
	var v T
	line, err := bufio.NewReader(r).ReadBytes('\n')
	if err != nil {
		return v, fmt.Errorf("read %s: %w", what, err)
	}
	if err := json.Unmarshal(line, &v); err != nil {
		return v, fmt.Errorf("decode %s: %w", what, err)
	}
	return v, nil
}
