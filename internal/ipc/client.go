package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// Send forwards one owner command and returns the owner's normalized response.
func Send(ctx context.Context, path string, req Request, timeout time.Duration) (Response, error) {
	if !KnownCommand(req.Command) {
		return Response{}, fmt.Errorf("unknown command: %s", req.Command)
	}

	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return Response{}, fmt.Errorf("set deadline: %w", err)
	}
	if err := writeLine(conn, req); err != nil {
		return Response{}, fmt.Errorf("encode request: %w", err)
	}

	resp, err := readLine[Response](conn, "response")
	if err != nil {
		return Response{}, err
	}
	return resp.normalized(), nil
}

// Probe reports whether a responsive owner listens on path. A missing socket or
// one nobody accepts on is not an error.
func Probe(ctx context.Context, path string, timeout time.Duration) (bool, error) {
	_, err := Send(ctx, path, Request{Command: CommandStatus}, timeout)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, os.ErrNotExist), errors.Is(err, syscall.ECONNREFUSED):
		return false, nil
	default:
		return false, fmt.Errorf("probe socket: %w", err)
	}
}
