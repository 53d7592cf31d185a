package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// requestReadTimeout bounds how long a connected client may take to send its command.
var requestReadTimeout = 2 * time.Second

// Handler processes one IPC command request.
type Handler interface {
	Handle(context.Context, Request) Response
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(context.Context, Request) Response

func (f HandlerFunc) Handle(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

// Serve answers owner commands until ctx is cancelled or the listener closes.
// In-flight connections finish before Serve returns.
func Serve(ctx context.Context, listener net.Listener, handler Handler) error {
	var wg sync.WaitGroup

	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				wg.Wait()
				return nil
			}
			return fmt.Errorf("accept IPC connection: %w", err)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			defer conn.Close()
			serveConn(ctx, conn, handler)
		}()
	}
}

// serveConn answers one request line. Unknown commands never reach the handler.
func serveConn(ctx context.Context, conn net.Conn, handler Handler) {
	_ = conn.SetReadDeadline(time.Now().Add(requestReadTimeout))

	req, err := readLine[Request](conn, "request")
	if err != nil {
		_ = writeLine(conn, Response{OK: false, Error: err.Error()})
		return
	}
	if !KnownCommand(req.Command) {
		_ = writeLine(conn, Response{OK: false, Error: fmt.Sprintf("unknown command: %s", req.Command)})
		return
	}

	_ = writeLine(conn, handler.Handle(ctx, req).normalized())
}
