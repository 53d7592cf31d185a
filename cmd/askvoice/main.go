// Package main provides the askvoice CLI process entrypoint.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rbright/askvoice/internal/app"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run cancels the command on the first SIGINT/SIGTERM. Signal handling is then
// restored to the default, so a second interrupt terminates the process at once.
func run(parent context.Context, args []string, stdout, stderr io.Writer) int {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		stop()
	}()

	return app.Execute(ctx, args, stdout, stderr)
}
