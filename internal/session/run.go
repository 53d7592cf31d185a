package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rbright/askvoice/internal/ipc"
)

type action int

const (
	actionStop action = iota + 1
	actionCancel
)

// Result is the lifecycle output of one Run invocation.
type Result struct {
	Outcome    Outcome
	Committed  string
	Cancelled  bool
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Run records until a stop or cancel action arrives, then transcribes and commits
// the pending input. It drives hotkey toggles where another process sends the stop.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{StartedAt: time.Now()}
	finish := func() Result {
		result.FinishedAt = time.Now()
		return result
	}

	if err := c.Start(ctx); err != nil {
		result.Err = err
		return finish()
	}
	if c.HostState() != HostRecording {
		result.Err = fmt.Errorf("recording did not start")
		return finish()
	}

	select {
	case <-ctx.Done():
		c.Cancel()
		result.Cancelled = true
		result.Err = ctx.Err()
		return finish()
	case a := <-c.actions:
		switch a {
		case actionCancel:
			c.Cancel()
			result.Cancelled = true
			return finish()
		case actionStop:
			outcome, interrupted, err := c.stopDetached(ctx)
			if interrupted {
				result.Cancelled = true
				result.Err = ctx.Err()
				return finish()
			}
			result.Outcome = outcome
			if err != nil {
				result.Err = err
				return finish()
			}
			if outcome.Discarded {
				result.Cancelled = true
				return finish()
			}
			if !outcome.Succeeded() {
				result.Err = outcome.Err
				return finish()
			}

			text := c.TakePending()
			if err := c.opts.Committer.Commit(ctx, text); err != nil {
				result.Err = fmt.Errorf("commit transcript: %w", err)
				return finish()
			}
			result.Committed = text
			return finish()
		default:
			c.Cancel()
			result.Err = fmt.Errorf("unknown action %d", a)
			return finish()
		}
	}
}

// stopDetached runs Stop on a context the host signal cannot abort, so an in-flight
// transcription finishes under its own budget. A host cancellation meanwhile cancels the
// controller, which discards the late result, and reports interrupted.
func (c *Controller) stopDetached(ctx context.Context) (Outcome, bool, error) {
	type stopped struct {
		outcome Outcome
		err     error
	}
	done := make(chan stopped, 1)
	go func() {
		outcome, err := c.Stop(context.WithoutCancel(ctx))
		done <- stopped{outcome: outcome, err: err}
	}()

	select {
	case s := <-done:
		return s.outcome, false, s.err
	case <-ctx.Done():
		c.Cancel()
		return Outcome{Discarded: true}, true, nil
	}
}

// Handle serves IPC commands for the process running Run.
func (c *Controller) Handle(_ context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case ipc.CommandStatus:
		snap := c.Snapshot()
		return ipc.Response{OK: true, State: string(snap.State), Elapsed: snap.Elapsed, Message: "status"}
	case ipc.CommandToggle:
		return c.requestStop(ipc.CommandToggle)
	case ipc.CommandStop:
		return c.requestStop(ipc.CommandStop)
	case ipc.CommandCancel:
		return c.requestCancel()
	default:
		return ipc.Response{OK: false, State: string(c.HostState()), Error: fmt.Sprintf("unknown command: %s", req.Command)}
	}
}

// requestStop enqueues a stop action when state permits it.
func (c *Controller) requestStop(source string) ipc.Response {
	state := c.HostState()
	if state == HostProcessing {
		return ipc.Response{OK: false, State: string(state), Error: "already processing"}
	}
	if state != HostRecording {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot %s from state %s", source, state)}
	}

	select {
	case c.actions <- actionStop:
		return ipc.Response{OK: true, State: string(state), Message: "stop requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: "stop already requested"}
	}
}

// requestCancel enqueues a cancel action when state permits it.
func (c *Controller) requestCancel() ipc.Response {
	state := c.HostState()
	if state == HostProcessing {
		return ipc.Response{OK: false, State: string(state), Error: "cannot cancel while processing"}
	}
	if state != HostRecording {
		return ipc.Response{OK: false, State: string(state), Error: fmt.Sprintf("cannot cancel from state %s", state)}
	}

	select {
	case c.actions <- actionCancel:
		return ipc.Response{OK: true, State: string(state), Message: "cancel requested"}
	default:
		return ipc.Response{OK: true, State: string(state), Message: "cancel already requested"}
	}
}
