// Package output applies transcript commit side effects (clipboard and paste).
package output

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"time"

	"github.com/atotto/clipboard"

	"github.com/rbright/askvoice/internal/config"
	"github.com/rbright/askvoice/internal/transcript"
)

// systemClipboard writes through the platform clipboard when clipboard_cmd is unset.
var systemClipboard = clipboard.WriteAll

// Committer applies transcript output side effects (clipboard + optional paste).
//
// Consecutive pastes from one Committer read as one continuous input: a text pasted
// after an earlier successful paste is joined to it with the pending-input separator.
type Committer struct {
	config config.Config
	logger *slog.Logger
	paster paster

	mu         sync.Mutex
	lastPasted string
}

// NewCommitter constructs a transcript committer from runtime config.
func NewCommitter(cfg config.Config, logger *slog.Logger) *Committer {
	return &Committer{config: cfg, logger: logger, paster: newPaster(cfg)}
}

// Commit writes transcript text to clipboard and optionally dispatches paste.
// Only a clipboard failure is returned; paste failures are logged.
func (c *Committer) Commit(ctx context.Context, text string) error {
	text = transcript.Format(text, transcript.Options{TrailingSpace: c.config.Transcript.TrailingSpace})
	if text == "" {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.paster != nil {
		text = transcript.Separator(c.lastPasted, text) + text
	}
	if err := c.setClipboard(ctx, text); err != nil {
		return fmt.Errorf("set clipboard: %w", err)
	}
	if c.paster == nil {
		return nil
	}

	if err := c.paster.Paste(ctx); err != nil {
		c.logPasteFailure(err)
		return nil
	}
	c.lastPasted = text
	return nil
}

func (c *Committer) setClipboard(ctx context.Context, text string) error {
	if len(c.config.Clipboard.Argv) == 0 {
		return systemClipboard(text)
	}
	clipboardCtx, clipboardCancel := context.WithTimeout(ctx, 2*time.Second)
	defer clipboardCancel()
	return runCommandWithInput(clipboardCtx, c.config.Clipboard.Argv, text)
}

// runCommandWithInput executes argv and optionally writes input to stdin.
func runCommandWithInput(ctx context.Context, argv []string, input string) error {
	if len(argv) == 0 {
		return fmt.Errorf("command argv cannot be empty")
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("open stdin for %s: %w", argv[0], err)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return fmt.Errorf("start command %s: %w", argv[0], err)
	}

	if input != "" {
		if _, err := stdin.Write([]byte(input)); err != nil {
			_ = stdin.Close()
			_ = cmd.Wait()
			return fmt.Errorf("write stdin for %s: %w", argv[0], err)
		}
	}
	_ = stdin.Close()

	if err := cmd.Wait(); err != nil {
		return fmt.Errorf("wait for %s: %w", argv[0], err)
	}
	return nil
}

// logPasteFailure records paste errors while preserving clipboard success semantics.
func (c *Committer) logPasteFailure(err error) {
	if c.logger == nil || err == nil {
		return
	}
	c.logger.Error("paste dispatch failed; clipboard remains set", "error", err.Error())
}
