package output

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rbright/askvoice/internal/config"
	"github.com/rbright/askvoice/internal/hypr"
)

// paster sends the paste keystroke once the clipboard holds the committed text.
type paster interface {
	Paste(ctx context.Context) error
}

// newPaster picks paste_cmd over the Hyprland shortcut. Nil means paste is disabled.
func newPaster(cfg config.Config) paster {
	switch {
	case !cfg.Paste.Enable:
		return nil
	case len(cfg.PasteCmd.Argv) > 0:
		return commandPaster{argv: cfg.PasteCmd.Argv, timeout: 2 * time.Second}
	default:
		return hyprPaster{
			shortcut: cfg.Paste.Shortcut,
			attempts: 5,
			delay:    10 * time.Millisecond,
			timeout:  1200 * time.Millisecond,
		}
	}
}

type commandPaster struct {
	argv    []string
	timeout time.Duration
}

func (p commandPaster) Paste(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return runCommandWithInput(ctx, p.argv, "")
}

// hyprPaster targets whichever window is focused when the paste fires.
type hyprPaster struct {
	shortcut string
	attempts int
	delay    time.Duration
	timeout  time.Duration
}

func (p hyprPaster) Paste(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	window, err := p.focusedWindow(ctx)
	if err != nil {
		return err
	}
	payload, err := p.payload(window.Address)
	if err != nil {
		return err
	}
	return hypr.SendShortcut(ctx, payload)
}

func (p hyprPaster) payload(address string) (string, error) {
	shortcut := strings.TrimSpace(p.shortcut)
	if shortcut == "" {
		return "", fmt.Errorf("paste shortcut cannot be empty")
	}
	address = strings.TrimSpace(address)
	if address == "" {
		return "", fmt.Errorf("active window address is required")
	}
	return shortcut + ",address:" + address, nil
}

// focusedWindow retries briefly; focus can lag behind the hotkey release.
func (p hyprPaster) focusedWindow(ctx context.Context) (hypr.ActiveWindow, error) {
	attempts := max(p.attempts, 1)

	var lastErr error
	for i := 0; i < attempts; i++ {
		window, err := hypr.QueryActiveWindow(ctx)
		if err == nil {
			return window, nil
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return hypr.ActiveWindow{}, ctx.Err()
		case <-time.After(p.delay):
		}
	}
	return hypr.ActiveWindow{}, fmt.Errorf("resolve active window: %w", lastErr)
}
