package indicator

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/gen2brain/beeep"

	"github.com/rbright/askvoice/internal/notify"
)

// fallbackNotify is used when the DBus call path is unavailable.
var fallbackNotify = func(title, message string) error {
	return beeep.Notify(title, message, "")
}

// Desktop shows freedesktop notifications. A notification replaces the previous
// one of the same category in place; different categories stack.
type Desktop struct {
	appName string
	logger  *slog.Logger

	mu         sync.Mutex
	replaceIDs map[notify.Category]uint32
}

func NewDesktop(appName string, logger *slog.Logger) *Desktop {
	appName = strings.TrimSpace(appName)
	if appName == "" {
		appName = "askvoice"
	}
	return &Desktop{appName: appName, logger: logger, replaceIDs: make(map[notify.Category]uint32)}
}

// Show sends n over DBus, falling back to beeep when busctl fails.
func (d *Desktop) Show(ctx context.Context, n notify.Notification) error {
	title := notify.Title(n.Category)

	d.mu.Lock()
	replaceID := d.replaceIDs[n.Category]
	d.mu.Unlock()

	var id uint32
	err := run(ctx, func(ctx context.Context) error {
		var notifyErr error
		id, notifyErr = desktopNotify(ctx, d.appName, replaceID, title, n.Text, lifetimeMS())
		return notifyErr
	})
	if err == nil {
		d.mu.Lock()
		d.replaceIDs[n.Category] = id
		d.mu.Unlock()
		return nil
	}

	debug(d.logger, "desktop notify via dbus failed", err)
	if fallbackErr := fallbackNotify(title, n.Text); fallbackErr != nil {
		return fmt.Errorf("desktop notify: %w", fallbackErr)
	}
	return nil
}

// desktopNotify sends a freedesktop notification over DBus via busctl.
// It returns the notification ID assigned by the server.
func desktopNotify(ctx context.Context, appName string, replaceID uint32, summary string, body string, timeoutMS int) (uint32, error) {
	args := []string{
		"--user",
		"call",
		"org.freedesktop.Notifications",
		"/org/freedesktop/Notifications",
		"org.freedesktop.Notifications",
		"Notify",
		"susssasa{sv}i",
		appName,
		strconv.FormatUint(uint64(replaceID), 10),
		"",
		summary,
		body,
		"0", // actions array length
		"0", // hints map length
		strconv.Itoa(timeoutMS),
	}

	out, err := exec.CommandContext(ctx, "busctl", args...).CombinedOutput()
	if err != nil {
		trimmed := strings.TrimSpace(string(out))
		if trimmed == "" {
			return 0, fmt.Errorf("desktop notify failed: %w", err)
		}
		return 0, fmt.Errorf("desktop notify failed: %w (%s)", err, trimmed)
	}

	fields := strings.Fields(strings.TrimSpace(string(out)))
	if len(fields) < 2 || fields[0] != "u" {
		return 0, fmt.Errorf("desktop notify invalid response: %q", strings.TrimSpace(string(out)))
	}

	value, parseErr := strconv.ParseUint(fields[1], 10, 32)
	if parseErr != nil {
		return 0, fmt.Errorf("desktop notify parse id %q: %w", fields[1], parseErr)
	}
	return uint32(value), nil
}
