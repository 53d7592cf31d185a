// Package indicator mirrors voice notifications onto desktop and Hyprland surfaces.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/rbright/askvoice/internal/config"
	"github.com/rbright/askvoice/internal/hypr"
	"github.com/rbright/askvoice/internal/notify"
)

const dispatchTimeout = 400 * time.Millisecond

// Sinks builds the notification sinks selected by config.
// It returns nil when the indicator is disabled or the backend is "none".
func Sinks(cfg config.IndicatorConfig, logger *slog.Logger) []notify.Sink {
	if !cfg.Enable {
		return nil
	}
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "hypr":
		return []notify.Sink{NewHypr(logger)}
	case "desktop":
		return []notify.Sink{NewDesktop(cfg.DesktopAppName, logger)}
	default:
		return nil
	}
}

// Hypr shows notifications through hyprctl dispatch notify.
type Hypr struct {
	logger *slog.Logger
}

func NewHypr(logger *slog.Logger) *Hypr {
	return &Hypr{logger: logger}
}

// Show dispatches n with an icon and color matching its category.
func (h *Hypr) Show(ctx context.Context, n notify.Notification) error {
	s := styleFor(n.Category)
	return run(ctx, func(ctx context.Context) error {
		return hypr.Notify(ctx, s.icon, lifetimeMS(), s.color, n.Text)
	})
}

// run executes an indicator operation with a bounded timeout.
func run(ctx context.Context, fn func(context.Context) error) error {
	runCtx, cancel := context.WithTimeout(ctx, dispatchTimeout)
	defer cancel()
	return fn(runCtx)
}

func lifetimeMS() int {
	return int(notify.Lifetime / time.Millisecond)
}

func debug(logger *slog.Logger, message string, err error) {
	if logger == nil || err == nil {
		return
	}
	logger.Debug(message, "error", err.Error())
}
