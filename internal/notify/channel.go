// Package notify holds transient user-facing notifications, each expiring on its own timer.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rbright/askvoice/internal/clock"
)

// Lifetime is how long a notification stays live after Post.
const Lifetime = 3 * time.Second

// Notification is one transient message shown to the user.
type Notification struct {
	ID        string
	Text      string
	Category  Category
	CreatedAt time.Time
}

// Sink displays notifications outside the channel (desktop, Hyprland).
type Sink interface {
	Show(context.Context, Notification) error
}

// Options configures a Channel. Zero values select the real clock and Lifetime.
type Options struct {
	Clock    clock.Clock
	Lifetime time.Duration
	Logger   *slog.Logger
	Sinks    []Sink
}

type entry struct {
	notification Notification
	timer        clock.Timer
}

// Channel keeps the set of live notifications. Safe for concurrent use.
type Channel struct {
	clock    clock.Clock
	lifetime time.Duration
	logger   *slog.Logger
	sinks    []Sink

	mu     sync.Mutex
	live   []*entry
	posted int
	closed bool
}

func New(opts Options) *Channel {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	lifetime := opts.Lifetime
	if lifetime <= 0 {
		lifetime = Lifetime
	}
	return &Channel{
		clock:    clk,
		lifetime: lifetime,
		logger:   opts.Logger,
		sinks:    append([]Sink(nil), opts.Sinks...),
	}
}

// Post makes a notification live immediately and schedules its retraction.
// Posting to a closed channel still returns the notification but keeps nothing live.
func (c *Channel) Post(text string, category Category) Notification {
	n := Notification{
		ID:        uuid.NewString(),
		Text:      text,
		Category:  category,
		CreatedAt: c.clock.Now(),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return n
	}
	e := &entry{notification: n}
	c.live = append(c.live, e)
	c.posted++
	e.timer = c.clock.AfterFunc(c.lifetime, func() { c.expire(n.ID) })
	c.mu.Unlock()

	if c.logger != nil {
		c.logger.Info("notification posted", "id", n.ID, "category", string(category))
	}
	c.showAll(n)
	return n
}

// Live returns the currently visible notifications in post order.
func (c *Channel) Live() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, 0, len(c.live))
	for _, e := range c.live {
		out = append(out, e.notification)
	}
	return out
}

// Posted reports how many notifications were ever posted to the open channel.
func (c *Channel) Posted() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.posted
}

// Retract removes a notification early and cancels its timer.
func (c *Channel) Retract(id string) bool {
	c.mu.Lock()
	e := c.removeLocked(id)
	c.mu.Unlock()
	if e == nil {
		return false
	}
	e.timer.Stop()
	return true
}

// Close cancels every pending retraction and clears the live set. Idempotent.
func (c *Channel) Close() {
	c.mu.Lock()
	entries := c.live
	c.live = nil
	c.closed = true
	c.mu.Unlock()

	for _, e := range entries {
		e.timer.Stop()
	}
}

func (c *Channel) expire(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(id)
}

func (c *Channel) removeLocked(id string) *entry {
	for i, e := range c.live {
		if e.notification.ID == id {
			c.live = append(c.live[:i], c.live[i+1:]...)
			return e
		}
	}
	return nil
}

func (c *Channel) showAll(n Notification) {
	for _, sink := range c.sinks {
		if err := sink.Show(context.Background(), n); err != nil && c.logger != nil {
			c.logger.Debug("notification sink failed", "id", n.ID, "error", err.Error())
		}
	}
}
