package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/askvoice/internal/clock/clocktest"
)

type recordingSink struct {
	mu    sync.Mutex
	shown []Notification
	err   error
}

func (s *recordingSink) Show(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shown = append(s.shown, n)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.shown)
}

func newTestChannel(sinks ...Sink) (*Channel, *clocktest.Fake) {
	clk := clocktest.New(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	return New(Options{Clock: clk, Sinks: sinks}), clk
}

func TestPostIsLiveImmediately(t *testing.T) {
	ch, clk := newTestChannel()

	n := ch.Post("hello", CategoryTranscriptionSucceeded)
	require.NotEmpty(t, n.ID)
	require.Equal(t, clk.Now(), n.CreatedAt)
	require.Equal(t, []Notification{n}, ch.Live())
	require.Equal(t, 1, ch.Posted())
}

func TestNotificationExpiresAfterLifetime(t *testing.T) {
	ch, clk := newTestChannel()
	ch.Post("hello", CategoryNetworkTimeout)

	clk.Advance(Lifetime - time.Millisecond)
	require.Len(t, ch.Live(), 1)

	clk.Advance(time.Millisecond)
	require.Empty(t, ch.Live())
}

func TestNotificationsExpireIndependently(t *testing.T) {
	ch, clk := newTestChannel()

	first := ch.Post("first", CategoryBelowMinimumSize)
	clk.Advance(time.Second)
	second := ch.Post("second", CategoryServiceUnavailable)

	clk.Advance(2 * time.Second)
	require.Equal(t, []Notification{second}, ch.Live())
	require.NotEqual(t, first.ID, second.ID)

	clk.Advance(time.Second)
	require.Empty(t, ch.Live())
}

func TestRetractRemovesEarly(t *testing.T) {
	ch, clk := newTestChannel()
	n := ch.Post("x", CategoryCaptureFailed)

	require.True(t, ch.Retract(n.ID))
	require.Empty(t, ch.Live())
	require.False(t, ch.Retract(n.ID))

	clk.Advance(Lifetime)
	require.Empty(t, ch.Live())
}

func TestCloseClearsAndIgnoresLaterPosts(t *testing.T) {
	ch, clk := newTestChannel()
	ch.Post("a", CategoryNetworkTimeout)
	ch.Post("b", CategoryNetworkTimeout)

	ch.Close()
	ch.Close()
	require.Empty(t, ch.Live())

	ch.Post("c", CategoryNetworkTimeout)
	require.Empty(t, ch.Live())
	require.Equal(t, 2, ch.Posted())

	clk.Advance(Lifetime)
	require.Empty(t, ch.Live())
}

func TestSinksReceiveEveryPost(t *testing.T) {
	ok := &recordingSink{}
	failing := &recordingSink{err: errors.New("dbus down")}
	ch, _ := newTestChannel(ok, failing)

	ch.Post("a", CategoryTranscriptionSucceeded)
	ch.Post("b", CategoryPayloadTooLarge)

	require.Equal(t, 2, ok.count())
	require.Equal(t, 2, failing.count())
	require.Len(t, ch.Live(), 2)
}
