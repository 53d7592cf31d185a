package clock

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRealTickerTicks(t *testing.T) {
	ticker := Real().NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	select {
	case <-ticker.C():
	case <-time.After(time.Second):
		t.Fatal("expected a tick")
	}
}

func TestRealAfterFuncCanBeStopped(t *testing.T) {
	var fired atomic.Bool
	timer := Real().AfterFunc(50*time.Millisecond, func() { fired.Store(true) })
	require.True(t, timer.Stop())

	time.Sleep(80 * time.Millisecond)
	require.False(t, fired.Load())
}
