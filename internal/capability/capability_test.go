package capability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type deviceFunc func(context.Context) (bool, error)

func (f deviceFunc) CaptureSupported(ctx context.Context) (bool, error) { return f(ctx) }

type serviceFunc func(context.Context) (bool, error)

func (f serviceFunc) Available(ctx context.Context) (bool, error) { return f(ctx) }

func constant(ok bool, err error) func(context.Context) (bool, error) {
	return func(context.Context) (bool, error) { return ok, err }
}

func TestProbeBothAvailable(t *testing.T) {
	p := Prober{Device: deviceFunc(constant(true, nil)), Service: serviceFunc(constant(true, nil))}

	got := p.Probe(context.Background())
	require.Equal(t, Capability{DeviceAvailable: true, ServiceAvailable: true}, got)
	require.True(t, got.VoiceEnabled())
}

func TestProbeSoftFailsEachFieldIndependently(t *testing.T) {
	tests := []struct {
		name    string
		device  func(context.Context) (bool, error)
		service func(context.Context) (bool, error)
		want    Capability
	}{
		{
			name:    "device error",
			device:  constant(true, errors.New("pulse unreachable")),
			service: constant(true, nil),
			want:    Capability{ServiceAvailable: true},
		},
		{
			name:    "service error",
			device:  constant(true, nil),
			service: constant(true, errors.New("connection refused")),
			want:    Capability{DeviceAvailable: true},
		},
		{
			name:    "service reports unavailable",
			device:  constant(true, nil),
			service: constant(false, nil),
			want:    Capability{DeviceAvailable: true},
		},
		{
			name:    "both fail",
			device:  constant(false, errors.New("boom")),
			service: constant(false, errors.New("boom")),
			want:    Capability{},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p := Prober{Device: deviceFunc(tc.device), Service: serviceFunc(tc.service)}
			got := p.Probe(context.Background())
			require.Equal(t, tc.want, got)
			require.False(t, got.VoiceEnabled())
		})
	}
}

func TestProbeTimeoutCountsAsUnavailable(t *testing.T) {
	slow := func(ctx context.Context) (bool, error) {
		<-ctx.Done()
		return true, ctx.Err()
	}
	p := Prober{Device: deviceFunc(constant(true, nil)), Service: serviceFunc(slow), Timeout: 10 * time.Millisecond}

	got := p.Probe(context.Background())
	require.True(t, got.DeviceAvailable)
	require.False(t, got.ServiceAvailable)
}

func TestProbeNilQueriesAreUnavailable(t *testing.T) {
	require.Equal(t, Capability{}, Prober{}.Probe(context.Background()))
}
