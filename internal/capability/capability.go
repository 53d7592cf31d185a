// Package capability decides whether voice input can be offered on this host.
package capability

import (
	"context"
	"log/slog"
	"time"
)

const defaultTimeout = 5 * time.Second

// Capability is the immutable result of one probe.
type Capability struct {
	DeviceAvailable  bool
	ServiceAvailable bool
}

// VoiceEnabled reports whether the voice affordance should be shown at all.
func (c Capability) VoiceEnabled() bool {
	return c.DeviceAvailable && c.ServiceAvailable
}

// DeviceQuery reports whether local audio capture is supported.
type DeviceQuery interface {
	CaptureSupported(ctx context.Context) (bool, error)
}

// ServiceQuery reports whether the remote transcription service is available.
type ServiceQuery interface {
	Available(ctx context.Context) (bool, error)
}

// Prober runs both queries and soft-fails each field independently.
type Prober struct {
	Device  DeviceQuery
	Service ServiceQuery
	Timeout time.Duration
	Logger  *slog.Logger
}

// Probe never fails: any query error or timeout yields false for that field.
func (p Prober) Probe(ctx context.Context) Capability {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	capability := Capability{}
	if p.Device != nil {
		capability.DeviceAvailable = p.run(ctx, timeout, "device", p.Device.CaptureSupported)
	}
	if p.Service != nil {
		capability.ServiceAvailable = p.run(ctx, timeout, "service", p.Service.Available)
	}

	if p.Logger != nil {
		p.Logger.Info("voice capability probed",
			"device_available", capability.DeviceAvailable,
			"service_available", capability.ServiceAvailable,
		)
	}
	return capability
}

func (p Prober) run(ctx context.Context, timeout time.Duration, name string, query func(context.Context) (bool, error)) bool {
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := query(queryCtx)
	if err != nil {
		if p.Logger != nil {
			p.Logger.Warn("capability query failed", "query", name, "error", err.Error())
		}
		return false
	}
	return ok
}
