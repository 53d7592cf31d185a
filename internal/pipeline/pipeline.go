// Package pipeline assembles the voice runtime (device, service, notifications) from config.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/rbright/askvoice/internal/audio"
	"github.com/rbright/askvoice/internal/capability"
	"github.com/rbright/askvoice/internal/config"
	"github.com/rbright/askvoice/internal/indicator"
	"github.com/rbright/askvoice/internal/metrics"
	"github.com/rbright/askvoice/internal/notify"
	"github.com/rbright/askvoice/internal/output"
	"github.com/rbright/askvoice/internal/session"
	"github.com/rbright/askvoice/internal/speech"
)

// Runtime is the wired voice stack for one process.
type Runtime struct {
	Controller *session.Controller
	Channel    *notify.Channel
	Metrics    *metrics.Metrics
	Prober     *capability.Prober
	Source     *audio.Source
	Committer  *output.Committer

	closers []io.Closer
}

// Build wires every component named by cfg. It does not probe capability.
func Build(cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	negotiator, err := config.Negotiator(cfg)
	if err != nil {
		return nil, err
	}

	rt := &Runtime{Metrics: metrics.New()}
	rt.Source = &audio.Source{Input: cfg.Audio.Input, Fallback: cfg.Audio.Fallback, Logger: logger}

	next, service, err := buildBackends(cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.Debug.EnableGRPCDump {
		if grpcStatus, ok := service.(*speech.GRPCStatus); ok {
			file, ferr := createDebugFile("grpc", "json")
			if ferr != nil {
				return nil, ferr
			}
			grpcStatus.DebugSink = file
			rt.closers = append(rt.closers, file)
		}
	}

	rt.Prober = &capability.Prober{Device: rt.Source, Service: service, Logger: logger}
	sinks := indicator.Sinks(cfg.Indicator, logger)
	var cues session.Cues
	if cfg.Indicator.SoundEnable {
		sound := indicator.NewSound(logger)
		sinks = append(sinks, sound)
		cues = sound
	}
	rt.Channel = notify.New(notify.Options{
		Logger: logger,
		Sinks:  sinks,
	})

	rt.Committer = output.NewCommitter(cfg, logger)
	rt.Controller = session.NewController(session.Options{
		Logger:      logger,
		Device:      rt.Source,
		Transcriber: &Transcriber{next: next, dumpAudio: cfg.Debug.EnableAudioDump, logger: logger},
		Notifier:    rt.Channel,
		Committer:   rt.Committer,
		Cues:        cues,
		Prober:      rt.Prober,
		Negotiator:  negotiator,
		Timeslice:   time.Duration(cfg.Voice.TimesliceMS) * time.Millisecond,
		MinBytes:    cfg.Voice.MinBytes,
		Language:    cfg.Voice.Language,
		Metrics:     rt.Metrics,
	})
	return rt, nil
}

// Probe refreshes the controller's capability.
func (r *Runtime) Probe(ctx context.Context) capability.Capability {
	return r.Controller.Reprobe(ctx)
}

// Close tears the controller down and releases debug sinks.
func (r *Runtime) Close() error {
	r.Controller.Teardown()
	r.Channel.Close()
	var errs []error
	for _, c := range r.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// buildBackends picks the transcription backend and the availability query.
func buildBackends(cfg config.Config, logger *slog.Logger) (session.Transcriber, capability.ServiceQuery, error) {
	timeout := time.Duration(cfg.Service.TimeoutSeconds) * time.Second

	var (
		transcriber session.Transcriber
		service     capability.ServiceQuery
	)

	switch strings.ToLower(cfg.Service.Backend) {
	case "openai":
		client, err := speech.NewOpenAI(speech.OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: cfg.Service.OpenAIBaseURL,
			Model:   cfg.Service.OpenAIModel,
			Timeout: timeout,
		})
		if err != nil {
			// Voice stays disabled: the probe reports the service unavailable.
			service = serviceFunc(func(context.Context) (bool, error) { return false, err })
		} else {
			transcriber = client
			service = serviceFunc(func(context.Context) (bool, error) { return true, nil })
		}
	default:
		client, err := speech.NewClient(speech.ClientConfig{
			BaseURL:        cfg.Service.URL,
			StatusPath:     cfg.Service.StatusPath,
			TranscribePath: cfg.Service.TranscribePath,
			Timeout:        timeout,
			Logger:         logger,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("speech client: %w", err)
		}
		transcriber = client
		service = client
	}

	if strings.EqualFold(cfg.Service.StatusBackend, "grpc") {
		service = &speech.GRPCStatus{Endpoint: cfg.Service.GRPCEndpoint, Service: cfg.Service.GRPCService}
	}
	return transcriber, service, nil
}

// serviceFunc adapts a function to capability.ServiceQuery.
type serviceFunc func(context.Context) (bool, error)

func (f serviceFunc) Available(ctx context.Context) (bool, error) {
	return f(ctx)
}
