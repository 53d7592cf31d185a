package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rbright/askvoice/internal/encoding"
)

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if err := validateService(cfg.Service); err != nil {
		return nil, err
	}

	if _, err := Negotiator(cfg); err != nil {
		return nil, err
	}

	if strings.TrimSpace(cfg.Voice.Language) == "" {
		return nil, fmt.Errorf("voice.language must not be empty")
	}
	if cfg.Voice.MinBytes <= 0 {
		return nil, fmt.Errorf("voice.min_bytes must be > 0")
	}
	if cfg.Voice.TimesliceMS < 100 {
		return nil, fmt.Errorf("voice.timeslice_ms must be >= 100")
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Indicator.Backend))
	if backend == "" {
		return nil, fmt.Errorf("indicator.backend must not be empty")
	}
	if backend != "hypr" && backend != "desktop" && backend != "none" {
		return nil, fmt.Errorf("indicator.backend must be one of: desktop, hypr, none")
	}
	if backend == "desktop" && strings.TrimSpace(cfg.Indicator.DesktopAppName) == "" {
		return nil, fmt.Errorf("indicator.desktop_app_name must not be empty when indicator.backend=desktop")
	}

	if cfg.Clipboard.Raw != "" && len(cfg.Clipboard.Argv) == 0 {
		return nil, fmt.Errorf("clipboard_cmd is configured but empty")
	}
	if cfg.Paste.Enable && cfg.PasteCmd.Raw != "" && len(cfg.PasteCmd.Argv) == 0 {
		return nil, fmt.Errorf("paste_cmd is configured but empty")
	}
	if cfg.Paste.Enable && len(cfg.PasteCmd.Argv) == 0 && strings.TrimSpace(cfg.Paste.Shortcut) == "" {
		return nil, fmt.Errorf("paste.shortcut must not be empty when paste.enable=true and paste_cmd is unset")
	}

	if cfg.Debug.EnableGRPCDump && !strings.EqualFold(cfg.Service.StatusBackend, "grpc") {
		warnings = append(warnings, Warning{Message: "debug.grpc_dump has no effect unless service.status_backend=grpc"})
	}

	return warnings, nil
}

func validateService(svc ServiceConfig) error {
	raw := strings.TrimSpace(svc.URL)
	if raw == "" {
		return fmt.Errorf("service.url must not be empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("service.url is invalid: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("service.url scheme must be http or https")
	}
	if parsed.Host == "" {
		return fmt.Errorf("service.url must include a host")
	}

	for name, path := range map[string]string{
		"service.status_path":     svc.StatusPath,
		"service.transcribe_path": svc.TranscribePath,
	} {
		if !strings.HasPrefix(strings.TrimSpace(path), "/") {
			return fmt.Errorf("%s must start with '/'", name)
		}
	}

	if svc.TimeoutSeconds <= 0 {
		return fmt.Errorf("service.timeout_s must be > 0")
	}

	switch strings.ToLower(svc.Backend) {
	case "http", "openai":
	default:
		return fmt.Errorf("service.backend must be one of: http, openai")
	}

	switch strings.ToLower(svc.StatusBackend) {
	case "http":
	case "grpc":
		if strings.TrimSpace(svc.GRPCEndpoint) == "" {
			return fmt.Errorf("service.grpc_endpoint must not be empty when service.status_backend=grpc")
		}
	default:
		return fmt.Errorf("service.status_backend must be one of: http, grpc")
	}

	if strings.EqualFold(svc.Backend, "openai") && strings.TrimSpace(svc.OpenAIModel) == "" {
		return fmt.Errorf("service.openai_model must not be empty when service.backend=openai")
	}
	return nil
}

// Negotiator builds the encoding ranking configured under audio.encodings.
func Negotiator(cfg Config) (encoding.Negotiator, error) {
	if len(cfg.Audio.Encodings) == 0 {
		return encoding.Negotiator{}, fmt.Errorf("audio.encodings must not be empty")
	}
	candidates, err := encoding.Parse(cfg.Audio.Encodings)
	if err != nil {
		return encoding.Negotiator{}, fmt.Errorf("audio.encodings: %w", err)
	}
	negotiator, err := encoding.NewNegotiator(candidates...)
	if err != nil {
		return encoding.Negotiator{}, fmt.Errorf("audio.encodings: %w", err)
	}
	return negotiator, nil
}
