// Package doctor runs runtime readiness diagnostics for config, tools, audio, and the speech service.
package doctor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"github.com/rbright/askvoice/internal/audio"
	"github.com/rbright/askvoice/internal/capability"
	"github.com/rbright/askvoice/internal/config"
)

const serviceCheckTimeout = 3 * time.Second

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
// service is the availability query the runtime would probe; nil skips that check.
func Run(ctx context.Context, loaded config.Loaded, service capability.ServiceQuery) Report {
	cfg := loaded.Config
	checks := []Check{configCheck(loaded)}

	if strings.EqualFold(cfg.Service.Backend, "openai") {
		checks = append(checks, checkEnv("OPENAI_API_KEY", func(v string) bool {
			return strings.TrimSpace(v) != ""
		}, "API key present", "OPENAI_API_KEY is empty"))
	}

	usesHypr := strings.EqualFold(cfg.Indicator.Backend, "hypr") ||
		(cfg.Paste.Enable && len(cfg.PasteCmd.Argv) == 0)
	if usesHypr {
		checks = append(checks, checkEnv("XDG_SESSION_TYPE", func(v string) bool {
			return strings.EqualFold(strings.TrimSpace(v), "wayland")
		}, "session type is wayland", "expected XDG_SESSION_TYPE=wayland"))

		checks = append(checks, checkEnv("HYPRLAND_INSTANCE_SIGNATURE", func(v string) bool {
			return strings.TrimSpace(v) != ""
		}, "Hyprland session detected", "HYPRLAND_INSTANCE_SIGNATURE is empty"))
	}

	if len(cfg.Clipboard.Argv) > 0 {
		checks = append(checks, checkCommand(cfg.Clipboard.Argv, "clipboard_cmd"))
	} else {
		checks = append(checks, checkSystemClipboard())
	}

	if cfg.Paste.Enable {
		if len(cfg.PasteCmd.Argv) > 0 {
			checks = append(checks, checkCommand(cfg.PasteCmd.Argv, "paste_cmd"))
		} else {
			checks = append(checks, checkBinary("hyprctl", "default paste path requires hyprctl"))
		}
	}

	checks = append(checks, checkAudioSelection(ctx, cfg))
	if service != nil {
		checks = append(checks, checkService(ctx, cfg, service))
	}

	return Report{Checks: checks}
}

func configCheck(loaded config.Loaded) Check {
	message := fmt.Sprintf("loaded %q", loaded.Path)
	if !loaded.Exists {
		message = fmt.Sprintf("%q not found; using defaults", loaded.Path)
	}
	if loaded.EnvFile != "" {
		message += fmt.Sprintf(" (env from %q)", loaded.EnvFile)
	}
	return Check{Name: "config", Pass: true, Message: message}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

func checkSystemClipboard() Check {
	if clipboard.Unsupported {
		return Check{Name: "clipboard", Pass: false, Message: "no clipboard utility found (install wl-clipboard, xclip, or xsel)"}
	}
	return Check{Name: "clipboard", Pass: true, Message: "system clipboard available"}
}

// checkAudioSelection runs live input selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectInput(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Input.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkService asks the configured status backend whether transcription is available.
func checkService(ctx context.Context, cfg config.Config, service capability.ServiceQuery) Check {
	name := "service." + strings.ToLower(cfg.Service.StatusBackend)
	checkCtx, cancel := context.WithTimeout(ctx, serviceCheckTimeout)
	defer cancel()

	ok, err := service.Available(checkCtx)
	if err != nil {
		return Check{Name: name, Pass: false, Message: fmt.Sprintf("status query failed: %v", err)}
	}
	if !ok {
		return Check{Name: name, Pass: false, Message: "speech service reports unavailable"}
	}
	return Check{Name: name, Pass: true, Message: "speech service available"}
}
