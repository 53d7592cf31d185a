package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
	EnvFile  string
}

// Load resolves, reads, parses, and validates the runtime configuration.
// A .env file next to the config is loaded first without overriding the environment.
func Load(explicitPath string) (Loaded, error) {
	resolvedPath, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}

	envFile, err := loadEnvFile(filepath.Join(filepath.Dir(resolvedPath), ".env"))
	if err != nil {
		return Loaded{}, err
	}

	base := Default()
	content, err := os.ReadFile(resolvedPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Loaded{
				Path:   resolvedPath,
				Config: base,
				Warnings: []Warning{{
					Message: fmt.Sprintf("config file %q not found; using defaults", resolvedPath),
				}},
				Exists:  false,
				EnvFile: envFile,
			}, nil
		}
		return Loaded{}, fmt.Errorf("read config %q: %w", resolvedPath, err)
	}

	cfg, warnings, err := Parse(string(content), base)
	if err != nil {
		return Loaded{}, fmt.Errorf("parse config %q: %w", resolvedPath, err)
	}
	warnings = append(warnings, environmentWarnings(cfg)...)

	return Loaded{
		Path:     resolvedPath,
		Config:   cfg,
		Warnings: warnings,
		Exists:   true,
		EnvFile:  envFile,
	}, nil
}

// loadEnvFile applies path when present and reports the path it loaded.
func loadEnvFile(path string) (string, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("stat env file %q: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return "", fmt.Errorf("load env file %q: %w", path, err)
	}
	return path, nil
}

func environmentWarnings(cfg Config) []Warning {
	var warnings []Warning
	if strings.EqualFold(cfg.Service.Backend, "openai") && strings.TrimSpace(os.Getenv("OPENAI_API_KEY")) == "" {
		warnings = append(warnings, Warning{Message: "service.backend=openai but OPENAI_API_KEY is not set"})
	}
	return warnings
}
