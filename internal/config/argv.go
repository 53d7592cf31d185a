package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

// jsoncCommand accepts a command as a shell-like string or as an argv array.
type jsoncCommand struct {
	raw  string
	argv []string
	list bool
}

func (c *jsoncCommand) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		c.list = true
		c.argv = list
		c.raw = strings.Join(list, " ")
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("command must be a string or an array of strings")
	}
	c.raw = single
	return nil
}

// resolve turns the field into a CommandConfig. name prefixes errors.
func (c jsoncCommand) resolve(name string) (CommandConfig, error) {
	argv := c.argv
	if !c.list {
		parsed, err := parseArgv(c.raw)
		if err != nil {
			return CommandConfig{}, fmt.Errorf("invalid %s: %w", name, err)
		}
		argv = parsed
	}

	for i, arg := range argv {
		if strings.TrimSpace(arg) == "" {
			return CommandConfig{}, fmt.Errorf("invalid %s: argument %d is empty", name, i)
		}
	}
	if len(argv) > 0 {
		argv = append([]string(nil), argv...)
		argv[0] = expandHome(argv[0])
	}
	return CommandConfig{Raw: c.raw, Argv: argv}, nil
}

// expandHome resolves a leading ~/ in an executable path.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	return filepath.Join(home, path[2:])
}

// parseArgv splits a shell-like command string. Lines starting with # are ignored.
func parseArgv(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.HasPrefix(input, "#") {
		return nil, nil
	}

	var (
		argv    []string
		current strings.Builder
		quote   rune
		escape  bool
		quoted  bool
	)

	flush := func() {
		if current.Len() == 0 && !quoted {
			return
		}
		argv = append(argv, current.String())
		current.Reset()
		quoted = false
	}

	for _, r := range input {
		switch {
		case escape:
			current.WriteRune(r)
			escape = false
		case r == '\\' && quote != '\'':
			escape = true
		case quote != 0:
			if r == quote {
				quote = 0
				continue
			}
			current.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			quoted = true
		case unicode.IsSpace(r):
			flush()
		default:
			current.WriteRune(r)
		}
	}

	if escape {
		return nil, fmt.Errorf("unterminated escape sequence in command: %q", input)
	}
	if quote != 0 {
		return nil, fmt.Errorf("unterminated quote in command: %q", input)
	}

	flush()
	return argv, nil
}
