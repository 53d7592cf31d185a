package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Service    *jsoncService    `json:"service"`
	Audio      *jsoncAudio      `json:"audio"`
	Voice      *jsoncVoice      `json:"voice"`
	Paste      *jsoncPaste      `json:"paste"`
	Transcript *jsoncTranscript `json:"transcript"`
	Indicator  *jsoncIndicator  `json:"indicator"`

	ClipboardCmd *jsoncCommand `json:"clipboard_cmd"`
	PasteCmd     *jsoncCommand `json:"paste_cmd"`
	Metrics      *jsoncMetrics `json:"metrics"`
	Debug        *jsoncDebug   `json:"debug"`
}

type jsoncService struct {
	URL            *string `json:"url"`
	StatusPath     *string `json:"status_path"`
	TranscribePath *string `json:"transcribe_path"`
	TimeoutSeconds *int    `json:"timeout_s"`
	Backend        *string `json:"backend"`
	StatusBackend  *string `json:"status_backend"`
	GRPCEndpoint   *string `json:"grpc_endpoint"`
	GRPCService    *string `json:"grpc_service"`
	OpenAIModel    *string `json:"openai_model"`
	OpenAIBaseURL  *string `json:"openai_base_url"`
}

type jsoncAudio struct {
	Input     *string          `json:"input"`
	Fallback  *string          `json:"fallback"`
	Encodings *jsoncStringList `json:"encodings"`
}

type jsoncVoice struct {
	Language    *string `json:"language"`
	MinBytes    *int    `json:"min_bytes"`
	TimesliceMS *int    `json:"timeslice_ms"`
}

type jsoncPaste struct {
	Enable   *bool   `json:"enable"`
	Shortcut *string `json:"shortcut"`
}

type jsoncTranscript struct {
	TrailingSpace *bool `json:"trailing_space"`
}

type jsoncIndicator struct {
	Enable         *bool   `json:"enable"`
	Backend        *string `json:"backend"`
	DesktopAppName *string `json:"desktop_app_name"`
	SoundEnable    *bool   `json:"sound_enable"`
}

type jsoncMetrics struct {
	Listen *string `json:"listen"`
}

type jsoncDebug struct {
	AudioDump *bool `json:"audio_dump"`
	GRPCDump  *bool `json:"grpc_dump"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		parts := strings.Split(single, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, part)
		}
		*l = out
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := base
	cfg.Audio.Encodings = append([]string(nil), base.Audio.Encodings...)
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if s := payload.Service; s != nil {
		setString(&cfg.Service.URL, s.URL)
		setString(&cfg.Service.StatusPath, s.StatusPath)
		setString(&cfg.Service.TranscribePath, s.TranscribePath)
		setString(&cfg.Service.Backend, s.Backend)
		setString(&cfg.Service.StatusBackend, s.StatusBackend)
		setString(&cfg.Service.GRPCEndpoint, s.GRPCEndpoint)
		setString(&cfg.Service.GRPCService, s.GRPCService)
		setString(&cfg.Service.OpenAIModel, s.OpenAIModel)
		setString(&cfg.Service.OpenAIBaseURL, s.OpenAIBaseURL)
		if s.TimeoutSeconds != nil {
			cfg.Service.TimeoutSeconds = *s.TimeoutSeconds
		}
	}

	if payload.Audio != nil {
		if payload.Audio.Input != nil {
			cfg.Audio.Input = *payload.Audio.Input
		}
		if payload.Audio.Fallback != nil {
			cfg.Audio.Fallback = *payload.Audio.Fallback
		}
		if payload.Audio.Encodings != nil {
			cfg.Audio.Encodings = cfg.Audio.Encodings[:0]
			for _, name := range *payload.Audio.Encodings {
				name = strings.TrimSpace(name)
				if name == "" {
					continue
				}
				cfg.Audio.Encodings = append(cfg.Audio.Encodings, name)
			}
		}
	}

	if v := payload.Voice; v != nil {
		setString(&cfg.Voice.Language, v.Language)
		if v.MinBytes != nil {
			cfg.Voice.MinBytes = *v.MinBytes
		}
		if v.TimesliceMS != nil {
			cfg.Voice.TimesliceMS = *v.TimesliceMS
		}
	}

	if payload.Paste != nil {
		if payload.Paste.Enable != nil {
			cfg.Paste.Enable = *payload.Paste.Enable
		}
		setString(&cfg.Paste.Shortcut, payload.Paste.Shortcut)
	}

	if payload.Transcript != nil && payload.Transcript.TrailingSpace != nil {
		cfg.Transcript.TrailingSpace = *payload.Transcript.TrailingSpace
	}

	if payload.Indicator != nil {
		if payload.Indicator.Enable != nil {
			cfg.Indicator.Enable = *payload.Indicator.Enable
		}
		setString(&cfg.Indicator.Backend, payload.Indicator.Backend)
		setString(&cfg.Indicator.DesktopAppName, payload.Indicator.DesktopAppName)
		if payload.Indicator.SoundEnable != nil {
			cfg.Indicator.SoundEnable = *payload.Indicator.SoundEnable
		}
	}

	if payload.ClipboardCmd != nil {
		cmd, err := payload.ClipboardCmd.resolve("clipboard_cmd")
		if err != nil {
			return nil, err
		}
		cfg.Clipboard = cmd
	}

	if payload.PasteCmd != nil {
		cmd, err := payload.PasteCmd.resolve("paste_cmd")
		if err != nil {
			return nil, err
		}
		cfg.PasteCmd = cmd
	}

	if payload.Metrics != nil {
		setString(&cfg.Metrics.Listen, payload.Metrics.Listen)
	}

	if payload.Debug != nil {
		if payload.Debug.AudioDump != nil {
			cfg.Debug.EnableAudioDump = *payload.Debug.AudioDump
		}
		if payload.Debug.GRPCDump != nil {
			cfg.Debug.EnableGRPCDump = *payload.Debug.GRPCDump
		}
	}

	return warnings, nil
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			if ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
