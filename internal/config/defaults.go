package config

import "github.com/rbright/askvoice/internal/encoding"

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	encodings := make([]string, 0, len(encoding.DefaultCandidates))
	for _, enc := range encoding.DefaultCandidates {
		encodings = append(encodings, string(enc))
	}

	return Config{
		Service: ServiceConfig{
			URL:            "http://127.0.0.1:8000/api",
			StatusPath:     "/speech-status/",
			TranscribePath: "/speech-to-text/",
			TimeoutSeconds: 60,
			Backend:        "http",
			StatusBackend:  "http",
			GRPCService:    "speech",
			OpenAIModel:    "whisper-1",
		},
		Audio: AudioConfig{
			Input:     "default",
			Fallback:  "default",
			Encodings: encodings,
		},
		Voice: VoiceConfig{
			Language:    "vi",
			MinBytes:    1024,
			TimesliceMS: 1000,
		},
		Indicator: IndicatorConfig{
			Enable:         true,
			Backend:        "desktop",
			DesktopAppName: "askvoice",
			SoundEnable:    true,
		},
		Paste:      PasteConfig{Enable: false, Shortcut: "CTRL,V"},
		Transcript: TranscriptConfig{TrailingSpace: false},
		Debug:      DebugConfig{},
	}
}
