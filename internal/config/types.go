// Package config resolves, parses, validates, and defaults askvoice configuration.
package config

// Config is the fully materialized runtime configuration.
type Config struct {
	Service    ServiceConfig
	Audio      AudioConfig
	Voice      VoiceConfig
	Indicator  IndicatorConfig
	Paste      PasteConfig
	Transcript TranscriptConfig
	Clipboard  CommandConfig
	PasteCmd   CommandConfig
	Metrics    MetricsConfig
	Debug      DebugConfig
}

// ServiceConfig locates the speech service and selects transcription/status backends.
type ServiceConfig struct {
	URL            string
	StatusPath     string
	TranscribePath string
	TimeoutSeconds int
	// Backend is "http" (speech-to-text endpoint) or "openai".
	Backend string
	// StatusBackend is "http" (speech-status endpoint) or "grpc" (health protocol).
	StatusBackend string
	GRPCEndpoint  string
	GRPCService   string
	OpenAIModel   string
	OpenAIBaseURL string
}

// AudioConfig controls input-source selection and the encoding ranking.
type AudioConfig struct {
	Input     string
	Fallback  string
	Encodings []string
}

// VoiceConfig controls recording policy.
type VoiceConfig struct {
	Language    string
	MinBytes    int
	TimesliceMS int
}

// IndicatorConfig controls where notifications are mirrored outside the terminal.
type IndicatorConfig struct {
	Enable         bool
	Backend        string
	DesktopAppName string
	SoundEnable    bool
}

// PasteConfig controls post-commit paste behavior.
type PasteConfig struct {
	Enable   bool
	Shortcut string
}

// TranscriptConfig controls output formatting.
type TranscriptConfig struct {
	TrailingSpace bool
}

// CommandConfig stores a raw command string and its parsed argv form.
type CommandConfig struct {
	Raw  string
	Argv []string
}

// MetricsConfig controls the optional Prometheus listener.
type MetricsConfig struct {
	Listen string
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump bool
	EnableGRPCDump  bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}
