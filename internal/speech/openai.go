package speech

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI-compatible transcription backend.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAI transcribes through an OpenAI-compatible /audio/transcriptions endpoint.
type OpenAI struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errors.New("openai api key is empty (set OPENAI_API_KEY)")
	}

	clientCfg := openai.DefaultConfig(key)
	if base := strings.TrimSpace(cfg.BaseURL); base != "" {
		clientCfg.BaseURL = strings.TrimRight(base, "/")
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = openai.Whisper1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &OpenAI{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		timeout: timeout,
	}, nil
}

// Transcribe uploads one recording and classifies the outcome like Client does.
func (o *OpenAI) Transcribe(ctx context.Context, req Request) Result {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: req.Filename(),
		Reader:   bytes.NewReader(req.Audio),
		Language: req.Language,
	})
	if err != nil {
		return classifyOpenAIError(err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return failed(ReasonTranscriptionFailed, DefaultFailureDetail)
	}
	return succeeded(text)
}

func classifyOpenAIError(err error) Result {
	if errors.Is(err, context.Canceled) || isTimeout(err) {
		return transportFailure(err, "")
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	if status == http.StatusRequestEntityTooLarge {
		return failed(ReasonPayloadTooLarge, err.Error())
	}
	return failed(ReasonServiceUnavailable, err.Error())
}
