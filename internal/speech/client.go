package speech

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds one transcription round-trip.
	DefaultTimeout = 60 * time.Second

	maxResponseBytes = 1 << 20
)

// ClientConfig configures the HTTP speech service client.
type ClientConfig struct {
	BaseURL        string
	StatusPath     string
	TranscribePath string
	Timeout        time.Duration
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

// Client calls the speech-status and speech-to-text endpoints.
type Client struct {
	baseURL        string
	statusPath     string
	transcribePath string
	timeout        time.Duration
	httpClient     *http.Client
	logger         *slog.Logger
}

type statusResponse struct {
	SpeechService *struct {
		Available bool `json:"available"`
	} `json:"speech_service"`
}

type transcribeResponse struct {
	Success bool   `json:"success"`
	Text    string `json:"text"`
	Error   string `json:"error"`
}

// NewClient validates endpoint configuration and fills defaults.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		return nil, errors.New("speech service url is empty")
	}
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	statusPath := strings.TrimSpace(cfg.StatusPath)
	if statusPath == "" {
		statusPath = "/speech-status/"
	}
	transcribePath := strings.TrimSpace(cfg.TranscribePath)
	if transcribePath == "" {
		transcribePath = "/speech-to-text/"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Client{
		baseURL:        strings.TrimRight(base, "/"),
		statusPath:     statusPath,
		transcribePath: transcribePath,
		timeout:        timeout,
		httpClient:     httpClient,
		logger:         cfg.Logger,
	}, nil
}

// StatusURL returns the resolved speech-status endpoint.
func (c *Client) StatusURL() string {
	return c.baseURL + c.statusPath
}

// TranscribeURL returns the resolved speech-to-text endpoint.
func (c *Client) TranscribeURL() string {
	return c.baseURL + c.transcribePath
}

// Available queries the speech-status endpoint.
func (c *Client) Available(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.StatusURL(), nil)
	if err != nil {
		return false, fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("request speech status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("speech status: HTTP %d from %s", resp.StatusCode, c.StatusURL())
	}

	var payload statusResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&payload); err != nil {
		return false, fmt.Errorf("decode speech status: %w", err)
	}
	if payload.SpeechService == nil {
		return false, nil
	}
	return payload.SpeechService.Available, nil
}

// Transcribe uploads one recording and classifies the response.
func (c *Client) Transcribe(ctx context.Context, req Request) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, contentType, err := buildMultipart(req)
	if err != nil {
		return failed(ReasonServiceUnavailable, err.Error())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.TranscribeURL(), body)
	if err != nil {
		return failed(ReasonServiceUnavailable, fmt.Sprintf("build request: %v", err))
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")
	if req.ID != "" {
		httpReq.Header.Set("X-Request-ID", req.ID)
	}

	started := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logFailure(req, err, time.Since(started))
		return transportFailure(err, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusRequestEntityTooLarge {
		return failed(ReasonPayloadTooLarge, fmt.Sprintf("HTTP %d", resp.StatusCode))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return failed(ReasonServiceUnavailable, fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		c.logFailure(req, err, time.Since(started))
		return transportFailure(err, fmt.Sprintf("read response: %v", err))
	}

	var payload transcribeResponse
	if err := json.Unmarshal(raw, &payload); err != nil {
		return failed(ReasonServiceUnavailable, fmt.Sprintf("decode response: %v", err))
	}

	text := strings.TrimSpace(payload.Text)
	if payload.Success && text != "" {
		return succeeded(text)
	}

	detail := strings.TrimSpace(payload.Error)
	if detail == "" {
		detail = DefaultFailureDetail
	}
	return failed(ReasonTranscriptionFailed, detail)
}

// buildMultipart encodes audio, language, and original_format fields.
func buildMultipart(req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fileWriter, err := writer.CreateFormFile("audio", req.Filename())
	if err != nil {
		return nil, "", fmt.Errorf("create audio part: %w", err)
	}
	if _, err := fileWriter.Write(req.Audio); err != nil {
		return nil, "", fmt.Errorf("write audio part: %w", err)
	}

	if err := writer.WriteField("language", req.Language); err != nil {
		return nil, "", fmt.Errorf("write language field: %w", err)
	}
	if err := writer.WriteField("original_format", string(req.MimeType)); err != nil {
		return nil, "", fmt.Errorf("write original_format field: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return &buf, writer.FormDataContentType(), nil
}

func (c *Client) logFailure(req Request, err error, elapsed time.Duration) {
	if c.logger == nil {
		return
	}
	c.logger.Warn("speech request failed",
		"request_id", req.ID,
		"bytes", len(req.Audio),
		"elapsed_ms", elapsed.Milliseconds(),
		"error", err.Error(),
	)
}
