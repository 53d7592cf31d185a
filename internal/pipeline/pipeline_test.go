package pipeline

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rbright/askvoice/internal/config"
	"github.com/rbright/askvoice/internal/encoding"
	"github.com/rbright/askvoice/internal/session"
	"github.com/rbright/askvoice/internal/speech"
)

func streamedWAV(payload int) []byte {
	data := make([]byte, 44+payload)
	copy(data[0:4], "RIFF")
	binary.LittleEndian.PutUint32(data[4:8], 0xFFFFFFFF)
	copy(data[8:12], "WAVE")
	copy(data[36:40], "data")
	binary.LittleEndian.PutUint32(data[40:44], 0xFFFFFFFF)
	return data
}

func TestTranscriberFinalizesWAVBeforeUpload(t *testing.T) {
	var got speech.Request
	tr := &Transcriber{next: session.TranscribeFunc(func(_ context.Context, req speech.Request) speech.Result {
		got = req
		return speech.Result{Text: "xin chào"}
	})}

	original := streamedWAV(2048)
	result := tr.Transcribe(context.Background(), speech.Request{ID: "r1", Audio: original, MimeType: encoding.WAV})
	require.True(t, result.OK())
	require.Equal(t, "xin chào", result.Text)
	require.Equal(t, uint32(2048), binary.LittleEndian.Uint32(got.Audio[40:44]))
	require.Equal(t, uint32(0xFFFFFFFF), binary.LittleEndian.Uint32(original[40:44]))
}

func TestTranscriberLeavesOtherEncodingsUntouched(t *testing.T) {
	var got speech.Request
	tr := &Transcriber{next: session.TranscribeFunc(func(_ context.Context, req speech.Request) speech.Result {
		got = req
		return speech.Result{Text: "ok"}
	})}

	audio := streamedWAV(16)
	tr.Transcribe(context.Background(), speech.Request{Audio: audio, MimeType: encoding.MP4})
	require.Equal(t, audio, got.Audio)
}

func TestTranscriberWithoutBackendReportsServiceUnavailable(t *testing.T) {
	result := (&Transcriber{}).Transcribe(context.Background(), speech.Request{Audio: []byte("x")})
	require.False(t, result.OK())
	require.Equal(t, speech.ReasonServiceUnavailable, result.Failure.Reason)
}

func TestTranscriberWritesDebugAudioDump(t *testing.T) {
	state := t.TempDir()
	t.Setenv("XDG_STATE_HOME", state)

	tr := &Transcriber{
		next:      session.TranscribeFunc(func(context.Context, speech.Request) speech.Result { return speech.Result{Text: "ok"} }),
		dumpAudio: true,
	}
	tr.Transcribe(context.Background(), speech.Request{Audio: streamedWAV(64), MimeType: encoding.WAV})

	matches, err := filepath.Glob(filepath.Join(state, "askvoice", "debug", "audio-*.wav"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	require.Len(t, data, 44+64)
	require.Equal(t, uint32(64), binary.LittleEndian.Uint32(data[40:44]))

	info, err := os.Stat(matches[0])
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestBuildBackendsHTTPUsesStatusEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/speech-status/", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"speech_service": map[string]any{"available": true}})
	}))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Service.URL = server.URL + "/api"

	transcriber, service, err := buildBackends(cfg, nil)
	require.NoError(t, err)
	require.IsType(t, &speech.Client{}, transcriber)

	ok, err := service.Available(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestBuildBackendsOpenAIWithoutKeyReportsUnavailable(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg := config.Default()
	cfg.Service.Backend = "openai"

	transcriber, service, err := buildBackends(cfg, nil)
	require.NoError(t, err)
	require.Nil(t, transcriber)

	ok, err := service.Available(context.Background())
	require.False(t, ok)
	require.Error(t, err)
	require.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestBuildBackendsOpenAIWithKeyIsAvailable(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg := config.Default()
	cfg.Service.Backend = "openai"

	transcriber, service, err := buildBackends(cfg, nil)
	require.NoError(t, err)
	require.IsType(t, &speech.OpenAI{}, transcriber)

	ok, err := service.Available(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
}

func TestBuildBackendsGRPCStatusOverridesHTTP(t *testing.T) {
	cfg := config.Default()
	cfg.Service.StatusBackend = "grpc"
	cfg.Service.GRPCEndpoint = "127.0.0.1:50051"

	_, service, err := buildBackends(cfg, nil)
	require.NoError(t, err)
	grpcStatus, ok := service.(*speech.GRPCStatus)
	require.True(t, ok)
	require.Equal(t, "127.0.0.1:50051", grpcStatus.Endpoint)
	require.Equal(t, "speech", grpcStatus.Service)
}

func TestBuildWiresControllerAndClosesIdempotently(t *testing.T) {
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	cfg := config.Default()
	cfg.Indicator.Enable = false

	rt, err := Build(cfg, nil)
	require.NoError(t, err)
	require.NotNil(t, rt.Controller)
	require.NotNil(t, rt.Channel)
	require.NotNil(t, rt.Metrics)
	require.Equal(t, session.HostIdle, rt.Controller.HostState())

	require.NoError(t, rt.Close())
	require.NoError(t, rt.Close())
	require.ErrorIs(t, rt.Controller.Start(context.Background()), session.ErrClosed)
}

func TestBuildRejectsInvalidEncodings(t *testing.T) {
	cfg := config.Default()
	cfg.Audio.Encodings = nil

	_, err := Build(cfg, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "audio.encodings")
}
