package speech

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/askvoice/internal/encoding"
)

func newTestClient(t *testing.T, srv *httptest.Server, timeout time.Duration) *Client {
	t.Helper()
	client, err := NewClient(ClientConfig{BaseURL: srv.URL + "/api", Timeout: timeout})
	require.NoError(t, err)
	return client
}

func testRequest() Request {
	return Request{
		ID:       "req-1",
		Audio:    []byte("RIFFdata"),
		MimeType: encoding.WebMOpus,
		Language: "vi",
	}
}

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient(ClientConfig{BaseURL: "127.0.0.1:8000/api/"})
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:8000/api/speech-status/", client.StatusURL())
	require.Equal(t, "http://127.0.0.1:8000/api/speech-to-text/", client.TranscribeURL())
	require.Equal(t, DefaultTimeout, client.timeout)
}

func TestNewClientRejectsEmptyURL(t *testing.T) {
	_, err := NewClient(ClientConfig{BaseURL: "  "})
	require.Error(t, err)
}

func TestTranscribeSendsMultipartFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/speech-to-text/", r.URL.Path)
		require.Equal(t, "req-1", r.Header.Get("X-Request-ID"))

		require.NoError(t, r.ParseMultipartForm(1<<20))
		require.Equal(t, "vi", r.FormValue("language"))
		require.Equal(t, string(encoding.WebMOpus), r.FormValue("original_format"))

		file, header, err := r.FormFile("audio")
		require.NoError(t, err)
		defer file.Close()
		require.Equal(t, "recording.webm", header.Filename)
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		require.Equal(t, "RIFFdata", string(data))

		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "text": "  xin chào  "})
	}))
	defer srv.Close()

	result := newTestClient(t, srv, time.Second).Transcribe(context.Background(), testRequest())
	require.True(t, result.OK())
	require.NoError(t, result.Err())
	require.Equal(t, "xin chào", result.Text)
}

func TestTranscribeClassification(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantReason Reason
		wantDetail string
	}{
		{name: "success false with error", status: 200, body: `{"success":false,"error":"Âm thanh không rõ"}`, wantReason: ReasonTranscriptionFailed, wantDetail: "Âm thanh không rõ"},
		{name: "success true empty text", status: 200, body: `{"success":true,"text":"   "}`, wantReason: ReasonTranscriptionFailed, wantDetail: DefaultFailureDetail},
		{name: "success false no error", status: 200, body: `{"success":false}`, wantReason: ReasonTranscriptionFailed, wantDetail: DefaultFailureDetail},
		{name: "payload too large", status: 413, body: `{}`, wantReason: ReasonPayloadTooLarge, wantDetail: "HTTP 413"},
		{name: "server error", status: 500, body: `{}`, wantReason: ReasonServiceUnavailable, wantDetail: "HTTP 500"},
		{name: "bad gateway", status: 502, body: ``, wantReason: ReasonServiceUnavailable, wantDetail: "HTTP 502"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			result := newTestClient(t, srv, time.Second).Transcribe(context.Background(), testRequest())
			require.False(t, result.OK())
			require.Equal(t, tc.wantReason, result.Failure.Reason)
			require.Equal(t, tc.wantDetail, result.Failure.Detail)
			require.Empty(t, result.Text)
		})
	}
}

func TestTranscribeMalformedJSONIsServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "not json")
	}))
	defer srv.Close()

	result := newTestClient(t, srv, time.Second).Transcribe(context.Background(), testRequest())
	require.Equal(t, ReasonServiceUnavailable, result.Failure.Reason)
}

func TestTranscribeTimeoutIsNetworkTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	result := newTestClient(t, srv, 30*time.Millisecond).Transcribe(context.Background(), testRequest())
	require.False(t, result.OK())
	require.Equal(t, ReasonNetworkTimeout, result.Failure.Reason)
}

func TestTranscribeCallerCancelIsCanceled(t *testing.T) {
	entered := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-entered
		cancel()
	}()

	result := newTestClient(t, srv, time.Minute).Transcribe(ctx, testRequest())
	require.True(t, result.Canceled())
	require.Equal(t, ReasonCanceled, result.Failure.Reason)
}

func TestTranscribeUnreachableIsServiceUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	client, err := NewClient(ClientConfig{BaseURL: url, Timeout: time.Second})
	require.NoError(t, err)

	result := client.Transcribe(context.Background(), testRequest())
	require.Equal(t, ReasonServiceUnavailable, result.Failure.Reason)
}

func TestAvailable(t *testing.T) {
	var hits atomic.Int32
	tests := []struct {
		name    string
		status  int
		body    string
		want    bool
		wantErr bool
	}{
		{name: "available", status: 200, body: `{"speech_service":{"available":true}}`, want: true},
		{name: "unavailable", status: 200, body: `{"speech_service":{"available":false}}`, want: false},
		{name: "missing section", status: 200, body: `{}`, want: false},
		{name: "http error", status: 503, body: ``, wantErr: true},
		{name: "malformed", status: 200, body: `{`, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				require.Equal(t, http.MethodGet, r.Method)
				require.Equal(t, "/api/speech-status/", r.URL.Path)
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			got, err := newTestClient(t, srv, time.Second).Available(context.Background())
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
	require.Equal(t, int32(len(tests)), hits.Load())
}

func TestFailureError(t *testing.T) {
	require.Equal(t, "network_timeout", (&Failure{Reason: ReasonNetworkTimeout}).Error())
	require.Equal(t, "transcription_failed: boom", (&Failure{Reason: ReasonTranscriptionFailed, Detail: "boom"}).Error())
}

func TestRequestFilename(t *testing.T) {
	require.Equal(t, "recording.wav", Request{MimeType: encoding.WAV}.Filename())
	require.Equal(t, "recording.m4a", Request{MimeType: encoding.MP4}.Filename())
}
