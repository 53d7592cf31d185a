package audio

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/askvoice/internal/capture"
	"github.com/rbright/askvoice/internal/encoding"
)

func drain(ch <-chan []byte) [][]byte {
	var out [][]byte
	for block := range ch {
		out = append(out, block)
	}
	return out
}

func TestSourceSupportsOnlyWAV(t *testing.T) {
	src := &Source{}
	require.True(t, src.Supports(encoding.WAV))
	require.False(t, src.Supports(encoding.WebMOpus))
	require.False(t, src.Supports(encoding.MP4))
}

func TestSourceNegotiatesWAVFromDefaultTable(t *testing.T) {
	src := &Source{}
	got, ok := encoding.Default().Negotiate(src.Supports)
	require.True(t, ok)
	require.Equal(t, encoding.WAV, got)
}

func TestSourceOpenWithoutPulseIsAccessDenied(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := (&Source{Input: "default"}).Open(context.Background())
	require.ErrorIs(t, err, capture.ErrAccessDenied)
}

func TestSourceCaptureSupportedWithoutPulse(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	ok, err := (&Source{}).CaptureSupported(context.Background())
	require.Error(t, err)
	require.False(t, ok)
}

func TestStreamRecordRejectsUnsupportedEncoding(t *testing.T) {
	s := &stream{}
	_, err := s.Record(encoding.WebM, time.Second)
	require.Error(t, err)
}

func TestStreamCloseIsIdempotentAndAbortsRecorder(t *testing.T) {
	rec := newRecorder(4)
	s := &stream{recorder: rec}

	_, err := rec.onPCM([]byte{1, 2})
	require.NoError(t, err)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	require.Empty(t, drain(rec.Chunks()))

	_, err = s.Record(encoding.WAV, time.Second)
	require.Error(t, err)
}

func TestBlockSizeFor(t *testing.T) {
	require.Equal(t, 32000, blockSizeFor(time.Second))
	require.Equal(t, 16000, blockSizeFor(500*time.Millisecond))
	require.Equal(t, fragmentSizeBytes, blockSizeFor(time.Millisecond))
}

func TestRecorderSlicesBlocksAndStopFlushesResidual(t *testing.T) {
	rec := newRecorder(4)

	n, err := rec.onPCM([]byte{1, 2, 3, 4, 5, 6, 7, 8, 9})
	require.NoError(t, err)
	require.Equal(t, 9, n)
	require.Equal(t, int64(9), rec.BytesCaptured())

	require.NoError(t, rec.Stop(context.Background()))
	require.Equal(t, [][]byte{{1, 2, 3, 4}, {5, 6, 7, 8}, {9}}, drain(rec.Chunks()))

	require.NoError(t, rec.Stop(context.Background()))
}

func TestRecorderOnPCMReturnsEOFWhenStopped(t *testing.T) {
	rec := newRecorder(4)
	require.NoError(t, rec.Stop(context.Background()))

	n, err := rec.onPCM([]byte{1, 2, 3})
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, int64(0), rec.BytesCaptured())
}

func TestRecorderStopFlushRespectsContext(t *testing.T) {
	rec := newRecorder(4)
	rec.chunks = make(chan []byte) // nobody reads

	rec.mu.Lock()
	rec.pending = []byte{1}
	rec.mu.Unlock()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := rec.Stop(ctx)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.Canceled))
	_, ok := <-rec.chunks
	require.False(t, ok)
}

func TestRecorderRequeuePrependsUnsentBlocks(t *testing.T) {
	rec := newRecorder(2)
	rec.pending = []byte{9}
	rec.requeue([][]byte{{1, 2}, {3, 4}})
	require.Equal(t, []byte{1, 2, 3, 4, 9}, rec.pending)
}

func TestDescribeInput(t *testing.T) {
	require.Equal(t, "Elgato (alsa_input.wave3)", DescribeInput(Input{Description: "Elgato", ID: "alsa_input.wave3"}))
	require.Equal(t, "Elgato", DescribeInput(Input{Description: "Elgato"}))
	require.Equal(t, "alsa_input.wave3", DescribeInput(Input{ID: "alsa_input.wave3"}))
}
