//go:build integration

package audio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rbright/askvoice/internal/encoding"
)

func TestListInputsIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	inputs, err := ListInputs(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, inputs)
}

func TestSourceRecordsWAVBlocksIntegration(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	src := &Source{Input: "default", Fallback: "default"}
	stream, err := src.Open(ctx)
	require.NoError(t, err)
	defer stream.Close()

	rec, err := stream.Record(encoding.WAV, 200*time.Millisecond)
	require.NoError(t, err)

	header := <-rec.Chunks()
	require.Equal(t, "RIFF", string(header[0:4]))

	time.Sleep(500 * time.Millisecond)
	require.NoError(t, rec.Stop(ctx))

	total := 0
	for block := range rec.Chunks() {
		total += len(block)
	}
	require.Positive(t, total)
}
