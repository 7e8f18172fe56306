package hwsim

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"
)

func wordsToBytes(words ...uint32) []byte {
	buf := make([]byte, 4*len(words))
	for i, w := range words {
		binary.LittleEndian.PutUint32(buf[i*4:], w)
	}
	return buf
}

func TestBackendRunChecksumsUploadedWeights(t *testing.T) {
	b := New()
	ctx := context.Background()

	// addr=1, len=2, words, addr=0 (end weights), addr=0 (end biases)
	require.NoError(t, b.stream.Save(wordsToBytes(1, 2, 0xAA, 0xBB, 0, 0)))
	require.True(t, b.stream.Done())
	require.NoError(t, b.InitWeights(ctx))

	require.NoError(t, b.Run(ctx))
	buf := make([]byte, 4)
	n, err := b.GetOutput(buf)
	require.NoError(t, err)
	require.Equal(t, 4, n)
	require.Equal(t, uint32(0xAA^0xBB), binary.LittleEndian.Uint32(buf))
}

func TestBackendInitWeightsRejectsUnterminatedStream(t *testing.T) {
	b := New()
	require.NoError(t, b.stream.Save(wordsToBytes(1, 2, 0xAA)))
	require.False(t, b.stream.Done())
	require.ErrorIs(t, b.InitWeights(context.Background()), errNotTerminated)
}

func TestBackendGetStatisticsReportsRegisterCounts(t *testing.T) {
	b := New()
	require.NoError(t, b.stream.Save(wordsToBytes(1, 1, 0x1, 0, 2, 1, 0x2, 0)))
	buf := make([]byte, 4096)
	n, err := b.GetStatistics(buf)
	require.NoError(t, err)
	require.NotZero(t, n)
}

func TestBackendDeinitResetsRegisterFile(t *testing.T) {
	b := New()
	require.NoError(t, b.stream.Save(wordsToBytes(1, 1, 0x1, 0, 0)))
	require.NoError(t, b.Deinit(context.Background()))
	require.Empty(t, b.regs.Weights)
	require.False(t, b.stream.Done())
}
