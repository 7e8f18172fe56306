package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPipeRoundTrip(t *testing.T) {
	a, b := NewPipePair(Config{Timeout: time.Second})
	defer a.Close()
	defer b.Close()

	go func() {
		_, _ = a.Write([]byte("hello"))
	}()

	buf := make([]byte, 5)
	n, err := b.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 5, n)
	require.Equal(t, "hello", string(buf))
}

func TestPipeReadTimeout(t *testing.T) {
	a, b := NewPipePair(Config{Timeout: 20 * time.Millisecond})
	defer a.Close()
	defer b.Close()

	buf := make([]byte, 4)
	_, err := b.Read(buf)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestPipeCloseThenReadWrite(t *testing.T) {
	a, b := NewPipePair(Config{Timeout: time.Second})
	require.NoError(t, a.Close())
	b.Close()

	_, err := a.Read(make([]byte, 1))
	require.ErrorIs(t, err, ErrClosed)

	_, err = a.Write([]byte("x"))
	require.ErrorIs(t, err, ErrClosed)
}

func TestPipeBidirectional(t *testing.T) {
	a, b := NewPipePair(Config{Timeout: time.Second})
	defer a.Close()
	defer b.Close()

	go func() { _, _ = b.Write([]byte("pong")) }()
	buf := make([]byte, 4)
	n, err := a.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "pong", string(buf[:n]))
}
