package extension

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edge-infer/kinfer/internal/loader"
)

func TestBackendRejectsNonELFBlob(t *testing.T) {
	b := New()
	err := b.Install([]byte("not an elf file"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "not an ELF object")
}

func TestBackendOperationsFailBeforeInstall(t *testing.T) {
	b := New()
	ctx := context.Background()
	require.ErrorIs(t, b.Init(ctx), errNotLoaded)
	require.ErrorIs(t, b.InitWeights(ctx), errNotLoaded)
	require.ErrorIs(t, b.InitInput(ctx), errNotLoaded)
	require.ErrorIs(t, b.Run(ctx), errNotLoaded)
	_, err := b.RunBench(ctx)
	require.ErrorIs(t, err, errNotLoaded)
	_, err = b.GetOutput(make([]byte, 4))
	require.ErrorIs(t, err, errNotLoaded)
	_, err = b.GetStatistics(make([]byte, 4))
	require.ErrorIs(t, err, errNotLoaded)
	require.NoError(t, b.Deinit(ctx)) // no-op when nothing is loaded
}

func TestBackendTeardownNoopWithoutInstall(t *testing.T) {
	b := New()
	require.NoError(t, b.Teardown())
}

// TestLoaderExtensionRejectsInstallOfInvalidBlob exercises loader.Extension
// streaming a short, non-ELF blob into Backend.Install, confirming the
// size-prefix framing and the backend's ELF sanity check compose
// correctly: a complete-but-invalid blob surfaces Install's error back
// through loader.Extension.Save.
func TestLoaderExtensionRejectsInstallOfInvalidBlob(t *testing.T) {
	b := New()
	heap := loader.NewExtensionHeap(1024)
	ext := loader.NewExtension(heap, b)

	blob := []byte("bogus-extension-body")
	prefixed := append(lenPrefix(len(blob)), blob...)

	err := ext.Save(prefixed)
	require.Error(t, err)
}

func lenPrefix(n int) []byte {
	return []byte{byte(n), byte(n >> 8), byte(n >> 16), byte(n >> 24)}
}
