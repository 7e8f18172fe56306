// Package extension implements a Backend whose actual implementation is
// loaded dynamically at runtime from a streamed blob, rather than linked
// in ahead of time. Grounded on inference_server.c's
// prepare_llext_loader/save_runtime/reset_runtime: the firmware streams
// an LLEXT-relocatable object onto a heap and resolves its exported
// symbols; here the blob is a Go plugin (.so), sanity-checked as an ELF
// object before plugin.Open, with its exported symbols resolved into the
// same eight operations RUNTIME_LL_EXTENSION_SYMBOLS names.
package extension

import (
	"context"
	"debug/elf"
	"fmt"
	"os"
	"plugin"
	"sync"

	"github.com/edge-infer/kinfer/internal/interfaces"
)

// Symbol names every extension .so must export.
const (
	SymInit          = "RuntimeInit"
	SymInitWeights   = "RuntimeInitWeights"
	SymInitInput     = "RuntimeInitInput"
	SymRun           = "RuntimeRun"
	SymRunBench      = "RuntimeRunBench"
	SymGetOutput     = "RuntimeGetOutput"
	SymGetStatistics = "RuntimeGetStatistics"
	SymDeinit        = "RuntimeDeinit"
)

// ops mirrors interfaces.Backend's operations as resolved function values,
// minus InstallLoaders (an extension backend installs no loaders of its
// own — it only replaces the runtime the model lifecycle drives).
type ops struct {
	init          func(context.Context) error
	initWeights   func(context.Context) error
	initInput     func(context.Context) error
	run           func(context.Context) error
	runBench      func(context.Context) (interfaces.Timing, error)
	getOutput     func([]byte) (int, error)
	getStatistics func([]byte) (int, error)
	deinit        func(context.Context) error
}

// Backend proxies interfaces.Backend through a dynamically loaded
// extension's resolved symbols. It also implements loader.Installer, so a
// loader.Extension can hand it a completed blob directly.
type Backend struct {
	mu      sync.Mutex
	tmpDir  string
	current ops
	loaded  bool
}

// New returns a Backend with nothing loaded; every Backend method returns
// an error until Install succeeds.
func New() *Backend {
	return &Backend{}
}

func (b *Backend) InstallLoaders(interfaces.LoaderRegistry) error { return nil }

// Install is called by loader.Extension once a complete blob has been
// streamed. It writes blob to a private temp file (the equivalent of
// placing the relocatable object on the LLEXT heap), verifies it's an ELF
// object before handing it to plugin.Open (Go's plugin ABI requires a
// real ELF shared object on disk — it cannot load from an in-memory
// byte slice), and resolves every RUNTIME_LL_EXTENSION_SYMBOLS entry.
func (b *Backend) Install(blob []byte) error {
	if err := sanityCheckELF(blob); err != nil {
		return fmt.Errorf("extension: %w", err)
	}

	f, err := os.CreateTemp("", "kinfer-extension-*.so")
	if err != nil {
		return fmt.Errorf("extension: temp file: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(blob); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("extension: write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("extension: close temp file: %w", err)
	}

	p, err := plugin.Open(path)
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("extension: plugin.Open: %w", err)
	}

	resolved, err := resolveSymbols(p)
	if err != nil {
		os.Remove(path)
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.tmpDir = path
	b.current = resolved
	b.loaded = true
	return nil
}

// Teardown releases the previously installed extension's temp file,
// mirroring reset_runtime's call into the old extension before a new one
// replaces it.
func (b *Backend) Teardown() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.loaded {
		return nil
	}
	if b.current.deinit != nil {
		_ = b.current.deinit(context.Background())
	}
	if b.tmpDir != "" {
		_ = os.Remove(b.tmpDir)
	}
	b.loaded = false
	b.current = ops{}
	b.tmpDir = ""
	return nil
}

var errNotLoaded = fmt.Errorf("extension: no runtime extension installed")

func (b *Backend) Init(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.loaded {
		return errNotLoaded
	}
	return b.current.init(ctx)
}

func (b *Backend) InitWeights(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.loaded {
		return errNotLoaded
	}
	return b.current.initWeights(ctx)
}

func (b *Backend) InitInput(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.loaded {
		return errNotLoaded
	}
	return b.current.initInput(ctx)
}

func (b *Backend) Run(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.loaded {
		return errNotLoaded
	}
	return b.current.run(ctx)
}

func (b *Backend) RunBench(ctx context.Context) (interfaces.Timing, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.loaded {
		return interfaces.Timing{}, errNotLoaded
	}
	return b.current.runBench(ctx)
}

func (b *Backend) GetOutput(buf []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.loaded {
		return 0, errNotLoaded
	}
	return b.current.getOutput(buf)
}

func (b *Backend) GetStatistics(buf []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.loaded {
		return 0, errNotLoaded
	}
	return b.current.getStatistics(buf)
}

func (b *Backend) Deinit(ctx context.Context) error {
	b.mu.Lock()
	loaded := b.loaded
	current := b.current
	b.mu.Unlock()
	if !loaded {
		return nil
	}
	return current.deinit(ctx)
}

func sanityCheckELF(blob []byte) error {
	if len(blob) < 4 || string(blob[:4]) != elf.ELFMAG {
		return fmt.Errorf("blob is not an ELF object")
	}
	return nil
}

func resolveSymbols(p *plugin.Plugin) (ops, error) {
	var o ops
	var err error

	if o.init, err = lookupFunc[func(context.Context) error](p, SymInit); err != nil {
		return ops{}, err
	}
	if o.initWeights, err = lookupFunc[func(context.Context) error](p, SymInitWeights); err != nil {
		return ops{}, err
	}
	if o.initInput, err = lookupFunc[func(context.Context) error](p, SymInitInput); err != nil {
		return ops{}, err
	}
	if o.run, err = lookupFunc[func(context.Context) error](p, SymRun); err != nil {
		return ops{}, err
	}
	if o.runBench, err = lookupFunc[func(context.Context) (interfaces.Timing, error)](p, SymRunBench); err != nil {
		return ops{}, err
	}
	if o.getOutput, err = lookupFunc[func([]byte) (int, error)](p, SymGetOutput); err != nil {
		return ops{}, err
	}
	if o.getStatistics, err = lookupFunc[func([]byte) (int, error)](p, SymGetStatistics); err != nil {
		return ops{}, err
	}
	if o.deinit, err = lookupFunc[func(context.Context) error](p, SymDeinit); err != nil {
		return ops{}, err
	}
	return o, nil
}

func lookupFunc[T any](p *plugin.Plugin, name string) (T, error) {
	var zero T
	sym, err := p.Lookup(name)
	if err != nil {
		return zero, fmt.Errorf("extension: missing symbol %s: %w", name, err)
	}
	fn, ok := sym.(T)
	if !ok {
		return zero, fmt.Errorf("extension: symbol %s has wrong signature", name)
	}
	return fn, nil
}

var (
	_ interfaces.Backend = (*Backend)(nil)
)
