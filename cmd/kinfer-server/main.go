// Command kinfer-server runs the inference protocol server over a serial
// link. It has no pipe mode; the in-process Pipe transport is used only
// from Go code such as the tests.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edge-infer/kinfer"
	"github.com/edge-infer/kinfer/backends/extension"
	"github.com/edge-infer/kinfer/backends/hwsim"
	"github.com/edge-infer/kinfer/backends/stub"
	"github.com/edge-infer/kinfer/internal/interfaces"
	"github.com/edge-infer/kinfer/internal/logging"
	"github.com/edge-infer/kinfer/internal/loader"
	"github.com/edge-infer/kinfer/internal/transport"
)

func main() {
	var (
		devPath  = flag.String("device", "/dev/ttyACM0", "Serial device to listen on")
		baudRate = flag.Uint("baud", 115200, "Serial baud rate")
		verbose  = flag.Bool("v", false, "Verbose output")
		backendName = flag.String("backend", "stub", "Runtime backend: stub, hwsim, or extension")
		logBufSize  = flag.Int("log-buffer", kinfer.DefaultConfig().LogBufferSize, "Device-side log forwarding buffer size in bytes (0 disables)")
	)
	flag.Parse()

	logConfig := logging.DefaultConfig()
	if *verbose {
		logConfig.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logConfig)
	logging.SetDefault(logger)

	tr, err := openTransport(*devPath, uint32(*baudRate))
	if err != nil {
		log.Fatalf("kinfer-server: open transport: %v", err)
	}
	defer tr.Close()

	backend, err := selectBackend(*backendName)
	if err != nil {
		log.Fatalf("kinfer-server: %v", err)
	}

	cfg := kinfer.DefaultConfig()
	cfg.LogBufferSize = *logBufSize

	opts := &kinfer.Options{Logger: logger.WithComponent("server")}
	if ext, ok := backend.(*extension.Backend); ok {
		opts.Extension = loader.NewExtension(loader.NewExtensionHeap(cfg.ExtensionHeapSize), ext)
	}

	srv, err := kinfer.New(tr, backend, cfg, opts)
	if err != nil {
		logger.Errorf("failed to construct server: %v", err)
		os.Exit(1)
	}

	logger.Infof("serving on %s (backend=%s)", *devPath, *backendName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Infof("received shutdown signal")
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			logger.Warnf("serve loop did not stop in time, exiting anyway")
		}
	case err := <-done:
		if err != nil {
			logger.Errorf("serve loop exited: %v", err)
			fmt.Fprintf(os.Stderr, "kinfer-server: %v\n", err)
			os.Exit(1)
		}
	}

	if err := srv.Close(); err != nil {
		logger.Errorf("close: %v", err)
	}
}

func openTransport(path string, baud uint32) (transport.Transport, error) {
	cfg := transport.DefaultSerialConfig(path)
	cfg.BaudRate = baud
	return transport.OpenSerial(cfg)
}

func selectBackend(name string) (interfaces.Backend, error) {
	switch name {
	case "stub":
		return stub.New(), nil
	case "hwsim":
		return hwsim.New(), nil
	case "extension":
		return extension.New(), nil
	default:
		return nil, fmt.Errorf("unknown backend %q (want stub, hwsim, or extension)", name)
	}
}
