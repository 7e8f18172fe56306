//go:build !linux

package transport

// SerialConfig configures a real UART link. Only implemented on linux;
// other platforms use Pipe for tests and development.
type SerialConfig struct {
	Path     string
	BaudRate uint32
	Config
}

func DefaultSerialConfig(path string) SerialConfig {
	return SerialConfig{Path: path, BaudRate: 115200, Config: DefaultConfig()}
}

// OpenSerial is unavailable outside linux.
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	return nil, ErrNoSys
}

// Serial is an opaque placeholder on non-linux platforms.
type Serial struct{}

func (s *Serial) Read(p []byte) (int, error)  { return 0, ErrNoSys }
func (s *Serial) Write(p []byte) (int, error) { return 0, ErrNoSys }
func (s *Serial) Close() error                { return nil }

var _ Transport = (*Serial)(nil)
