//go:build linux

package transport

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// SerialConfig configures a real UART link.
type SerialConfig struct {
	Path     string
	BaudRate uint32
	Config
}

// DefaultSerialConfig mirrors the reference board's 115200-8N1 link.
func DefaultSerialConfig(path string) SerialConfig {
	return SerialConfig{Path: path, BaudRate: 115200, Config: DefaultConfig()}
}

// Serial is a termios-configured UART transport, read with a poll-based
// inter-byte-gap timeout instead of an io_uring submission/completion
// model — a single byte stream with no queueing has no use for a ring.
type Serial struct {
	fd      int
	timeout time.Duration
}

// OpenSerial opens and configures the serial device at cfg.Path.
func OpenSerial(cfg SerialConfig) (*Serial, error) {
	fd, err := unix.Open(cfg.Path, unix.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", cfg.Path, err)
	}

	t, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("transport: get termios: %w", err)
	}

	speed, err := baudConstant(cfg.BaudRate)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}

	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB
	t.Cflag |= unix.CS8 | unix.CLOCAL | unix.CREAD
	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0
	t.Ispeed = speed
	t.Ospeed = speed

	if err := unix.IoctlSetTermios(fd, unix.TCSETS, t); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("transport: set termios: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}
	return &Serial{fd: fd, timeout: timeout}, nil
}

func (s *Serial) Read(p []byte) (int, error) {
	if s.fd < 0 {
		return 0, ErrClosed
	}
	deadline := int(s.timeout / time.Millisecond)
	fds := []unix.PollFd{{Fd: int32(s.fd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, deadline)
	if err != nil {
		return 0, fmt.Errorf("transport: poll: %w", err)
	}
	if n == 0 {
		return 0, ErrTimeout
	}
	return unix.Read(s.fd, p)
}

func (s *Serial) Write(p []byte) (int, error) {
	if s.fd < 0 {
		return 0, ErrClosed
	}
	total := 0
	for total < len(p) {
		n, err := unix.Write(s.fd, p[total:])
		if err != nil {
			return total, fmt.Errorf("transport: write: %w", err)
		}
		total += n
	}
	return total, nil
}

func (s *Serial) Close() error {
	if s.fd < 0 {
		return nil
	}
	err := unix.Close(s.fd)
	s.fd = -1
	return err
}

var _ Transport = (*Serial)(nil)

func baudConstant(rate uint32) (uint32, error) {
	switch rate {
	case 9600:
		return unix.B9600, nil
	case 19200:
		return unix.B19200, nil
	case 38400:
		return unix.B38400, nil
	case 57600:
		return unix.B57600, nil
	case 115200:
		return unix.B115200, nil
	case 230400:
		return unix.B230400, nil
	case 460800:
		return unix.B460800, nil
	case 921600:
		return unix.B921600, nil
	default:
		return 0, fmt.Errorf("transport: unsupported baud rate %d", rate)
	}
}
