package battery

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cjeanneret/ZumoGo/internal/debug"
	"go.bug.st/serial"
)

const (
	// DefaultBaudRate matches the ADC bridge firmware.
	DefaultBaudRate = 115200
	// DefaultTimeout bounds one request/response exchange.
	DefaultTimeout = 200 * time.Millisecond
	// maxCode is the largest code a 12-bit ADC can produce.
	maxCode = 4095
)

var (
	// ErrNotConnected is returned by ReadRaw before Connect.
	ErrNotConnected = errors.New("battery: not connected")
	// ErrTimeout is returned when the bridge does not answer in time.
	ErrTimeout = errors.New("battery: no answer from ADC bridge")
)

// Bridge reads the battery ADC from a microcontroller on a serial port.
// Protocol: the host sends "v\n", the bridge answers with the raw code
// followed by a newline, e.g. "2211\n".
type Bridge struct {
	port     string
	baudRate int
	timeout  time.Duration

	mu   sync.Mutex
	conn serial.Port
	rw   io.ReadWriter
}

// NewBridge creates a Bridge for the given port. Zero values select defaults.
func NewBridge(port string, baudRate int, timeout time.Duration) *Bridge {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Bridge{port: port, baudRate: baudRate, timeout: timeout}
}

// Connect opens the serial port.
func (b *Bridge) Connect() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rw != nil {
		return fmt.Errorf("already connected")
	}

	port, err := serial.Open(b.port, &serial.Mode{BaudRate: b.baudRate})
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", b.port, err)
	}
	// Short reads let ReadRaw enforce its own deadline.
	if err := port.SetReadTimeout(10 * time.Millisecond); err != nil {
		port.Close()
		return fmt.Errorf("set read timeout: %w", err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		debug.Verbose("battery: reset input buffer: %v", err)
	}

	b.conn = port
	b.rw = port
	debug.Info("Battery ADC bridge connected on %s", b.port)
	return nil
}

// Close closes the serial port.
func (b *Bridge) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.rw = nil
	if b.conn == nil {
		return nil
	}
	err := b.conn.Close()
	b.conn = nil
	return err
}

// ReadRaw requests one conversion and blocks until the answer or the timeout.
func (b *Bridge) ReadRaw() (uint16, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.rw == nil {
		return 0, ErrNotConnected
	}
	if _, err := b.rw.Write([]byte("v\n")); err != nil {
		return 0, fmt.Errorf("send request: %w", err)
	}

	line, err := readLine(b.rw, time.Now().Add(b.timeout))
	if err != nil {
		return 0, err
	}
	return parseCode(line)
}

// readLine reads until '\n' or deadline. Empty reads are timeouts of the
// underlying port and are retried.
func readLine(r io.Reader, deadline time.Time) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 16)
	for {
		if time.Now().After(deadline) {
			return "", ErrTimeout
		}
		n, err := r.Read(buf)
		for _, c := range buf[:n] {
			if c == '\n' {
				return sb.String(), nil
			}
			sb.WriteByte(c)
		}
		if err != nil {
			if errors.Is(err, io.EOF) && n == 0 {
				return "", ErrTimeout
			}
			if !errors.Is(err, io.EOF) {
				return "", fmt.Errorf("read answer: %w", err)
			}
		}
	}
}

// parseCode parses one answer line into an ADC code.
func parseCode(line string) (uint16, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return 0, fmt.Errorf("empty answer")
	}
	v, err := strconv.ParseUint(line, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid code %q: %w", line, err)
	}
	if v > maxCode {
		return 0, fmt.Errorf("code out of range: %d (max %d)", v, maxCode)
	}
	return uint16(v), nil
}

// Fixed is a battery that always reads the same code. Used with mock GPIO.
type Fixed struct {
	Raw uint16
}

func (f *Fixed) ReadRaw() (uint16, error) {
	return f.Raw, nil
}
