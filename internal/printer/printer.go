// Package printer sends TSPL jobs to a thermal printer over a serial link.
package printer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ketutoka/printlabel/internal/tspl"
	"go.bug.st/serial"
)

var (
	ErrNotConnected = errors.New("printer not connected")
	ErrNoResponse   = errors.New("printer transport cannot read responses")
)

// resumeSequence clears a paused state before a job is sent.
var resumeSequence = []byte("\x1b!o")

// chunkSize bounds a single write so cancellation is noticed mid-job.
const chunkSize = 4096

// SerialConfig describes a serial port.
type SerialConfig struct {
	Port        string
	BaudRate    int
	ReadTimeout time.Duration
}

// DefaultSerialConfig returns 115200 baud with a 3s read timeout.
func DefaultSerialConfig(port string) SerialConfig {
	return SerialConfig{Port: port, BaudRate: 115200, ReadTimeout: 3 * time.Second}
}

// Printer is a connection to one printer. Methods are safe for concurrent
// use; jobs are written one at a time.
type Printer struct {
	mu     sync.Mutex
	conn   io.WriteCloser
	name   string
	settle time.Duration
	logger *slog.Logger
}

// Open connects to a serial port using 8N1 framing.
func Open(cfg SerialConfig) (*Printer, error) {
	if cfg.Port == "" {
		return nil, fmt.Errorf("open printer: %w: no port configured", ErrNotConnected)
	}
	if cfg.BaudRate <= 0 {
		cfg.BaudRate = 115200
	}
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("open port %s: %w", cfg.Port, err)
	}
	if cfg.ReadTimeout > 0 {
		if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
			_ = port.Close()
			return nil, fmt.Errorf("set read timeout on %s: %w", cfg.Port, err)
		}
	}
	return New(cfg.Port, port), nil
}

// New wraps an already open transport. Transports that also implement
// io.Reader support Query.
func New(name string, conn io.WriteCloser) *Printer {
	return &Printer{
		conn:   conn,
		name:   name,
		settle: 100 * time.Millisecond,
		logger: slog.Default(),
	}
}

// ListPorts returns the serial ports present on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

// SetSettleDelay sets the pause between the resume sequence and the job.
func (p *Printer) SetSettleDelay(d time.Duration) { p.settle = d }

// Name returns the port name.
func (p *Printer) Name() string { return p.name }

// Close closes the transport.
func (p *Printer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return nil
	}
	err := p.conn.Close()
	p.conn = nil
	return err
}

// Print writes a raw job.
func (p *Printer) Print(ctx context.Context, job []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return ErrNotConnected
	}

	if _, err := p.conn.Write(resumeSequence); err != nil {
		return fmt.Errorf("resume printer: %w", err)
	}
	if p.settle > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.settle):
		}
	}

	for off := 0; off < len(job); off += chunkSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(off+chunkSize, len(job))
		if _, err := p.conn.Write(job[off:end]); err != nil {
			return fmt.Errorf("print failed at byte %d: %w", off, err)
		}
	}

	p.logger.Debug("job sent", "port", p.name, "bytes", len(job))
	return nil
}

// PrintImage converts a label bitmap to a TSPL job and prints it.
func (p *Printer) PrintImage(ctx context.Context, img image.Image, opts tspl.JobOptions) error {
	return p.Print(ctx, tspl.BuildJob(img, opts))
}

// Query sends a command terminated by CRLF and returns the first response
// line.
func (p *Printer) Query(cmd string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn == nil {
		return "", ErrNotConnected
	}
	r, ok := p.conn.(io.Reader)
	if !ok {
		return "", ErrNoResponse
	}

	if _, err := p.conn.Write([]byte(cmd + "\r\n")); err != nil {
		return "", fmt.Errorf("write %q: %w", cmd, err)
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read %q response: %w", cmd, err)
	}
	return strings.TrimSpace(line), nil
}
