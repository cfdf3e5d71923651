package printer

import (
	"bytes"
	"context"
	"errors"
	"image"
	"strings"
	"testing"

	"github.com/ketutoka/printlabel/internal/mono"
	"github.com/ketutoka/printlabel/internal/tspl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memConn is write-only, like a printer port without a read channel.
type memConn struct {
	buf    bytes.Buffer
	closed bool
	failAt int
}

func (m *memConn) Write(p []byte) (int, error) {
	if m.failAt > 0 && m.buf.Len()+len(p) > m.failAt {
		return 0, errors.New("cable unplugged")
	}
	return m.buf.Write(p)
}

func (m *memConn) Bytes() []byte { return m.buf.Bytes() }

func (m *memConn) Close() error {
	m.closed = true
	return nil
}

type rwConn struct {
	out    bytes.Buffer
	replay *strings.Reader
}

func (c *rwConn) Write(p []byte) (int, error) { return c.out.Write(p) }
func (c *rwConn) Read(p []byte) (int, error)  { return c.replay.Read(p) }
func (c *rwConn) Close() error                { return nil }

func newTestPrinter(conn *memConn) *Printer {
	p := New("mem", conn)
	p.SetSettleDelay(0)
	return p
}

func TestPrint_WritesResumeThenJob(t *testing.T) {
	conn := &memConn{}
	p := newTestPrinter(conn)

	job := bytes.Repeat([]byte{0xAA}, chunkSize*2+17)
	require.NoError(t, p.Print(context.Background(), job))

	got := conn.Bytes()
	assert.True(t, bytes.HasPrefix(got, resumeSequence))
	assert.Equal(t, job, got[len(resumeSequence):])
}

func TestPrintImage(t *testing.T) {
	conn := &memConn{}
	p := newTestPrinter(conn)

	canvas := mono.NewCanvas(16, 8)
	mono.FillRect(canvas, image.Rect(0, 0, 8, 8))
	require.NoError(t, p.PrintImage(context.Background(), canvas, tspl.DefaultJobOptions()))

	h, _, err := tspl.ParseBitmap(conn.Bytes()[len(resumeSequence):])
	require.NoError(t, err)
	assert.Equal(t, 2, h.WidthBytes)
	assert.Equal(t, 8, h.Height)
}

func TestPrint_Errors(t *testing.T) {
	t.Run("closed", func(t *testing.T) {
		conn := &memConn{}
		p := newTestPrinter(conn)
		require.NoError(t, p.Close())
		assert.True(t, conn.closed)
		assert.ErrorIs(t, p.Print(context.Background(), []byte("x")), ErrNotConnected)
		assert.NoError(t, p.Close())
	})

	t.Run("cancelled", func(t *testing.T) {
		p := newTestPrinter(&memConn{})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, p.Print(ctx, []byte("x")), context.Canceled)
	})

	t.Run("write failure", func(t *testing.T) {
		p := newTestPrinter(&memConn{failAt: chunkSize})
		err := p.Print(context.Background(), make([]byte, chunkSize*2))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cable unplugged")
	})
}

func TestQuery(t *testing.T) {
	conn := &rwConn{replay: strings.NewReader("CONFIG OK\r\nignored\r\n")}
	p := New("rw", conn)

	got, err := p.Query("CONFIG?")
	require.NoError(t, err)
	assert.Equal(t, "CONFIG OK", got)
	assert.Equal(t, "CONFIG?\r\n", conn.out.String())

	_, err = newTestPrinter(&memConn{}).Query("CONFIG?")
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestOpen_NoPort(t *testing.T) {
	_, err := Open(SerialConfig{})
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestOpen_MissingDevice(t *testing.T) {
	_, err := Open(DefaultSerialConfig("/dev/printlabel-does-not-exist"))
	assert.Error(t, err)
}
