// Package tspl builds TSPL/TSPL2 print jobs for thermal label printers.
package tspl

import (
	"bytes"
	"fmt"
	"image"
	"math"

	"github.com/ketutoka/printlabel/internal/mono"
)

// DotsPerMM is the resolution of 203 dpi print heads.
const DotsPerMM = 8

// BitmapMode selects how BITMAP data is merged into the image buffer.
type BitmapMode int

const (
	ModeOverwrite BitmapMode = 0
	ModeOR        BitmapMode = 1
	ModeXOR       BitmapMode = 2
)

// Command accumulates TSPL commands.
type Command struct {
	buf bytes.Buffer
}

// New returns an empty command buffer.
func New() *Command {
	return &Command{}
}

// Size sets the label dimensions in millimetres.
func (c *Command) Size(width, height float64) *Command {
	fmt.Fprintf(&c.buf, "SIZE %.1f mm,%.1f mm\r\n", width, height)
	return c
}

// Gap sets the gap between labels. Continuous receipt paper uses 0,0.
func (c *Command) Gap(gap, offset float64) *Command {
	fmt.Fprintf(&c.buf, "GAP %.1f mm,%.1f mm\r\n", gap, offset)
	return c
}

// Direction sets the print direction (0 or 1) and mirroring.
func (c *Command) Direction(dir, mirror int) *Command {
	fmt.Fprintf(&c.buf, "DIRECTION %d,%d\r\n", dir, mirror)
	return c
}

// Density sets print darkness, clamped to 0-15.
func (c *Command) Density(level int) *Command {
	level = min(max(level, 0), 15)
	fmt.Fprintf(&c.buf, "DENSITY %d\r\n", level)
	return c
}

// CLS clears the image buffer.
func (c *Command) CLS() *Command {
	c.buf.WriteString("CLS\r\n")
	return c
}

// Bitmap places raw 1-bit data at (x, y). widthBytes is the row stride.
func (c *Command) Bitmap(x, y, widthBytes, height int, mode BitmapMode, data []byte) *Command {
	fmt.Fprintf(&c.buf, "BITMAP %d,%d,%d,%d,%d,", x, y, widthBytes, height, mode)
	c.buf.Write(data)
	c.buf.WriteString("\r\n")
	return c
}

// Print prints the buffer n times.
func (c *Command) Print(copies int) *Command {
	fmt.Fprintf(&c.buf, "PRINT %d\r\n", max(copies, 1))
	return c
}

// Bytes returns the raw job.
func (c *Command) Bytes() []byte {
	return c.buf.Bytes()
}

// String returns the job as text, for debugging.
func (c *Command) String() string {
	return c.buf.String()
}

// JobOptions configures BuildJob.
type JobOptions struct {
	// PaperWidth is the roll width in millimetres.
	PaperWidth float64
	GapMM      float64
	Density    int
	Copies     int
	// XOffset shifts the bitmap right, in dots.
	XOffset int
}

// DefaultJobOptions returns options for continuous 58mm paper.
func DefaultJobOptions() JobOptions {
	return JobOptions{PaperWidth: 58, Density: 8, Copies: 1}
}

// HeightMM converts a height in dots to whole millimetres, rounding up.
func HeightMM(dots int) float64 {
	return math.Ceil(float64(dots) / DotsPerMM)
}

// BuildJob converts a label bitmap into a complete print job. Ink is sent as
// 0 bits, matching the TSPL convention that a set bit leaves paper blank.
func BuildJob(img image.Image, opts JobOptions) []byte {
	data, widthBytes := mono.Pack(img, true)
	height := img.Bounds().Dy()

	return New().
		Size(opts.PaperWidth, HeightMM(height)).
		Gap(opts.GapMM, 0).
		Direction(0, 0).
		Density(opts.Density).
		CLS().
		Bitmap(opts.XOffset, 0, widthBytes, height, ModeOverwrite, data).
		Print(opts.Copies).
		Bytes()
}

// Header is the parsed BITMAP header of a job.
type Header struct {
	X, Y       int
	WidthBytes int
	Height     int
	Mode       BitmapMode
}

// ParseBitmap extracts the first BITMAP command of a job. It is the inverse
// of Bitmap and is used to preview jobs written with --dry-run.
func ParseBitmap(job []byte) (Header, []byte, error) {
	idx := bytes.Index(job, []byte("BITMAP "))
	if idx < 0 {
		return Header{}, nil, fmt.Errorf("tspl: no BITMAP command")
	}
	rest := job[idx+len("BITMAP "):]

	var h Header
	var mode int
	n, err := fmt.Sscanf(string(rest[:min(len(rest), 64)]), "%d,%d,%d,%d,%d,", &h.X, &h.Y, &h.WidthBytes, &h.Height, &mode)
	if err != nil || n != 5 {
		return Header{}, nil, fmt.Errorf("tspl: malformed BITMAP header: %w", err)
	}
	h.Mode = BitmapMode(mode)

	// Skip past the fifth comma to the payload.
	commas := 0
	start := -1
	for i, b := range rest {
		if b == ',' {
			commas++
			if commas == 5 {
				start = i + 1
				break
			}
		}
	}
	size := h.WidthBytes * h.Height
	if start < 0 || start+size > len(rest) {
		return Header{}, nil, fmt.Errorf("tspl: truncated BITMAP payload")
	}
	return h, rest[start : start+size], nil
}
