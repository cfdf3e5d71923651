// Package sink writes rendered label bitmaps to disk.
package sink

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/ketutoka/printlabel/internal/layout"
	"github.com/ketutoka/printlabel/internal/mono"
	"github.com/ketutoka/printlabel/internal/tspl"
	"golang.org/x/image/bmp"
)

// Format is an output encoding.
type Format string

const (
	FormatPNG  Format = "png"
	FormatBMP  Format = "bmp"
	FormatPDF  Format = "pdf"
	FormatTSPL Format = "tspl"
)

// Formats lists every supported format.
var Formats = []Format{FormatPNG, FormatBMP, FormatPDF, FormatTSPL}

// ErrUnsupportedFormat is returned for unknown format names.
var ErrUnsupportedFormat = errors.New("unsupported output format")

// ParseFormat parses a format name. The empty string selects PNG.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatPNG, nil
	case FormatPNG, FormatBMP, FormatPDF, FormatTSPL:
		return f, nil
	case "prn":
		return FormatTSPL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// Ext is the file extension without the dot.
func (f Format) Ext() string {
	if f == FormatTSPL {
		return "prn"
	}
	return string(f)
}

// ContentType is the MIME type of the encoded file.
func (f Format) ContentType() string {
	switch f {
	case FormatBMP:
		return "image/bmp"
	case FormatPDF:
		return "application/pdf"
	case FormatTSPL:
		return "application/octet-stream"
	default:
		return "image/png"
	}
}

const (
	// DefaultPrefix starts every file name.
	DefaultPrefix = "shipping_label"
	// Placeholder stands in for a missing shipping code.
	Placeholder = "nocode"
)

// Meta identifies a rendered label.
type Meta struct {
	Profile    string
	Identifier string
	Code       string
}

// WriteError wraps a filesystem failure.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string { return fmt.Sprintf("write label %s: %v", e.Path, e.Err) }

func (e *WriteError) Unwrap() error { return e.Err }

// Sink writes labels into one directory.
type Sink struct {
	dir    string
	prefix string
	format Format
	job    tspl.JobOptions
	logger *slog.Logger
}

// Option configures a Sink.
type Option func(*Sink)

// WithPrefix overrides DefaultPrefix.
func WithPrefix(prefix string) Option {
	return func(s *Sink) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

// WithFormat sets the default format.
func WithFormat(f Format) Option {
	return func(s *Sink) { s.format = f }
}

// WithJobOptions sets the TSPL job parameters used for the tspl format. The
// paper width is taken from the label's profile.
func WithJobOptions(o tspl.JobOptions) Option {
	return func(s *Sink) { s.job = o }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) { s.logger = l }
}

// New returns a sink writing into dir.
func New(dir string, opts ...Option) *Sink {
	s := &Sink{
		dir:    dir,
		prefix: DefaultPrefix,
		format: FormatPNG,
		job:    tspl.DefaultJobOptions(),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Dir returns the output directory.
func (s *Sink) Dir() string { return s.dir }

// DefaultFormat returns the format used when Save is called with "".
func (s *Sink) DefaultFormat() Format { return s.format }

// FileName derives the deterministic file name of a label. Parts are joined
// with '_' and escaped so that distinct metadata never shares a name.
func FileName(prefix string, meta Meta, f Format) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	parts := []string{prefix}
	if meta.Profile != "" {
		parts = append(parts, escapePart(meta.Profile))
	}
	parts = append(parts, escapePart(meta.Identifier))
	code := Placeholder
	if strings.TrimSpace(meta.Code) != "" {
		code = escapePart(meta.Code)
		if code == Placeholder {
			code = escapeByte(code[0]) + code[1:]
		}
	}
	parts = append(parts, code)
	return strings.Join(parts, "_") + "." + f.Ext()
}

// Save encodes img and writes it to the output directory, creating the
// directory when needed. An empty format selects the sink default. The
// write is not atomic.
func (s *Sink) Save(img image.Image, meta Meta, format Format) (string, error) {
	if format == "" {
		format = s.format
	}
	format, err := ParseFormat(string(format))
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", &WriteError{Path: s.dir, Err: err}
	}
	path := filepath.Join(s.dir, FileName(s.prefix, meta, format))

	if format == FormatPDF {
		err = writePDF(img, path)
	} else {
		err = s.writeFile(img, meta, format, path)
	}
	if err != nil {
		return "", err
	}

	s.logger.Debug("label written", "path", path, "format", string(format))
	return path, nil
}

func (s *Sink) writeFile(img image.Image, meta Meta, format Format, path string) error {
	f, err := os.Create(path) //nolint:gosec // G304: path is built from escaped components
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}

	job := s.job
	job.PaperWidth = layout.LookupProfile(meta.Profile).PaperWidth
	if err := Encode(f, img, format, job); err != nil {
		_ = f.Close()
		return &WriteError{Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// Encode writes img to w. PDF needs a file and is not supported here.
func Encode(w io.Writer, img image.Image, format Format, job tspl.JobOptions) error {
	switch format {
	case FormatPNG, "":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		return enc.Encode(w, mono.FromImage(img))
	case FormatBMP:
		return bmp.Encode(w, mono.FromImage(img))
	case FormatTSPL:
		_, err := w.Write(tspl.BuildJob(img, job))
		return err
	default:
		return fmt.Errorf("%w: %q cannot be streamed", ErrUnsupportedFormat, format)
	}
}

// EncodePNG returns the PNG encoding of img.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, img, FormatPNG, tspl.JobOptions{}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// escapePart keeps [A-Za-z0-9-] and writes every other byte as '.' plus two
// hex digits. The output never holds '_', '/' or "..".
func escapePart(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-':
			b.WriteByte(c)
		default:
			b.WriteString(escapeByte(c))
		}
	}
	return b.String()
}

func escapeByte(c byte) string { return fmt.Sprintf(".%02x", c) }
