// Package qr turns a payload into a monochrome QR bitmap. Symbol encoding is
// delegated to github.com/skip2/go-qrcode; this package only controls the
// error-correction level, minimum version, module size and quiet zone.
package qr

import (
	"errors"
	"fmt"
	"image"

	"github.com/ketutoka/printlabel/internal/mono"
	qrcode "github.com/skip2/go-qrcode"
)

// Level is the error-correction level.
type Level int

const (
	LevelLow Level = iota
	LevelMedium
	LevelQuartile
	LevelHigh
)

func (l Level) String() string {
	switch l {
	case LevelLow:
		return "L"
	case LevelQuartile:
		return "Q"
	case LevelHigh:
		return "H"
	default:
		return "M"
	}
}

// ParseLevel parses "L", "M", "Q" or "H". Anything else is Medium.
func ParseLevel(s string) Level {
	switch s {
	case "L", "l":
		return LevelLow
	case "Q", "q":
		return LevelQuartile
	case "H", "h":
		return LevelHigh
	default:
		return LevelMedium
	}
}

// MaxVersion is the largest QR symbol version.
const MaxVersion = 40

var (
	// ErrEmptyPayload is returned for blank payloads.
	ErrEmptyPayload = errors.New("qr: empty payload")
	// ErrCapacity is returned when the payload does not fit any symbol
	// version at the requested level.
	ErrCapacity = errors.New("qr: payload exceeds symbol capacity")
)

// EncodeError describes a failed encode.
type EncodeError struct {
	Payload string
	Level   Level
	Err     error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %d-byte payload at level %s: %v", len(e.Payload), e.Level, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// Options controls the bitmap geometry.
type Options struct {
	Level Level
	// ModuleSize is the edge length of one module in pixels.
	ModuleSize int
	// Border is the quiet zone width in modules.
	Border int
	// MinVersion forces at least this symbol version; 0 lets the encoder
	// pick the smallest version that fits.
	MinVersion int
	// Footprint bounds the bitmap edge in pixels. When set, the module size
	// is the largest whole number of pixels that fits, capped at ModuleSize.
	// A symbol that needs less than one pixel per module is a capacity error.
	Footprint int
}

// DefaultOptions are used for shipping codes.
func DefaultOptions() Options {
	return Options{Level: LevelMedium, ModuleSize: 3, Border: 2, MinVersion: 2}
}

// Symbol is an encoded QR bitmap.
type Symbol struct {
	Image *image.Paletted
	// ModuleSize is the module edge actually drawn, in pixels.
	ModuleSize int
	// Version is the symbol version actually used.
	Version int
	// Modules is the number of modules per side, excluding the quiet zone.
	Modules int
}

// Encoder produces QR bitmaps.
type Encoder interface {
	Encode(payload string, opts Options) (*Symbol, error)
}

// SkipEncoder is the go-qrcode backed Encoder.
type SkipEncoder struct{}

// NewEncoder returns the default encoder.
func NewEncoder() Encoder { return SkipEncoder{} }

// Encode implements Encoder.
func (SkipEncoder) Encode(payload string, opts Options) (*Symbol, error) {
	if payload == "" {
		return nil, &EncodeError{Payload: payload, Level: opts.Level, Err: ErrEmptyPayload}
	}
	if opts.Border < 0 {
		opts.Border = 0
	}

	level := recoveryLevel(opts.Level)
	code, err := qrcode.New(payload, level)
	if err != nil {
		return nil, &EncodeError{Payload: payload, Level: opts.Level, Err: fmt.Errorf("%w: %v", ErrCapacity, err)}
	}
	if opts.MinVersion > code.VersionNumber && opts.MinVersion <= MaxVersion {
		forced, err := qrcode.NewWithForcedVersion(payload, opts.MinVersion, level)
		if err != nil {
			return nil, &EncodeError{Payload: payload, Level: opts.Level, Err: fmt.Errorf("%w: %v", ErrCapacity, err)}
		}
		code = forced
	}

	code.DisableBorder = true
	bits := code.Bitmap()

	size := opts.ModuleSize
	if opts.Footprint > 0 {
		span := len(bits) + 2*opts.Border
		fit := opts.Footprint / span
		if fit < 1 {
			return nil, &EncodeError{Payload: payload, Level: opts.Level,
				Err: fmt.Errorf("%w: version %d needs %d dots, footprint is %d", ErrCapacity, code.VersionNumber, span, opts.Footprint)}
		}
		if size < 1 || fit < size {
			size = fit
		}
	}
	if size < 1 {
		size = 1
	}

	return &Symbol{
		Image:      render(bits, size, opts.Border),
		ModuleSize: size,
		Version:    code.VersionNumber,
		Modules:    len(bits),
	}, nil
}

// render draws the module matrix with a quiet zone.
func render(bits [][]bool, moduleSize, border int) *image.Paletted {
	side := (len(bits) + 2*border) * moduleSize
	img := mono.NewCanvas(side, side)
	offset := border * moduleSize
	for y, row := range bits {
		for x, dark := range row {
			if !dark {
				continue
			}
			x0 := offset + x*moduleSize
			y0 := offset + y*moduleSize
			mono.FillRect(img, image.Rect(x0, y0, x0+moduleSize, y0+moduleSize))
		}
	}
	return img
}

func recoveryLevel(l Level) qrcode.RecoveryLevel {
	switch l {
	case LevelLow:
		return qrcode.Low
	case LevelQuartile:
		return qrcode.High
	case LevelHigh:
		return qrcode.Highest
	default:
		return qrcode.Medium
	}
}
