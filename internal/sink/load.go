package sink

import (
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // decoders for Load
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/ketutoka/printlabel/internal/mono"
	"github.com/ketutoka/printlabel/internal/tspl"
	_ "golang.org/x/image/bmp"
)

// LoadableExtensions lists the extensions Load understands.
var LoadableExtensions = []string{".png", ".bmp", ".jpg", ".jpeg", ".prn"}

// IsLoadable reports whether Load can read path.
func IsLoadable(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range LoadableExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// LoadError describes a failed Load.
type LoadError struct {
	Path string
	Op   string
	Err  error
}

func (e *LoadError) Error() string { return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err) }

func (e *LoadError) Unwrap() error { return e.Err }

// Load reads a label back from disk. Raster files are decoded with the
// registered image decoders; .prn files are parsed as TSPL jobs.
func Load(path string) (image.Image, error) {
	if path == "" {
		return nil, &LoadError{Path: path, Op: "load", Err: errors.New("empty path")}
	}
	if !IsLoadable(path) {
		return nil, &LoadError{Path: path, Op: "load", Err: fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))}
	}

	if strings.EqualFold(filepath.Ext(path), ".prn") {
		return loadJob(path)
	}

	f, err := os.Open(path) //nolint:gosec // G304: reading a user-provided label path is expected
	if err != nil {
		return nil, &LoadError{Path: path, Op: "load", Err: err}
	}
	defer func() { _ = f.Close() }()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, &LoadError{Path: path, Op: "decode", Err: err}
	}
	return img, nil
}

func loadJob(path string) (image.Image, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: reading a user-provided job path is expected
	if err != nil {
		return nil, &LoadError{Path: path, Op: "load", Err: err}
	}
	h, payload, err := tspl.ParseBitmap(data)
	if err != nil {
		return nil, &LoadError{Path: path, Op: "decode", Err: err}
	}
	return mono.Unpack(payload, h.WidthBytes*8, h.Height, true), nil
}
