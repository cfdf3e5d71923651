package sink

import (
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
)

var pdfcpuOnce sync.Once

// writePDF wraps the label in a single-page PDF. pdfcpu imports images from
// files, so the bitmap goes through a temporary PNG first.
func writePDF(img image.Image, path string) error {
	pdfcpuOnce.Do(api.DisableConfigDir)

	tmpDir, err := os.MkdirTemp("", "printlabel-pdf-*")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	pngPath := filepath.Join(tmpDir, "label.png")
	data, err := EncodePNG(img)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := os.WriteFile(pngPath, data, 0o600); err != nil {
		return &WriteError{Path: path, Err: err}
	}

	// ImportImagesFile appends to an existing PDF; each render starts fresh.
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &WriteError{Path: path, Err: err}
	}
	if err := api.ImportImagesFile([]string{pngPath}, path, nil, nil); err != nil {
		return &WriteError{Path: path, Err: fmt.Errorf("pdf import: %w", err)}
	}
	return nil
}
