// Package fonts resolves the font faces used to draw labels and measures
// rendered text.
//
// Faces are loaded from an ordered candidate list: configured TrueType files
// first, then the embedded Go fonts, and finally the fixed 7x13 bitmap face
// which cannot fail. The first candidate that parses wins.
package fonts

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang/freetype/truetype"
	"github.com/ketutoka/printlabel/internal/layout"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
)

// Source names reported by FontSet.Source for the built-in fallbacks.
const (
	SourceGoFont = "gofont"
	SourceBasic  = "basicfont"
)

// DefaultFiles are the font files tried before the built-in faces.
var DefaultFiles = []string{"arial.ttf", "calibri.ttf", "DejaVuSans.ttf"}

// DefaultDirs are searched for relative font file names.
var DefaultDirs = []string{
	".",
	"fonts",
	"/usr/share/fonts/truetype/msttcorefonts",
	"/usr/share/fonts/truetype/dejavu",
	"/usr/share/fonts/TTF",
	"/Library/Fonts",
	`C:\Windows\Fonts`,
}

// ErrNoFont is returned by a candidate that could not produce a font.
var ErrNoFont = errors.New("font not available")

// DPI is the resolution faces are rasterized at. Sizes are in points, so at
// 72 dpi one point equals one printer dot.
const DPI = 72

// FontSet holds one face per text tier. Faces keep glyph caches and are not
// safe for concurrent use.
type FontSet struct {
	Large   font.Face
	Medium  font.Face
	Small   font.Face
	Heading font.Face

	source string
}

// Source names the candidate the set was built from: a file path, "gofont"
// or "basicfont".
func (fs *FontSet) Source() string { return fs.source }

// Face returns the face for a tier.
func (fs *FontSet) Face(t layout.Tier) font.Face {
	switch t {
	case layout.TierLarge:
		return fs.Large
	case layout.TierMedium:
		return fs.Medium
	case layout.TierHeading:
		return fs.Heading
	default:
		return fs.Small
	}
}

// LineHeight is the vertical advance of one line of the tier.
func (fs *FontSet) LineHeight(t layout.Tier) int {
	leading := 4
	if t == layout.TierSmall {
		leading = 2
	}
	return fs.Face(t).Metrics().Height.Ceil() + leading
}

// Ascent is the distance from the top of a line box to its baseline.
func (fs *FontSet) Ascent(t layout.Tier) int {
	return fs.Face(t).Metrics().Ascent.Ceil()
}

// Close releases the faces.
func (fs *FontSet) Close() error {
	var errs []error
	for _, f := range []font.Face{fs.Large, fs.Medium, fs.Small, fs.Heading} {
		if f != nil {
			errs = append(errs, f.Close())
		}
	}
	return errors.Join(errs...)
}

// Measure returns the advance width of text in dots.
func Measure(text string, face font.Face) int {
	if text == "" {
		return 0
	}
	return font.MeasureString(face, text).Ceil()
}

// candidate is one entry of the fallback chain. load returns the regular
// and heading fonts; a nil heading reuses the regular font.
type candidate struct {
	name string
	load func() (regular, heading *truetype.Font, err error)
}

// Loader builds FontSets from an ordered candidate list.
type Loader struct {
	files  []string
	dirs   []string
	logger *slog.Logger
}

// NewLoader returns a loader trying files (absolute paths or names resolved
// against dirs) before the built-in faces. Nil slices select the defaults.
func NewLoader(files, dirs []string) *Loader {
	if files == nil {
		files = DefaultFiles
	}
	if dirs == nil {
		dirs = DefaultDirs
	}
	return &Loader{files: files, dirs: dirs, logger: slog.Default()}
}

// Load returns a FontSet for the given sizes. It never fails: when no
// TrueType candidate loads, every tier uses basicfont.Face7x13.
func (l *Loader) Load(sizes layout.FontSizes) *FontSet {
	for _, c := range l.candidates() {
		regular, heading, err := c.load()
		if err != nil {
			l.logger.Debug("font candidate unavailable", "font", c.name, "error", err)
			continue
		}
		if heading == nil {
			heading = regular
		}
		l.logger.Debug("font candidate loaded", "font", c.name)
		return &FontSet{
			Large:   newFace(regular, sizes.Large),
			Medium:  newFace(regular, sizes.Medium),
			Small:   newFace(regular, sizes.Small),
			Heading: newFace(heading, sizes.Medium),
			source:  c.name,
		}
	}

	l.logger.Warn("no TrueType font available, using bitmap fallback")
	return BasicFontSet()
}

// BasicFontSet returns the fixed bitmap fallback.
func BasicFontSet() *FontSet {
	return &FontSet{
		Large:   basicfont.Face7x13,
		Medium:  basicfont.Face7x13,
		Small:   basicfont.Face7x13,
		Heading: basicfont.Face7x13,
		source:  SourceBasic,
	}
}

func (l *Loader) candidates() []candidate {
	out := make([]candidate, 0, len(l.files)+1)
	for _, name := range l.files {
		out = append(out, candidate{name: name, load: l.fileLoader(name)})
	}
	out = append(out, candidate{name: SourceGoFont, load: loadGoFont})
	return out
}

func (l *Loader) fileLoader(name string) func() (*truetype.Font, *truetype.Font, error) {
	return func() (*truetype.Font, *truetype.Font, error) {
		path, err := l.resolve(name)
		if err != nil {
			return nil, nil, err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, nil, fmt.Errorf("read %s: %w", path, err)
		}
		f, err := truetype.Parse(data)
		if err != nil {
			return nil, nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return f, nil, nil
	}
}

// resolve finds a font file by absolute path or in the search directories.
func (l *Loader) resolve(name string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", fmt.Errorf("%w: %s", ErrNoFont, name)
		}
		return name, nil
	}
	for _, dir := range l.dirs {
		path := filepath.Join(dir, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s not found in %d directories", ErrNoFont, name, len(l.dirs))
}

func loadGoFont() (*truetype.Font, *truetype.Font, error) {
	regular, err := truetype.Parse(goregular.TTF)
	if err != nil {
		return nil, nil, err
	}
	bold, err := truetype.Parse(gobold.TTF)
	if err != nil {
		return regular, nil, nil
	}
	return regular, bold, nil
}

func newFace(f *truetype.Font, size float64) font.Face {
	return truetype.NewFace(f, &truetype.Options{
		Size:    size,
		DPI:     DPI,
		Hinting: font.HintingFull,
	})
}
