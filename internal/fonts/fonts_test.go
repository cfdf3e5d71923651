package fonts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ketutoka/printlabel/internal/layout"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
)

func TestLoader_FallsBackToGoFont(t *testing.T) {
	l := NewLoader([]string{"definitely-missing.ttf", "/nope/arial.ttf"}, []string{t.TempDir()})
	fs := l.Load(layout.Narrow.FontSizes)
	defer func() { _ = fs.Close() }()

	assert.Equal(t, SourceGoFont, fs.Source())
	assert.NotNil(t, fs.Large)
	assert.NotNil(t, fs.Heading)
}

func TestLoader_PrefersConfiguredFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "label.ttf"), goregular.TTF, 0o600))

	l := NewLoader([]string{"missing.ttf", "label.ttf"}, []string{dir})
	fs := l.Load(layout.Narrow.FontSizes)
	defer func() { _ = fs.Close() }()

	assert.Equal(t, "label.ttf", fs.Source())
}

func TestLoader_AbsolutePath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "abs.ttf")
	require.NoError(t, os.WriteFile(path, goregular.TTF, 0o600))

	fs := NewLoader([]string{path}, []string{}).Load(layout.Wide.FontSizes)
	defer func() { _ = fs.Close() }()

	assert.Equal(t, path, fs.Source())
}

func TestLoader_SkipsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.ttf"), []byte("not a font"), 0o600))

	fs := NewLoader([]string{"broken.ttf"}, []string{dir}).Load(layout.Narrow.FontSizes)
	defer func() { _ = fs.Close() }()

	assert.Equal(t, SourceGoFont, fs.Source())
}

func TestLoader_SkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "arial.ttf"), 0o755))

	l := NewLoader([]string{"arial.ttf"}, []string{dir})
	_, err := l.resolve("arial.ttf")
	assert.ErrorIs(t, err, ErrNoFont)
}

func TestBasicFontSet(t *testing.T) {
	fs := BasicFontSet()
	assert.Equal(t, SourceBasic, fs.Source())
	assert.Same(t, basicfont.Face7x13, fs.Face(layout.TierLarge))
	assert.Equal(t, 15, fs.LineHeight(layout.TierSmall))
	assert.Equal(t, 17, fs.LineHeight(layout.TierLarge))
	assert.NoError(t, fs.Close())
}

func TestFontSet_TierOrdering(t *testing.T) {
	fs := NewLoader([]string{}, []string{}).Load(layout.Narrow.FontSizes)
	defer func() { _ = fs.Close() }()

	small := Measure("NO HP: 0811111111", fs.Small)
	large := Measure("NO HP: 0811111111", fs.Large)
	assert.Greater(t, large, small)

	assert.Greater(t, fs.LineHeight(layout.TierLarge), fs.LineHeight(layout.TierSmall))
	assert.Positive(t, fs.Ascent(layout.TierMedium))
}

func TestMeasure(t *testing.T) {
	fs := NewLoader([]string{}, []string{}).Load(layout.Narrow.FontSizes)
	defer func() { _ = fs.Close() }()

	tests := []struct {
		name string
		text string
	}{
		{name: "single char", text: "A"},
		{name: "word", text: "Budi"},
		{name: "sentence", text: "Budi Santoso"},
	}

	prev := 0
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := Measure(tt.text, fs.Medium)
			assert.Greater(t, w, prev)
			prev = w
		})
	}

	assert.Equal(t, 0, Measure("", fs.Medium))
	assert.Equal(t, 7*5, Measure("hello", basicfont.Face7x13))
}
