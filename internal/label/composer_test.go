package label

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ketutoka/printlabel/internal/barcode"
	"github.com/ketutoka/printlabel/internal/fonts"
	"github.com/ketutoka/printlabel/internal/layout"
	"github.com/ketutoka/printlabel/internal/mono"
	"github.com/ketutoka/printlabel/internal/qr"
	"github.com/ketutoka/printlabel/internal/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestComposer uses the embedded Go fonts only, so output does not depend
// on the fonts installed on the machine.
func newTestComposer(t *testing.T, dir string) *Composer {
	t.Helper()
	c := NewComposer(Options{
		Loader: fonts.NewLoader([]string{}, []string{}),
		Sink:   sink.New(dir),
	})
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestCompose_NarrowWithCode(t *testing.T) {
	dir := t.TempDir()
	c := newTestComposer(t, dir)
	req := Request{
		SenderName:   "Budi Santoso",
		SenderPhone:  "0811111111",
		ShippingCode: "ABC123",
		PaperProfile: "narrow",
	}

	got, err := c.Compose(context.Background(), req)
	require.NoError(t, err)

	require.FileExists(t, got.FilePath)
	assert.Equal(t, dir, filepath.Dir(got.FilePath))
	assert.True(t, strings.HasPrefix(filepath.Base(got.FilePath), "shipping_label_narrow_"))
	assert.True(t, strings.HasSuffix(got.FilePath, "_ABC123.png"))
	assert.Equal(t, layout.Narrow.CanvasWidth, got.Width)
	assert.LessOrEqual(t, got.Height, layout.Narrow.MaxHeight)
	assert.Equal(t, "png", got.Format)

	img, err := sink.Load(got.FilePath)
	require.NoError(t, err)
	assert.Equal(t, got.Width, img.Bounds().Dx())
	assert.Equal(t, got.Height, img.Bounds().Dy())

	r, err := c.Layout(req)
	require.NoError(t, err)
	require.False(t, r.QR.Empty())
	assert.Equal(t, layout.Narrow.QRFootprint, r.QR.Dx())
	assert.Equal(t, layout.Narrow.SideMargin, r.QR.Min.X)

	res, err := barcode.NewDecoder().Decode(context.Background(), img, barcode.Options{ROI: r.QR, TryHarder: true})
	require.NoError(t, err)
	assert.Equal(t, "ABC123", res.Value)
}

func TestCompose_WideSenderOnly(t *testing.T) {
	c := newTestComposer(t, t.TempDir())
	req := Request{SenderName: "A", SenderPhone: "1", PaperProfile: "wide"}

	got, err := c.Compose(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, layout.Wide.CanvasWidth, got.Width)
	assert.True(t, strings.HasSuffix(got.FilePath, "_nocode.png"))

	r, err := c.Layout(req)
	require.NoError(t, err)
	assert.True(t, r.QR.Empty())
	assert.Zero(t, r.QRVersion)

	texts := lineTexts(r.Lines)
	assert.Equal(t, []string{HeadingSender, "A", PhonePrefix + "1"}, texts)

	// Sender-only height: three lines, the separator and both margins.
	fs := fonts.NewLoader([]string{}, []string{}).Load(layout.Wide.FontSizes)
	want := layout.Wide.TopMargin +
		fs.LineHeight(layout.TierHeading) +
		fs.LineHeight(layout.TierLarge) +
		fs.LineHeight(layout.TierSmall) +
		gapBeforeRule + 2 + gapAfterRule +
		layout.Wide.BottomMargin
	assert.Equal(t, want, got.Height)
}

func TestLayout_RecipientAddsHeight(t *testing.T) {
	c := newTestComposer(t, t.TempDir())
	base := Request{SenderName: "Budi Santoso", SenderPhone: "0811111111", ShippingCode: "ABC123"}

	without, err := c.Render(base)
	require.NoError(t, err)

	with := base
	with.RecipientName = "Siti Aminah"
	with.RecipientAddress = "Jl. Merdeka No. 10, Bandung, Jawa Barat 40111"
	with.RecipientPhone = "0822222222"
	withImg, err := c.Render(with)
	require.NoError(t, err)

	assert.Less(t, without.Bounds().Dy(), withImg.Bounds().Dy())
}

func TestLayout_SectionOrder(t *testing.T) {
	c := newTestComposer(t, t.TempDir())
	r, err := c.Layout(Request{
		SenderName:       "Budi Santoso",
		SenderPhone:      "0811111111",
		RecipientName:    "Siti Aminah",
		RecipientAddress: "Jl. Merdeka No. 10 Bandung",
		RecipientPhone:   "0822222222",
		ShippingCode:     "JNE-1234567890",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		HeadingRecipient,
		"Siti Aminah",
		HeadingAddress,
		"Jl. Merdeka No. 10",
		"Bandung",
		PhonePrefix + "0822222222",
		HeadingSender,
		"Budi Santoso",
		PhonePrefix + "0811111111",
		HeadingShipping,
		"JNE-1234567890",
	}, lineTexts(r.Lines))

	prev := -1
	for _, l := range r.Lines {
		assert.Greater(t, l.Y, prev, "line %q overlaps the previous one", l.Text)
		prev = l.Y
	}

	// Code lines sit below the symbol.
	last := r.Lines[len(r.Lines)-1]
	assert.GreaterOrEqual(t, last.Y, r.QR.Max.Y)
	assert.Equal(t, layout.AlignLeft, last.Align)
	assert.Equal(t, layout.Narrow.SideMargin, last.X)
}

func TestLayout_OptionalRecipientFields(t *testing.T) {
	c := newTestComposer(t, t.TempDir())
	r, err := c.Layout(Request{SenderName: "B", SenderPhone: "2", RecipientName: "R"})
	require.NoError(t, err)
	assert.Equal(t, []string{HeadingRecipient, "R", HeadingSender, "B", PhonePrefix + "2"}, lineTexts(r.Lines))
}

func TestLayout_LongNameSplits(t *testing.T) {
	c := newTestComposer(t, t.TempDir())
	r, err := c.Layout(Request{SenderName: "Muhammad Rizky Pratama Wijaya", SenderPhone: "1"})
	require.NoError(t, err)
	assert.Equal(t, []string{HeadingSender, "Muhammad Rizky", "Pratama Wijaya", PhonePrefix + "1"}, lineTexts(r.Lines))
}

func TestLayout_CenteredLinesStayOnCanvas(t *testing.T) {
	c := newTestComposer(t, t.TempDir())
	for _, p := range layout.Profiles() {
		r, err := c.Layout(Request{
			SenderName:    "Budi Santoso",
			SenderPhone:   "0811111111",
			RecipientName: "Siti",
			PaperProfile:  p.Name,
		})
		require.NoError(t, err)
		for _, l := range r.Lines {
			assert.GreaterOrEqual(t, l.X, p.SideMargin, "%s: %q", p.Name, l.Text)
			assert.Less(t, l.X, p.CanvasWidth/2, "%s: %q", p.Name, l.Text)
		}
	}
}

func TestLayout_HeightCapped(t *testing.T) {
	var logs bytes.Buffer
	c := NewComposer(Options{
		Loader: fonts.NewLoader([]string{}, []string{}),
		Logger: slog.New(slog.NewTextHandler(&logs, nil)),
	})
	t.Cleanup(func() { _ = c.Close() })

	r, err := c.Layout(Request{
		SenderName:       "Budi Santoso",
		SenderPhone:      "0811111111",
		RecipientName:    "Siti Aminah",
		RecipientAddress: strings.Repeat("Jalan Panjang Sekali ", 40),
		RecipientPhone:   "0822222222",
		ShippingCode:     "ABC123",
	})
	require.NoError(t, err)
	assert.Equal(t, layout.Narrow.MaxHeight, r.Image.Bounds().Dy())
	assert.Equal(t, layout.Narrow.CanvasWidth, r.Image.Bounds().Dx())
	assert.True(t, r.Clipped)
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Contains(t, logs.String(), "exceeds max height")
}

func TestLayout_NotClipped(t *testing.T) {
	c := newTestComposer(t, t.TempDir())
	r, err := c.Layout(Request{SenderName: "Budi", SenderPhone: "0811", ShippingCode: "ABC123"})
	require.NoError(t, err)
	assert.False(t, r.Clipped)
}

// Codes of growing length step through QR versions; every pasted symbol
// must keep whole-dot modules and decode.
func TestLayout_QRDecodesAcrossVersions(t *testing.T) {
	c := newTestComposer(t, t.TempDir())
	dec := barcode.NewDecoder()

	for _, p := range layout.Profiles() {
		for _, n := range []int{20, 60, 120, 170, 200, 300} {
			code := strings.Repeat("AB12-", n/5)
			t.Run(fmt.Sprintf("%s/%d", p.Name, n), func(t *testing.T) {
				r, err := c.Layout(Request{
					SenderName:   "Budi",
					SenderPhone:  "0811",
					ShippingCode: code,
					PaperProfile: p.Name,
				})
				require.NoError(t, err)
				require.False(t, r.QR.Empty())

				span := 17 + 4*r.QRVersion + 2*p.QRBorder
				assert.LessOrEqual(t, r.QR.Dx(), p.QRFootprint)
				assert.Zero(t, r.QR.Dx()%span, "module size must be a whole number of dots")
				assert.Equal(t, r.QR.Dx(), r.QR.Dy())

				res, err := dec.Decode(context.Background(), r.Image, barcode.Options{ROI: r.QR, TryHarder: true})
				require.NoError(t, err, "version %d", r.QRVersion)
				assert.Equal(t, code, res.Value)
			})
		}
	}
}

func TestLayout_QRTooLargeForFootprint(t *testing.T) {
	c := newTestComposer(t, t.TempDir())
	req := Request{
		SenderName:   "Budi",
		SenderPhone:  "0811",
		ShippingCode: strings.Repeat("AB12-", 200),
		PaperProfile: "narrow",
	}

	_, err := c.Layout(req)
	require.Error(t, err)
	assert.ErrorIs(t, err, qr.ErrCapacity)

	// The wide footprint still holds the same symbol at one dot per module.
	req.PaperProfile = "wide"
	r, err := c.Layout(req)
	require.NoError(t, err)
	assert.LessOrEqual(t, r.QR.Dx(), layout.Wide.QRFootprint)
}

func TestRender_IsOneBit(t *testing.T) {
	c := newTestComposer(t, t.TempDir())
	img, err := c.Render(Request{SenderName: "Budi", SenderPhone: "1", ShippingCode: "X1"})
	require.NoError(t, err)

	require.Len(t, img.Palette, 2)
	for _, px := range img.Pix {
		require.LessOrEqual(t, px, mono.Black)
	}
	assert.Positive(t, mono.InkRows(img))
}

func TestCompose_Deterministic(t *testing.T) {
	req := Request{
		ID:               "same",
		SenderName:       "Budi Santoso",
		SenderPhone:      "0811111111",
		RecipientName:    "Siti Aminah",
		RecipientAddress: "Jl. Merdeka No. 10",
		ShippingCode:     "ABC123",
	}

	var outputs [][]byte
	for i := 0; i < 2; i++ {
		c := newTestComposer(t, t.TempDir())
		got, err := c.Compose(context.Background(), req)
		require.NoError(t, err)
		data, err := os.ReadFile(got.FilePath)
		require.NoError(t, err)
		outputs = append(outputs, data)
	}
	assert.True(t, bytes.Equal(outputs[0], outputs[1]))
}

func TestCompose_NFCNormalisation(t *testing.T) {
	c := newTestComposer(t, t.TempDir())
	composed, err := c.Render(Request{SenderName: "Jos\u00e9", SenderPhone: "1"})
	require.NoError(t, err)
	decomposed, err := c.Render(Request{SenderName: "Jose\u0301", SenderPhone: "1"})
	require.NoError(t, err)
	assert.Equal(t, composed.Pix, decomposed.Pix)
}

func TestCompose_Validation(t *testing.T) {
	c := newTestComposer(t, t.TempDir())
	tests := []struct {
		name  string
		req   Request
		field string
	}{
		{name: "blank sender name", req: Request{SenderName: "  ", SenderPhone: "1"}, field: "sender_name"},
		{name: "blank sender phone", req: Request{SenderName: "A"}, field: "sender_phone"},
		{name: "bad format", req: Request{SenderName: "A", SenderPhone: "1", Format: "gif"}, field: "format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compose(context.Background(), tt.req)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidRequest)

			var ve *ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}
}

func TestCompose_QRCapacity(t *testing.T) {
	c := newTestComposer(t, t.TempDir())
	_, err := c.Compose(context.Background(), Request{
		SenderName:   "A",
		SenderPhone:  "1",
		ShippingCode: strings.Repeat("z", 4000),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, qr.ErrCapacity)

	var ee *qr.EncodeError
	assert.True(t, errors.As(err, &ee))
}

func TestCompose_Formats(t *testing.T) {
	c := newTestComposer(t, t.TempDir())
	for _, f := range []string{"bmp", "pdf", "tspl"} {
		got, err := c.Compose(context.Background(), Request{ID: f, SenderName: "A", SenderPhone: "1", Format: f})
		require.NoError(t, err, f)
		assert.FileExists(t, got.FilePath)
		format, _ := sink.ParseFormat(f)
		assert.Equal(t, "."+format.Ext(), filepath.Ext(got.FilePath))
	}
}

func TestCompose_Errors(t *testing.T) {
	t.Run("no sink", func(t *testing.T) {
		c := NewComposer(Options{Loader: fonts.NewLoader([]string{}, []string{})})
		_, err := c.Compose(context.Background(), Request{SenderName: "A", SenderPhone: "1"})
		assert.ErrorIs(t, err, ErrNoSink)
	})

	t.Run("cancelled", func(t *testing.T) {
		c := newTestComposer(t, t.TempDir())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.Compose(ctx, Request{SenderName: "A", SenderPhone: "1"})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("sink failure", func(t *testing.T) {
		c := NewComposer(Options{Loader: fonts.NewLoader([]string{}, []string{}), Sink: failingSaver{}})
		_, err := c.Compose(context.Background(), Request{SenderName: "A", SenderPhone: "1"})
		assert.ErrorIs(t, err, errDiskFull)
	})
}

func TestComposer_InjectedFonts(t *testing.T) {
	basic := fonts.BasicFontSet()
	c := NewComposer(Options{Fonts: map[string]*fonts.FontSet{layout.ProfileNarrow: basic}})

	r, err := c.Layout(Request{SenderName: "A", SenderPhone: "1"})
	require.NoError(t, err)
	want := layout.Narrow.TopMargin +
		basic.LineHeight(layout.TierHeading) +
		basic.LineHeight(layout.TierLarge) +
		basic.LineHeight(layout.TierSmall) +
		gapBeforeRule + 2 + gapAfterRule +
		layout.Narrow.BottomMargin
	assert.Equal(t, want, r.Image.Bounds().Dy())
}

var errDiskFull = errors.New("disk full")

type failingSaver struct{}

func (failingSaver) Save(image.Image, sink.Meta, sink.Format) (string, error) {
	return "", errDiskFull
}

func lineTexts(lines []layout.Line) []string {
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = l.Text
	}
	return out
}
