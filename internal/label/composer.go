package label

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/ketutoka/printlabel/internal/fonts"
	"github.com/ketutoka/printlabel/internal/layout"
	"github.com/ketutoka/printlabel/internal/mono"
	"github.com/ketutoka/printlabel/internal/qr"
	"github.com/ketutoka/printlabel/internal/sink"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// Section headings.
const (
	HeadingRecipient = "TO:"
	HeadingAddress   = "ADDRESS:"
	HeadingSender    = "FROM:"
	HeadingShipping  = "RESI PENGIRIMAN:"
	PhonePrefix      = "NO HP: "
)

// Vertical spacing in dots.
const (
	gapBeforeRule = 6
	gapAfterRule  = 8
	gapAfterQR    = 4
	gapAfterTitle = 2
)

// ErrNoSink is returned by Compose when the composer was built without a sink.
var ErrNoSink = errors.New("composer has no sink")

// Saver persists a rendered canvas. *sink.Sink implements it.
type Saver interface {
	Save(img image.Image, meta sink.Meta, format sink.Format) (string, error)
}

// RenderedLabel describes a label written by Compose.
type RenderedLabel struct {
	ID       string `json:"id"`
	FilePath string `json:"file"`
	Profile  string `json:"profile"`
	Format   string `json:"format"`
	Width    int    `json:"width"`
	Height   int    `json:"height"`
}

// Rendering is the in-memory result of laying out one request.
type Rendering struct {
	Image   *image.Paletted
	Profile layout.PaperProfile
	Lines   []layout.Line
	// QR is the pasted symbol rectangle; empty without a shipping code.
	QR        image.Rectangle
	QRVersion int
	// Clipped is set when the content ran past the profile's MaxHeight.
	Clipped bool
}

// Options configures a Composer.
type Options struct {
	// Fonts holds a prebuilt FontSet per profile name. Profiles without an
	// entry are loaded through Loader on first use.
	Fonts   map[string]*fonts.FontSet
	Loader  *fonts.Loader
	Encoder qr.Encoder
	// QRLevel is an error-correction letter; empty selects M.
	QRLevel string
	Sink    Saver
	// Format is used when the request does not name one.
	Format sink.Format
	Logger *slog.Logger
}

// Composer lays out label requests on a 1-bit canvas. Font faces keep
// internal caches, so calls are serialised; use one Composer per goroutine
// for parallel work.
type Composer struct {
	mu      sync.Mutex
	fonts   map[string]*fonts.FontSet
	loader  *fonts.Loader
	encoder qr.Encoder
	level   qr.Level
	sink    Saver
	format  sink.Format
	logger  *slog.Logger
}

// NewComposer returns a Composer. Missing options get defaults: the default
// font loader, the go-qrcode encoder, level M and PNG output.
func NewComposer(opts Options) *Composer {
	c := &Composer{
		fonts:   make(map[string]*fonts.FontSet, len(opts.Fonts)),
		loader:  opts.Loader,
		encoder: opts.Encoder,
		level:   qr.ParseLevel(opts.QRLevel),
		sink:    opts.Sink,
		format:  opts.Format,
		logger:  opts.Logger,
	}
	for name, fs := range opts.Fonts {
		c.fonts[name] = fs
	}
	if c.loader == nil {
		c.loader = fonts.NewLoader(nil, nil)
	}
	if c.encoder == nil {
		c.encoder = qr.NewEncoder()
	}
	if c.format == "" {
		c.format = sink.FormatPNG
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Compose renders req and writes it through the sink.
func (c *Composer) Compose(ctx context.Context, req Request) (*RenderedLabel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.sink == nil {
		return nil, ErrNoSink
	}
	req = req.Normalize()

	format := c.format
	if req.Format != "" {
		f, err := sink.ParseFormat(req.Format)
		if err != nil {
			return nil, &ValidationError{Field: "format", Reason: err.Error()}
		}
		format = f
	}

	start := time.Now()
	r, err := c.Layout(req)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	id := req.Identifier()
	path, err := c.sink.Save(r.Image, sink.Meta{
		Profile:    r.Profile.Name,
		Identifier: id,
		Code:       req.ShippingCode,
	}, format)
	if err != nil {
		return nil, fmt.Errorf("save label %s: %w", id, err)
	}

	b := r.Image.Bounds()
	c.logger.Info("label rendered",
		"id", id,
		"profile", r.Profile.Name,
		"path", path,
		"width", b.Dx(),
		"height", b.Dy(),
		"duration_ms", time.Since(start).Milliseconds())

	return &RenderedLabel{
		ID:       id,
		FilePath: path,
		Profile:  r.Profile.Name,
		Format:   string(format),
		Width:    b.Dx(),
		Height:   b.Dy(),
	}, nil
}

// Render lays out req without saving it.
func (c *Composer) Render(req Request) (*image.Paletted, error) {
	r, err := c.Layout(req)
	if err != nil {
		return nil, err
	}
	return r.Image, nil
}

// Layout validates req, draws every section and crops the canvas to the
// content height.
func (c *Composer) Layout(req Request) (*Rendering, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	profile, ok := layout.ResolveProfile(req.PaperProfile)
	if !ok && req.PaperProfile != "" {
		c.logger.Warn("unknown paper profile, using default",
			"profile", req.PaperProfile, "default", profile.Name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	p := &pen{
		canvas:  mono.NewCanvas(profile.CanvasWidth, profile.MaxHeight),
		fonts:   c.fontsFor(profile),
		profile: profile,
		y:       profile.TopMargin,
	}

	if req.HasRecipient() {
		p.text(HeadingRecipient, layout.TierHeading, layout.AlignCenter)
		for _, l := range layout.SplitName(req.RecipientName, profile.NameSplitChars) {
			p.text(l, layout.TierLarge, layout.AlignCenter)
		}
		if req.RecipientAddress != "" {
			p.text(HeadingAddress, layout.TierSmall, layout.AlignCenter)
			for _, l := range layout.Wrap(req.RecipientAddress, profile.MaxLineChars) {
				p.text(l, layout.TierSmall, layout.AlignCenter)
			}
		}
		if req.RecipientPhone != "" {
			p.text(PhonePrefix+req.RecipientPhone, layout.TierSmall, layout.AlignCenter)
		}
		p.separator(1)
	}

	p.text(HeadingSender, layout.TierHeading, layout.AlignCenter)
	for _, l := range layout.SplitName(req.SenderName, profile.NameSplitChars) {
		p.text(l, layout.TierLarge, layout.AlignCenter)
	}
	p.text(PhonePrefix+req.SenderPhone, layout.TierSmall, layout.AlignCenter)
	p.separator(2)

	out := &Rendering{Profile: profile}
	if req.HasShipping() {
		p.text(HeadingShipping, layout.TierHeading, layout.AlignLeft)
		p.y += gapAfterTitle

		sym, err := c.encoder.Encode(req.ShippingCode, qr.Options{
			Level:      c.level,
			ModuleSize: profile.QRModuleSize,
			Border:     profile.QRBorder,
			MinVersion: profile.QRMinVersion,
			Footprint:  profile.QRFootprint,
		})
		if err != nil {
			return nil, fmt.Errorf("render shipping code: %w", err)
		}
		out.QR = p.paste(sym.Image)
		out.QRVersion = sym.Version
		p.y += gapAfterQR

		for _, l := range layout.SplitCode(req.ShippingCode, profile.MaxLineChars) {
			p.text(l, layout.TierLarge, layout.AlignLeft)
		}
		p.y += gapBeforeRule
		p.rule(2)
	}

	if need := p.y + profile.BottomMargin; need > profile.MaxHeight {
		out.Clipped = true
		c.logger.Warn("label content exceeds max height, bottom clipped",
			"profile", profile.Name,
			"content_height", need,
			"max_height", profile.MaxHeight)
	}
	out.Image = p.crop()
	out.Lines = p.lines
	return out, nil
}

// fontsFor returns the cached FontSet of a profile, loading it on first use.
// The caller holds c.mu.
func (c *Composer) fontsFor(p layout.PaperProfile) *fonts.FontSet {
	if fs, ok := c.fonts[p.Name]; ok {
		return fs
	}
	fs := c.loader.Load(p.FontSizes)
	c.logger.Debug("fonts loaded", "profile", p.Name, "source", fs.Source())
	c.fonts[p.Name] = fs
	return fs
}

// Close releases the font faces held by the composer.
func (c *Composer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var errs []error
	for name, fs := range c.fonts {
		errs = append(errs, fs.Close())
		delete(c.fonts, name)
	}
	return errors.Join(errs...)
}

// pen tracks the vertical cursor while sections are drawn.
type pen struct {
	canvas  *image.Paletted
	fonts   *fonts.FontSet
	profile layout.PaperProfile
	y       int
	lines   []layout.Line
}

func (p *pen) text(s string, tier layout.Tier, align layout.Align) {
	face := p.fonts.Face(tier)
	x := p.profile.SideMargin
	if align == layout.AlignCenter {
		x = layout.CenterX(p.profile.CanvasWidth, fonts.Measure(s, face), p.profile.SideMargin)
	}

	d := font.Drawer{
		Dst:  p.canvas,
		Src:  image.Black,
		Face: face,
		Dot:  fixed.P(x, p.y+p.fonts.Ascent(tier)),
	}
	d.DrawString(s)

	p.lines = append(p.lines, layout.Line{Text: s, Tier: tier, X: x, Y: p.y, Align: align})
	p.y += p.fonts.LineHeight(tier)
}

func (p *pen) rule(thickness int) {
	mono.FillRect(p.canvas, image.Rect(p.profile.SideMargin, p.y, p.profile.CanvasWidth-p.profile.SideMargin, p.y+thickness))
	p.y += thickness
}

func (p *pen) separator(thickness int) {
	p.y += gapBeforeRule
	p.rule(thickness)
	p.y += gapAfterRule
}

func (p *pen) paste(img image.Image) image.Rectangle {
	pt := image.Pt(p.profile.SideMargin, p.y)
	mono.Paste(p.canvas, img, pt)
	p.y += img.Bounds().Dy()
	return image.Rectangle{Min: pt, Max: pt.Add(img.Bounds().Size())}.Intersect(p.canvas.Bounds())
}

// crop copies the drawn rows into a canvas of the final height.
func (p *pen) crop() *image.Paletted {
	h := p.y + p.profile.BottomMargin
	if h > p.profile.MaxHeight {
		h = p.profile.MaxHeight
	}
	out := mono.NewCanvas(p.profile.CanvasWidth, h)
	copy(out.Pix, p.canvas.Pix[:len(out.Pix)])
	return out
}
