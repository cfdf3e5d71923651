// Package barcode decodes the symbols printed on rendered labels so a label
// can be checked before it is sent to a printer.
package barcode

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/datamatrix"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
)

// Format represents a barcode symbology.
type Format int

const (
	FormatUnknown Format = iota
	FormatQR
	FormatDataMatrix
	FormatCode128
)

func (f Format) String() string {
	switch f {
	case FormatQR:
		return "qr"
	case FormatDataMatrix:
		return "datamatrix"
	case FormatCode128:
		return "code128"
	default:
		return "unknown"
	}
}

// ErrNotFound is returned when no symbol could be decoded.
var ErrNotFound = errors.New("barcode: no symbol found")

// Options controls decoding.
type Options struct {
	// Formats restricts the symbologies tried. Empty means QR only.
	Formats []Format
	// TryHarder enables the slower exhaustive search.
	TryHarder bool
	// ROI restricts decoding to a sub-rectangle. Ignored when empty or
	// outside the image.
	ROI image.Rectangle
}

// Point is an integer point in image coordinates.
type Point struct {
	X int
	Y int
}

// Result is a decoded symbol.
type Result struct {
	Type   Format
	Value  string
	Points []Point
	BBox   image.Rectangle
}

// Decoder decodes symbols from an image.
type Decoder interface {
	Decode(ctx context.Context, img image.Image, opts Options) (*Result, error)
}

// NewDecoder returns the gozxing backed decoder.
func NewDecoder() Decoder { return &zxingDecoder{} }

type zxingDecoder struct{}

// quietPad is the white border added around the image on the second attempt.
const quietPad = 16

// Decode tries the image as-is, then padded with a white border, then scaled
// up 2x with nearest-neighbour sampling. Labels often place the symbol close
// to the paper edge, which the padded pass compensates for.
func (d *zxingDecoder) Decode(ctx context.Context, img image.Image, opts Options) (*Result, error) {
	if img == nil {
		return nil, errors.New("barcode: nil image")
	}
	if !opts.ROI.Empty() {
		if sub, ok := subImage(img, opts.ROI); ok {
			img = sub
		}
	}

	formats := opts.Formats
	if len(formats) == 0 {
		formats = []Format{FormatQR}
	}

	attempts := []func(image.Image) image.Image{
		func(i image.Image) image.Image { return i },
		func(i image.Image) image.Image { return pad(i, quietPad) },
		func(i image.Image) image.Image {
			p := pad(i, quietPad)
			b := p.Bounds()
			return imaging.Resize(p, b.Dx()*2, b.Dy()*2, imaging.NearestNeighbor)
		},
	}

	var lastErr error
	for _, attempt := range attempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		candidate := attempt(img)
		for _, f := range formats {
			res, err := decodeOne(candidate, f, opts.TryHarder)
			if err == nil {
				return res, nil
			}
			lastErr = err
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrNotFound, lastErr)
}

func decodeOne(img image.Image, f Format, tryHarder bool) (*Result, error) {
	reader, ok := readerFor(f)
	if !ok {
		return nil, fmt.Errorf("unsupported format %s", f)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return nil, err
	}

	hints := map[gozxing.DecodeHintType]interface{}{}
	if tryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	r, err := reader.Decode(bmp, hints)
	if err != nil {
		return nil, err
	}

	var points []Point
	for _, p := range r.GetResultPoints() {
		points = append(points, Point{X: int(p.GetX()), Y: int(p.GetY())})
	}
	return &Result{
		Type:   fromZXing(r.GetBarcodeFormat()),
		Value:  r.GetText(),
		Points: points,
		BBox:   rectFromPoints(points),
	}, nil
}

func readerFor(f Format) (gozxing.Reader, bool) {
	switch f {
	case FormatQR:
		return qrcode.NewQRCodeReader(), true
	case FormatDataMatrix:
		return datamatrix.NewDataMatrixReader(), true
	case FormatCode128:
		return oned.NewCode128Reader(), true
	default:
		return nil, false
	}
}

func fromZXing(bf gozxing.BarcodeFormat) Format {
	switch bf {
	case gozxing.BarcodeFormat_QR_CODE:
		return FormatQR
	case gozxing.BarcodeFormat_DATA_MATRIX:
		return FormatDataMatrix
	case gozxing.BarcodeFormat_CODE_128:
		return FormatCode128
	default:
		return FormatUnknown
	}
}

func rectFromPoints(pts []Point) image.Rectangle {
	if len(pts) == 0 {
		return image.Rectangle{}
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := pts[0].X, pts[0].Y
	for _, p := range pts[1:] {
		minX = min(minX, p.X)
		minY = min(minY, p.Y)
		maxX = max(maxX, p.X)
		maxY = max(maxY, p.Y)
	}
	return image.Rect(minX, minY, maxX+1, maxY+1)
}

// pad returns img centred on a white canvas n pixels larger on every side.
func pad(img image.Image, n int) image.Image {
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx()+2*n, b.Dy()+2*n))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, image.Rect(n, n, n+b.Dx(), n+b.Dy()), img, b.Min, draw.Src)
	return dst
}

// subImage returns the part of img inside r.
func subImage(img image.Image, r image.Rectangle) (image.Image, bool) {
	rb := r.Intersect(img.Bounds())
	if rb.Empty() {
		return nil, false
	}
	type subImager interface {
		SubImage(r image.Rectangle) image.Image
	}
	if s, ok := img.(subImager); ok {
		return s.SubImage(rb), true
	}
	return imaging.Crop(img, rb), true
}
