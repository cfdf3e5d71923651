// Package mono provides the 1-bit canvas shared by the label renderer, the
// QR encoder and the printer output.
package mono

import (
	"image"
	"image/color"
	"image/draw"
)

// Palette indexes: 0 is paper, 1 is ink.
const (
	White uint8 = 0
	Black uint8 = 1
)

// Palette is the two-entry palette of every canvas.
var Palette = color.Palette{color.White, color.Black}

// Threshold is the luminance cutoff used when converting foreign images.
const Threshold uint8 = 128

// NewCanvas returns a white w x h canvas.
func NewCanvas(w, h int) *image.Paletted {
	// Paletted pixels start at index 0, which is White.
	return image.NewPaletted(image.Rect(0, 0, w, h), Palette)
}

// FillRect paints r black, clipped to the canvas.
func FillRect(dst *image.Paletted, r image.Rectangle) {
	r = r.Intersect(dst.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := dst.Pix[dst.PixOffset(r.Min.X, y):dst.PixOffset(r.Max.X, y)]
		for i := range row {
			row[i] = Black
		}
	}
}

// IsInk reports whether the pixel at (x, y) of img is dark.
func IsInk(img image.Image, x, y int) bool {
	if p, ok := img.(*image.Paletted); ok && sameLayout(p.Palette) {
		return p.ColorIndexAt(x, y) == Black
	}
	return gray(img.At(x, y)) < Threshold
}

// FromImage converts any image to a canvas using Threshold. Canvases are
// returned as-is.
func FromImage(img image.Image) *image.Paletted {
	if p, ok := img.(*image.Paletted); ok && sameLayout(p.Palette) {
		return p
	}
	b := img.Bounds()
	dst := NewCanvas(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if gray(img.At(b.Min.X+x, b.Min.Y+y)) < Threshold {
				dst.SetColorIndex(x, y, Black)
			}
		}
	}
	return dst
}

// Paste copies src onto dst with its top-left corner at pt.
func Paste(dst *image.Paletted, src image.Image, pt image.Point) {
	r := image.Rectangle{Min: pt, Max: pt.Add(src.Bounds().Size())}
	draw.Draw(dst, r, FromImage(src), image.Point{}, draw.Src)
}

// Pack packs a canvas into rows of bytes, MSB first, padding each row to a
// whole byte. Ink bits are 1 unless inkIsZero is set.
func Pack(img image.Image, inkIsZero bool) (data []byte, widthBytes int) {
	b := img.Bounds()
	widthBytes = (b.Dx() + 7) / 8
	data = make([]byte, widthBytes*b.Dy())
	if inkIsZero {
		for i := range data {
			data[i] = 0xFF
		}
	}

	for y := 0; y < b.Dy(); y++ {
		for x := 0; x < b.Dx(); x++ {
			if !IsInk(img, b.Min.X+x, b.Min.Y+y) {
				continue
			}
			idx := y*widthBytes + x/8
			bit := byte(1) << (7 - uint(x%8))
			if inkIsZero {
				data[idx] &^= bit
			} else {
				data[idx] |= bit
			}
		}
	}
	return data, widthBytes
}

// Unpack is the inverse of Pack.
func Unpack(data []byte, width, height int, inkIsZero bool) *image.Paletted {
	widthBytes := (width + 7) / 8
	dst := NewCanvas(width, height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			set := data[y*widthBytes+x/8]&(1<<(7-uint(x%8))) != 0
			if set != inkIsZero {
				dst.SetColorIndex(x, y, Black)
			}
		}
	}
	return dst
}

// InkRows returns the number of rows containing at least one ink pixel.
func InkRows(img image.Image) int {
	b := img.Bounds()
	n := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if IsInk(img, x, y) {
				n++
				break
			}
		}
	}
	return n
}

func gray(c color.Color) uint8 {
	r, g, b, a := c.RGBA()
	if a == 0 {
		return 255
	}
	// Rec. 601 luma on 16-bit channels.
	return uint8((299*r + 587*g + 114*b) / 1000 >> 8)
}

func sameLayout(p color.Palette) bool {
	if len(p) != 2 {
		return false
	}
	return gray(p[White]) >= Threshold && gray(p[Black]) < Threshold
}
