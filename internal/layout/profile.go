package layout

import (
	"sort"
	"strings"
)

// FontSizes holds the point sizes of the three text tiers used on a label.
type FontSizes struct {
	Large  float64 `json:"large" yaml:"large"`
	Medium float64 `json:"medium" yaml:"medium"`
	Small  float64 `json:"small" yaml:"small"`
}

// PaperProfile describes the physical paper roll a label is rendered for.
// PaperWidth is in millimetres; every other measurement is in printer dots.
type PaperProfile struct {
	Name        string    `json:"name" yaml:"name"`
	PaperWidth  float64   `json:"paper_width_mm" yaml:"paper_width_mm"`
	CanvasWidth int       `json:"canvas_width_px" yaml:"canvas_width_px"`
	MaxHeight   int       `json:"max_height_px" yaml:"max_height_px"`
	FontSizes   FontSizes `json:"font_sizes" yaml:"font_sizes"`

	// QRModuleSize is the largest number of dots per QR module.
	QRModuleSize int `json:"qr_module_size" yaml:"qr_module_size"`
	// QRFootprint bounds the edge length of the pasted QR bitmap.
	QRFootprint  int `json:"qr_footprint_px" yaml:"qr_footprint_px"`
	QRBorder     int `json:"qr_border_modules" yaml:"qr_border_modules"`
	QRMinVersion int `json:"qr_min_version" yaml:"qr_min_version"`

	MaxLineChars   int `json:"max_line_chars" yaml:"max_line_chars"`
	NameSplitChars int `json:"name_split_chars" yaml:"name_split_chars"`

	TopMargin    int `json:"top_margin_px" yaml:"top_margin_px"`
	BottomMargin int `json:"bottom_margin_px" yaml:"bottom_margin_px"`
	SideMargin   int `json:"side_margin_px" yaml:"side_margin_px"`
}

// Profile names.
const (
	ProfileNarrow = "narrow"
	ProfileWide   = "wide"
)

// Narrow is the 58mm roll profile.
var Narrow = PaperProfile{
	Name:        ProfileNarrow,
	PaperWidth:  58,
	CanvasWidth: 203,
	MaxHeight:   400,
	FontSizes: FontSizes{
		Large:  14,
		Medium: 12,
		Small:  10,
	},
	QRModuleSize:   3,
	QRFootprint:    87,
	QRBorder:       2,
	QRMinVersion:   2,
	MaxLineChars:   25,
	NameSplitChars: 18,
	TopMargin:      12,
	BottomMargin:   12,
	SideMargin:     8,
}

// Wide is the 80mm roll profile.
var Wide = PaperProfile{
	Name:        ProfileWide,
	PaperWidth:  80,
	CanvasWidth: 280,
	MaxHeight:   450,
	FontSizes: FontSizes{
		Large:  18,
		Medium: 15,
		Small:  13,
	},
	QRModuleSize:   4,
	QRFootprint:    116,
	QRBorder:       2,
	QRMinVersion:   2,
	MaxLineChars:   32,
	NameSplitChars: 24,
	TopMargin:      14,
	BottomMargin:   14,
	SideMargin:     10,
}

var profileAliases = map[string]PaperProfile{
	"narrow": Narrow,
	"58mm":   Narrow,
	"58":     Narrow,
	"wide":   Wide,
	"80mm":   Wide,
	"80":     Wide,
}

// LookupProfile resolves a profile token. Empty or unknown tokens fall back
// to the narrow profile.
func LookupProfile(token string) PaperProfile {
	p, _ := ResolveProfile(token)
	return p
}

// ResolveProfile is like LookupProfile but also reports whether the token
// was recognized.
func ResolveProfile(token string) (PaperProfile, bool) {
	p, ok := profileAliases[strings.ToLower(strings.TrimSpace(token))]
	if !ok {
		return Narrow, false
	}
	return p, true
}

// Profiles returns the built-in profiles ordered by canvas width.
func Profiles() []PaperProfile {
	out := []PaperProfile{Narrow, Wide}
	sort.Slice(out, func(i, j int) bool { return out[i].CanvasWidth < out[j].CanvasWidth })
	return out
}

// ProfileNames returns every accepted profile token, sorted.
func ProfileNames() []string {
	names := make([]string, 0, len(profileAliases))
	for k := range profileAliases {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
