package layout

// Align is the horizontal alignment of a text line.
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
)

func (a Align) String() string {
	if a == AlignCenter {
		return "center"
	}
	return "left"
}

// Tier selects one of the profile's font sizes.
type Tier int

const (
	TierSmall Tier = iota
	TierMedium
	TierLarge
	// TierHeading uses the medium size in the bold face.
	TierHeading
)

func (t Tier) String() string {
	switch t {
	case TierLarge:
		return "large"
	case TierMedium:
		return "medium"
	case TierHeading:
		return "heading"
	default:
		return "small"
	}
}

// Line is one positioned line of text. X and Y are the top-left corner of
// the line box in canvas coordinates.
type Line struct {
	Text  string
	Tier  Tier
	X     int
	Y     int
	Align Align
}

// CenterX returns the x offset that centers a run of textWidth dots on a
// canvas of canvasWidth dots. Runs that do not fit between the margins are
// pinned to the left margin.
func CenterX(canvasWidth, textWidth, margin int) int {
	if textWidth > canvasWidth-2*margin {
		return margin
	}
	return (canvasWidth - textWidth) / 2
}
