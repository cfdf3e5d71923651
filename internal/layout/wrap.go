package layout

import (
	"strings"
	"unicode/utf8"
)

// Wrap greedily packs the whitespace-separated words of text into lines of
// at most maxChars runes. A single word longer than maxChars is emitted on
// its own line without being broken. Blank input yields no lines.
func Wrap(text string, maxChars int) []string {
	if maxChars < 1 {
		maxChars = 1
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return []string{}
	}

	lines := make([]string, 0, len(words))
	current := ""
	for _, word := range words {
		if current == "" {
			current = word
			continue
		}
		if utf8.RuneCountInString(current)+1+utf8.RuneCountInString(word) <= maxChars {
			current += " " + word
			continue
		}
		lines = append(lines, current)
		current = word
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

// SplitName breaks a name into at most two lines once it is longer than
// threshold runes. Multi-word names split at the word midpoint (the first
// line gets the smaller half); a single long word splits at its rune midpoint.
func SplitName(name string, threshold int) []string {
	name = strings.TrimSpace(name)
	if name == "" {
		return []string{}
	}

	runes := []rune(name)
	if len(runes) <= threshold {
		return []string{name}
	}

	words := strings.Fields(name)
	if len(words) >= 2 {
		mid := len(words) / 2
		return []string{
			strings.Join(words[:mid], " "),
			strings.Join(words[mid:], " "),
		}
	}

	mid := len(runes) / 2
	return []string{string(runes[:mid]), string(runes[mid:])}
}

// codeSeparators are the characters a long shipping code prefers to break on.
const codeSeparators = "-_ "

// SplitCode breaks a shipping code into lines of at most maxChars runes.
// Codes containing spaces are word-wrapped first. Any remaining segment that
// is too long is cut near its midpoint, preferring a separator found in the
// window [mid-3, mid+4); separators left at the start of the second half are
// dropped.
func SplitCode(code string, maxChars int) []string {
	if maxChars < 1 {
		maxChars = 1
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return []string{}
	}

	var lines []string
	for _, segment := range Wrap(code, maxChars) {
		lines = append(lines, splitSegment([]rune(segment), maxChars)...)
	}
	return lines
}

func splitSegment(runes []rune, maxChars int) []string {
	if len(runes) <= maxChars {
		return []string{string(runes)}
	}

	mid := len(runes) / 2
	breakAt := mid
	for i := max(0, mid-3); i < min(len(runes), mid+4); i++ {
		if strings.ContainsRune(codeSeparators, runes[i]) {
			breakAt = i
			break
		}
	}
	// A separator at index 0 would leave an empty first line.
	if breakAt == 0 {
		breakAt = mid
	}

	first := runes[:breakAt]
	rest := []rune(strings.TrimLeft(string(runes[breakAt:]), "-_"))

	out := splitSegment(first, maxChars)
	if len(rest) > 0 {
		out = append(out, splitSegment(rest, maxChars)...)
	}
	return out
}
