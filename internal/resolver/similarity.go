package resolver

import (
	"strings"
	"unicode"
)

// variantMarkers are parenthetical annotations that change which recording a
// title names. Other parentheticals ("(Official Video)", "(Lyrics)") are
// search-result noise and get stripped before scoring.
var variantMarkers = []string{
	"remix", "acoustic", "live", "unplugged", "instrumental",
	"version", "edit", "mix", "remaster",
}

// normalizeTitle lowercases, strips decorative parentheticals and collapses
// punctuation so stylized model output and search hits compare fairly.
func normalizeTitle(s string) string {
	return normalize(stripParentheticals(s))
}

// normalizeArtist lowercases and collapses punctuation.
func normalizeArtist(s string) string {
	return normalize(s)
}

func stripParentheticals(s string) string {
	var b strings.Builder
	depth := 0
	start := 0
	for i, r := range s {
		switch r {
		case '(', '[':
			if depth == 0 {
				b.WriteString(s[start:i])
				start = i
			}
			depth++
		case ')', ']':
			if depth > 0 {
				depth--
				if depth == 0 {
					inner := strings.ToLower(s[start : i+1])
					if isVariantMarker(inner) {
						b.WriteString(s[start : i+1])
					}
					start = i + len(string(r))
				}
			}
		}
	}
	// Unbalanced tails (truncated "(feat" and friends) still carry signal;
	// flush them instead of dropping them.
	b.WriteString(s[start:])
	return b.String()
}

func isVariantMarker(inner string) bool {
	for _, m := range variantMarkers {
		if strings.Contains(inner, m) {
			return true
		}
	}
	return false
}

func normalize(s string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		default:
			if !lastSpace {
				b.WriteRune(' ')
				lastSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// similarity is the symmetric Sørensen–Dice coefficient over character
// bigrams, 0 for no overlap, 1 for identical strings.
func similarity(a, b string) float64 {
	if a == b {
		if a == "" {
			return 0
		}
		return 1
	}
	ba := bigrams(a)
	bb := bigrams(b)
	if len(ba) == 0 || len(bb) == 0 {
		return 0
	}

	counts := make(map[string]int, len(ba))
	for _, g := range ba {
		counts[g]++
	}
	matches := 0
	for _, g := range bb {
		if counts[g] > 0 {
			counts[g]--
			matches++
		}
	}
	return 2 * float64(matches) / float64(len(ba)+len(bb))
}

func bigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 2 {
		return nil
	}
	out := make([]string, 0, len(runes)-1)
	for i := 0; i < len(runes)-1; i++ {
		out = append(out, string(runes[i:i+2]))
	}
	return out
}
