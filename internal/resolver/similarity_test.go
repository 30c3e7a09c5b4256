package resolver

import "testing"

func TestSimilarity_Identical(t *testing.T) {
	if got := similarity("yesterday", "yesterday"); got != 1 {
		t.Errorf("expected 1, got %f", got)
	}
}

func TestSimilarity_Disjoint(t *testing.T) {
	if got := similarity("abcdef", "xyz"); got != 0 {
		t.Errorf("expected 0, got %f", got)
	}
}

func TestSimilarity_Empty(t *testing.T) {
	if got := similarity("", ""); got != 0 {
		t.Errorf("expected 0 for empty strings, got %f", got)
	}
	if got := similarity("a", "a"); got != 1 {
		t.Errorf("expected 1 for equal one-rune strings, got %f", got)
	}
}

func TestSimilarity_Partial(t *testing.T) {
	got := similarity("night", "nacht")
	if got <= 0 || got >= 1 {
		t.Errorf("expected partial score in (0,1), got %f", got)
	}
}

func TestNormalizeTitle_StripsNoiseParentheticals(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Yesterday (Official Video)", "yesterday"},
		{"Yesterday [HD Lyrics]", "yesterday"},
		{"Blue Monday", "blue monday"},
		{"Don't Stop Me Now!", "don t stop me now"},
	}
	for _, c := range cases {
		if got := normalizeTitle(c.in); got != c.want {
			t.Errorf("normalizeTitle(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeTitle_UnbalancedParenthetical(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Empire State of Mind (feat", "empire state of mind feat"},
		{"Umbrella (feat. Jay", "umbrella feat jay"},
		{"Song [unclosed", "song unclosed"},
		{"(all parenthetical", "all parenthetical"},
	}
	for _, c := range cases {
		if got := normalizeTitle(c.in); got != c.want {
			t.Errorf("normalizeTitle(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalizeTitle_KeepsVariantMarkers(t *testing.T) {
	cases := []string{
		"Blue Monday (2016 Remix)",
		"Layla (Acoustic)",
		"One (Live at Wembley)",
		"Creep (Instrumental Version)",
	}
	for _, in := range cases {
		plain := normalizeTitle("Blue Monday")
		got := normalizeTitle(in)
		if got == plain && in != "Blue Monday" {
			t.Errorf("normalizeTitle(%q) dropped the variant marker: %q", in, got)
		}
	}
}

func TestNormalizeTitle_VariantBeatsNoise(t *testing.T) {
	remix := normalizeTitle("Yesterday (Remix)")
	noise := normalizeTitle("Yesterday (Official Video)")
	if remix == noise {
		t.Errorf("remix marker should survive normalization, got %q for both", remix)
	}
}
