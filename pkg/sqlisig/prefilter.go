package sqlisig

import (
	"unicode/utf8"

	ahocorasick "github.com/petar-dambovaliev/aho-corasick"
)

// prefilter rejects payloads that contain none of the literal anchors the
// signatures need. Case folding in the expressions maps a few non-ASCII runes
// to ASCII letters (U+017F to 's', U+0131 to 'i') and the separator classes
// are Unicode, so only pure ASCII text is ever rejected.
type prefilter struct {
	ac      ahocorasick.AhoCorasick
	enabled bool
}

func newPrefilter(anchors []string) *prefilter {
	if len(anchors) == 0 {
		return &prefilter{}
	}

	builder := ahocorasick.NewAhoCorasickBuilder(ahocorasick.Opts{
		AsciiCaseInsensitive: true,
		MatchOnlyWholeWords:  false,
		MatchKind:            ahocorasick.LeftMostFirstMatch,
		DFA:                  true,
	})

	return &prefilter{
		ac:      builder.Build(anchors),
		enabled: true,
	}
}

func (p *prefilter) mayMatch(text string) bool {
	if !p.enabled || !isASCII(text) {
		return true
	}

	return len(p.ac.FindAll(text)) > 0
}

func isASCII(s string) bool {
	for i := range len(s) {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}

	return true
}
