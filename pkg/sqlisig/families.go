package sqlisig

import (
	"fmt"
	"strings"
)

// Family identifies one of the signature groups of the catalog.
type Family int

const (
	// FamilyCommand matches SQL command fragments such as union...select.
	FamilyCommand Family = iota
	// FamilyTautology matches quoted or numeric "or" tautologies.
	FamilyTautology
	// FamilyComment matches statement terminators and comment openers.
	FamilyComment
	// FamilyTiming matches time-based blind injection markers.
	FamilyTiming
)

var familyNames = map[Family]string{
	FamilyCommand:   "command",
	FamilyTautology: "tautology",
	FamilyComment:   "comment",
	FamilyTiming:    "timing",
}

// AllFamilies lists every family in catalog order.
func AllFamilies() []Family {
	return []Family{FamilyCommand, FamilyTautology, FamilyComment, FamilyTiming}
}

func (f Family) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}

	return fmt.Sprintf("family(%d)", int(f))
}

// ParseFamily returns the family with the given name (case insensitive).
func ParseFamily(name string) (Family, error) {
	for f, n := range familyNames {
		if strings.EqualFold(n, strings.TrimSpace(name)) {
			return f, nil
		}
	}

	return 0, fmt.Errorf("unknown signature family %q, expected one of %s", name, strings.Join(FamilyNames(), ", "))
}

// FamilyNames returns the names of all families in catalog order.
func FamilyNames() []string {
	ret := make([]string, 0, len(familyNames))
	for _, f := range AllFamilies() {
		ret = append(ret, f.String())
	}

	return ret
}

// Unicode aware character classes of the signatures. RE2 only knows the ASCII
// ones. Whitespace includes the vertical tab, the file separators, NEL and every
// Unicode separator; digits are any decimal digit; word characters are
// letters, numbers and underscore. \b is spelled as a consuming non-word
// character (or text edge) since RE2 has no Unicode word boundary.
const (
	space     = `[\s\v\p{Z}\x1c-\x1f\x85]`
	digit     = `\p{Nd}`
	wordStart = `(?:^|[^\p{L}\p{N}_])`
	wordEnd   = `(?:$|[^\p{L}\p{N}_])`
	// dotted and dotless capital and small i
	letterI = `[iIıİ]`
)

// signature holds the expression of a family and the literal anchors one of
// which must appear in any ASCII text the expression can match.
type signature struct {
	family  Family
	expr    string
	anchors []string
}

var signatures = []signature{
	{
		family: FamilyCommand,
		expr: `(?i)(?:un` + letterI + `on.*select|select.*from|` + letterI + `nsert.*` + letterI + `nto|` +
			`update.*set|delete.*from|drop.*table)`,
		anchors: []string{"select", "from", "into", "set", "table"},
	},
	{
		family: FamilyTautology,
		// a word boundary after "or" followed by digits can only be whitespace
		expr: `(?i)(?:'` + space + `*or` + space + `*'|"` + space + `*or` + space + `*"|` +
			wordStart + `or` + space + `+` + digit + `+` + space + `*=` + space + `*` + digit + `+)`,
		anchors: []string{"or"},
	},
	{
		family:  FamilyComment,
		expr:    `(?i)(?:'` + space + `*--|"` + space + `*--|;` + space + `*--|#|/\*)`,
		anchors: []string{"--", "#", "/*"},
	},
	{
		family: FamilyTiming,
		expr: `(?i)(?:` + wordStart + `wa` + letterI + `tfor` + space + `+delay` + wordEnd + `|` +
			wordStart + `sleep` + wordEnd + `)`,
		anchors: []string{"waitfor", "sleep"},
	},
}
