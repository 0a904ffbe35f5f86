// Package sqlisig holds the immutable catalog of SQL injection signatures
// used to classify free-text log payloads.
package sqlisig

import (
	"fmt"
	"slices"

	"github.com/wasilibs/go-re2"
)

// Catalog is an immutable set of case-insensitive signature expressions.
// It is safe for concurrent use.
type Catalog struct {
	families []Family
	rx       []*re2.Regexp
	pre      *prefilter
}

// New compiles a catalog restricted to the given families, in catalog order.
// With no argument every family is enabled.
func New(families ...Family) (*Catalog, error) {
	if len(families) == 0 {
		families = AllFamilies()
	}

	c := &Catalog{}

	var anchors []string

	for _, sig := range signatures {
		if !slices.Contains(families, sig.family) {
			continue
		}

		re, err := re2.Compile(sig.expr)
		if err != nil {
			return nil, fmt.Errorf("compiling %s signature: %w", sig.family, err)
		}

		c.families = append(c.families, sig.family)
		c.rx = append(c.rx, re)
		anchors = append(anchors, sig.anchors...)
	}

	for _, f := range families {
		if !slices.Contains(c.families, f) {
			return nil, fmt.Errorf("unknown signature family %s", f)
		}
	}

	c.pre = newPrefilter(anchors)

	return c, nil
}

// MustNew is like New but panics on error.
func MustNew(families ...Family) *Catalog {
	c, err := New(families...)
	if err != nil {
		panic(err)
	}

	return c
}

// Families returns the enabled families in catalog order.
func (c *Catalog) Families() []Family {
	return slices.Clone(c.families)
}

// Matches reports whether text matches at least one signature.
func (c *Catalog) Matches(text string) bool {
	if !c.pre.mayMatch(text) {
		return false
	}

	for _, re := range c.rx {
		if re.MatchString(text) {
			return true
		}
	}

	return false
}

// Explain returns every family matching text, in catalog order.
// It returns nil when Matches would return false.
func (c *Catalog) Explain(text string) []Family {
	if !c.pre.mayMatch(text) {
		return nil
	}

	var ret []Family

	for i, re := range c.rx {
		if re.MatchString(text) {
			ret = append(ret, c.families[i])
		}
	}

	return ret
}
