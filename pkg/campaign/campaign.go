// Package campaign locks onto the first source emitting a suspicious payload
// and aggregates every suspicious event coming from it.
package campaign

import (
	"cmp"
	"slices"
	"strings"

	"github.com/crowdsecurity/go-cs-lib/ptr"
)

// Record is one parsed line of a log export. Missing fields are empty strings.
type Record struct {
	Time   string
	Source string
	Info   string
}

// Matcher classifies a payload. *sqlisig.Catalog implements it.
type Matcher interface {
	Matches(text string) bool
}

// MatcherFunc adapts a plain function to the Matcher interface.
type MatcherFunc func(text string) bool

func (f MatcherFunc) Matches(text string) bool {
	return f(text)
}

// Event is a matching payload emitted by the attacker.
type Event struct {
	Time string
	Info string
}

// Stats are counters collected during the scan. They never influence the summary.
type Stats struct {
	Scanned int // records read
	Matched int // records matching the catalog, whatever their source
	Ignored int // matching records sent by another source than the attacker
}

// Campaign is the result of a single scan over a record sequence.
type Campaign struct {
	// Attacker is nil when no record matched.
	Attacker             *string
	Events               []Event
	FormattedSymbolCount int
	Stats                Stats
}

// Aggregate scans records in input order. The source of the first matching
// record becomes the attacker; matching records from other sources are
// ignored afterwards. Events are returned sorted by time, ties keeping
// their input order. The records slice is not modified.
func Aggregate(records []Record, m Matcher) *Campaign {
	c := &Campaign{}

	for _, r := range records {
		c.Stats.Scanned++

		if !m.Matches(r.Info) {
			continue
		}

		c.Stats.Matched++

		if c.Attacker == nil {
			c.Attacker = ptr.Of(r.Source)
		}

		if r.Source != *c.Attacker {
			c.Stats.Ignored++
			continue
		}

		c.Events = append(c.Events, Event{Time: r.Time, Info: r.Info})

		if strings.Contains(r.Info, ":") {
			c.FormattedSymbolCount++
		}
	}

	slices.SortStableFunc(c.Events, func(a, b Event) int {
		return cmp.Compare(a.Time, b.Time)
	})

	return c
}

// Summary is the compact outcome of an analysis. Nil pointers stand for
// "no value"; rendering them is up to the caller.
type Summary struct {
	AttackerID           *string
	AttemptCount         int
	FirstPayload         *string
	LastPayload          *string
	FormattedSymbolCount int
}

// Summary derives the summary of the campaign.
func (c *Campaign) Summary() Summary {
	s := Summary{
		AttemptCount:         len(c.Events),
		FormattedSymbolCount: c.FormattedSymbolCount,
	}

	if c.Attacker != nil {
		s.AttackerID = ptr.Of(*c.Attacker)
	}

	if len(c.Events) > 0 {
		s.FirstPayload = ptr.Of(c.Events[0].Info)
		s.LastPayload = ptr.Of(c.Events[len(c.Events)-1].Info)
	}

	return s
}

// Analyze aggregates records and returns the summary.
func Analyze(records []Record, m Matcher) Summary {
	return Aggregate(records, m).Summary()
}
