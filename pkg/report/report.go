// Package report presents analysis summaries. It is the only place where
// missing values become the NULL sentinel.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/crowdsecurity/sqlitrace/pkg/campaign"
)

const NullSentinel = "NULL"

const (
	FormatHuman = "human"
	FormatJSON  = "json"
	FormatRaw   = "raw"
)

// View is the presentation of a summary, with sentinels filled in.
type View struct {
	AttackerID           string `json:"attacker_id"`
	AttemptCount         int    `json:"attempt_count"`
	FirstPayload         string `json:"first_payload"`
	LastPayload          string `json:"last_payload"`
	FormattedSymbolCount int    `json:"formatted_symbol_count"`
}

func orNull(s *string) string {
	if s == nil {
		return NullSentinel
	}

	return *s
}

func NewView(s campaign.Summary) View {
	return View{
		AttackerID:           orNull(s.AttackerID),
		AttemptCount:         s.AttemptCount,
		FirstPayload:         orNull(s.FirstPayload),
		LastPayload:          orNull(s.LastPayload),
		FormattedSymbolCount: s.FormattedSymbolCount,
	}
}

// ValidFormat returns an error if format is not supported by Render.
func ValidFormat(format string) error {
	switch format {
	case FormatHuman, FormatJSON, FormatRaw:
		return nil
	}

	return fmt.Errorf("output format '%s' unknown, expected one of %s, %s, %s", format, FormatHuman, FormatJSON, FormatRaw)
}

// Render writes the summary to out. wantColor is "yes", "no" or "auto" and
// only affects the human format.
func Render(out io.Writer, s campaign.Summary, format string, wantColor string) error {
	if err := ValidFormat(format); err != nil {
		return err
	}

	v := NewView(s)

	switch format {
	case FormatJSON:
		x, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to serialize summary: %w", err)
		}

		fmt.Fprintln(out, string(x))
	case FormatRaw:
		b := strings.Builder{}
		b.WriteString("attacker_id=" + v.AttackerID + "\n")
		b.WriteString("attempt_count=" + strconv.Itoa(v.AttemptCount) + "\n")
		b.WriteString("first_payload=" + v.FirstPayload + "\n")
		b.WriteString("last_payload=" + v.LastPayload + "\n")
		b.WriteString("formatted_symbol_count=" + strconv.Itoa(v.FormattedSymbolCount) + "\n")

		if _, err := io.WriteString(out, b.String()); err != nil {
			return err
		}
	default:
		t := newTable(out, ShouldColorize(wantColor))
		t.SetTitle("SQL injection campaign")
		t.SetHeaders("Field", "Value")
		t.AddRow("Attacker", v.AttackerID)
		t.AddRow("Attempts", strconv.Itoa(v.AttemptCount))
		t.AddRow("First payload", v.FirstPayload)
		t.AddRow("Last payload", v.LastPayload)
		t.AddRow("Payloads with ':'", strconv.Itoa(v.FormattedSymbolCount))
		t.Render()
	}

	return nil
}
