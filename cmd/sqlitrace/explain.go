package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/crowdsecurity/sqlitrace/pkg/report"
	"github.com/crowdsecurity/sqlitrace/pkg/sqlisig"
)

type explanation struct {
	Payload  string   `json:"payload"`
	Families []string `json:"families"`
}

func explain(catalog *sqlisig.Catalog, payloads []string) []explanation {
	ret := make([]explanation, 0, len(payloads))

	for _, p := range payloads {
		e := explanation{Payload: p, Families: []string{}}

		for _, f := range catalog.Explain(p) {
			e.Families = append(e.Families, f.String())
		}

		ret = append(ret, e)
	}

	return ret
}

func renderExplanations(out io.Writer, explanations []explanation, format string, wantColor string) error {
	switch format {
	case report.FormatJSON:
		x, err := json.MarshalIndent(explanations, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to serialize: %w", err)
		}

		fmt.Fprintln(out, string(x))
	case report.FormatRaw:
		for _, e := range explanations {
			fmt.Fprintf(out, "%s\t%s\n", strings.Join(e.Families, ","), e.Payload)
		}
	default:
		match := color.New(color.FgRed, color.Bold)
		clean := color.New(color.FgGreen)

		if !report.ShouldColorize(wantColor) {
			match.DisableColor()
			clean.DisableColor()
		}

		for _, e := range explanations {
			if len(e.Families) == 0 {
				fmt.Fprintf(out, "%s %s\n", clean.Sprint("no match"), e.Payload)
				continue
			}

			fmt.Fprintf(out, "%s %s\n", match.Sprint(strings.Join(e.Families, ", ")), e.Payload)
		}
	}

	return nil
}

type cliExplain struct {
	cfg configGetter
}

func NewCLIExplain(cfg configGetter) *cliExplain {
	return &cliExplain{
		cfg: cfg,
	}
}

func (cli *cliExplain) NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain PAYLOAD...",
		Short: "Show which signature families match a payload",
		Example: `sqlitrace explain "admin' OR '1'='1"
sqlitrace explain -o json "1; WAITFOR DELAY '0:0:5'" "GET /index.html"`,
		Args:              cobra.MinimumNArgs(1),
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := cli.cfg()

			catalog, err := cfg.Detection.Catalog()
			if err != nil {
				return err
			}

			return renderExplanations(cmd.OutOrStdout(), explain(catalog, args), cfg.Output.Format, cfg.Output.Color)
		},
	}

	return cmd
}
