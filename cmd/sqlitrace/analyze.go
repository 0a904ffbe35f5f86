package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/crowdsecurity/sqlitrace/pkg/analysis"
	"github.com/crowdsecurity/sqlitrace/pkg/logrecord"
	"github.com/crowdsecurity/sqlitrace/pkg/metrics"
	"github.com/crowdsecurity/sqlitrace/pkg/report"
)

// exitError carries a non-zero exit code that is not a failure.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

type cliAnalyze struct {
	cfg configGetter
}

func NewCLIAnalyze(cfg configGetter) *cliAnalyze {
	return &cliAnalyze{
		cfg: cfg,
	}
}

func (cli *cliAnalyze) run(cmd *cobra.Command, path string, format string, exitCode bool) error {
	cfg := cli.cfg()

	catalog, err := cfg.Detection.Catalog()
	if err != nil {
		return err
	}

	c, err := analysis.New(catalog, metrics.OriginCLI).File(path, format)
	if err != nil {
		return err
	}

	if err := report.Render(cmd.OutOrStdout(), c.Summary(), cfg.Output.Format, cfg.Output.Color); err != nil {
		return err
	}

	if exitCode && c.Attacker != nil {
		return &exitError{code: 2}
	}

	return nil
}

func (cli *cliAnalyze) NewCommand() *cobra.Command {
	var (
		format   string
		exitCode bool
	)

	cmd := &cobra.Command{
		Use:   "analyze FILE",
		Short: "Summarize the SQL injection campaign found in a log export",
		Long: `Read a log export with the Time, Source and Info columns and summarize the
suspicious payloads sent by the first source caught sending one.
Use "-" to read from stdin, in which case --format is required.`,
		Example: `sqlitrace analyze capture.csv
sqlitrace analyze capture.jsonl.gz -o json
cat capture.csv | sqlitrace analyze - --format csv`,
		Args:              cobra.ExactArgs(1),
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.run(cmd, args[0], format, exitCode)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&format, "format", "", fmt.Sprintf("input format (%s), guessed from the file extension if empty", strings.Join(logrecord.Formats(), ", ")))
	flags.BoolVar(&exitCode, "exit-code", false, "exit with status 2 when an attacker is found")

	return cmd
}
