package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/crowdsecurity/sqlitrace/pkg/analysis"
	"github.com/crowdsecurity/sqlitrace/pkg/metrics"
	"github.com/crowdsecurity/sqlitrace/pkg/report"
	"github.com/crowdsecurity/sqlitrace/pkg/watcher"
)

type cliWatch struct {
	cfg configGetter
}

func NewCLIWatch(cfg configGetter) *cliWatch {
	return &cliWatch{
		cfg: cfg,
	}
}

func (cli *cliWatch) run(ctx context.Context, cmd *cobra.Command, path string, format string) error {
	cfg := cli.cfg()

	catalog, err := cfg.Detection.Catalog()
	if err != nil {
		return err
	}

	a := analysis.New(catalog, metrics.OriginWatch)

	// a file being rewritten can be unreadable for a moment: report and wait
	// for the next change
	onChange := func(path string) {
		c, err := a.File(path, format)
		if err != nil {
			log.Error(err)
			return
		}

		if err := report.Render(cmd.OutOrStdout(), c.Summary(), cfg.Output.Format, cfg.Output.Color); err != nil {
			log.Error(err)
		}
	}

	return watcher.Watch(ctx, path, onChange)
}

func (cli *cliWatch) NewCommand() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:               "watch FILE",
		Short:             "Analyze a log export again every time it changes",
		Example:           `sqlitrace watch /var/log/capture.csv -o json`,
		Args:              cobra.ExactArgs(1),
		DisableAutoGenTag: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return cli.run(ctx, cmd, args[0], format)
		},
	}

	cmd.Flags().StringVar(&format, "format", "", "input format, guessed from the file extension if empty")

	return cmd
}
