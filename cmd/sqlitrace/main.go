package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	cc "github.com/ivanpirog/coloredcobra"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/crowdsecurity/sqlitrace/pkg/logging"
	"github.com/crowdsecurity/sqlitrace/pkg/report"
	"github.com/crowdsecurity/sqlitrace/pkg/stconfig"
)

// configGetter is passed to the subcommands, which run after the
// configuration has been loaded by the root command.
type configGetter func() *stconfig.Config

type cliRoot struct {
	logTrace     bool
	logDebug     bool
	logInfo      bool
	logWarn      bool
	logErr       bool
	outputColor  string
	outputFormat string
	configFile   string
	cfg          *stconfig.Config
}

func newCliRoot() *cliRoot {
	return &cliRoot{}
}

func (cli *cliRoot) config() *stconfig.Config {
	return cli.cfg
}

// wantedLogLevel returns the log level requested on the command line, or 0.
func (cli *cliRoot) wantedLogLevel() log.Level {
	switch {
	case cli.logTrace:
		return log.TraceLevel
	case cli.logDebug:
		return log.DebugLevel
	case cli.logInfo:
		return log.InfoLevel
	case cli.logWarn:
		return log.WarnLevel
	case cli.logErr:
		return log.ErrorLevel
	default:
		return 0
	}
}

// initialize loads the configuration and sets up logging.
func (cli *cliRoot) initialize() error {
	cfg, err := stconfig.NewConfig(cli.configFile)
	if err != nil {
		return err
	}

	if cli.outputFormat != "" {
		if err = report.ValidFormat(cli.outputFormat); err != nil {
			return err
		}

		cfg.Output.Format = cli.outputFormat
	}

	if cli.outputColor != "" {
		switch cli.outputColor {
		case "yes", "no", "auto":
			cfg.Output.Color = cli.outputColor
		default:
			return fmt.Errorf("output color '%s' unknown, expected one of yes, no, auto", cli.outputColor)
		}
	}

	level := cli.wantedLogLevel()
	if level == 0 && cfg.Common.LogLevel != nil {
		level = *cfg.Common.LogLevel
	}

	// keep machine readable output clean, unless asked otherwise
	if cfg.Output.Format != report.FormatHuman && cli.wantedLogLevel() == 0 {
		level = log.ErrorLevel
	}

	if err = logging.SetupStandardLogger(cfg.Common, level, report.ShouldColorize(cfg.Output.Color)); err != nil {
		return err
	}

	if cli.configFile != "" {
		log.Debugf("Using %s as configuration file", cli.configFile)
	}

	cli.cfg = cfg

	return nil
}

func (cli *cliRoot) NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sqlitrace",
		Short: "sqlitrace finds the SQL injection campaign in a log export",
		Long: `sqlitrace scans request logs for SQL injection signatures, locks onto
the first source sending one and summarizes the payloads it sent.`,
		DisableAutoGenTag: true,
		SilenceErrors:     true,
		SilenceUsage:      true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return cli.initialize()
		},
	}

	cc.Init(&cc.Config{
		RootCmd:         cmd,
		Headings:        cc.Yellow,
		Commands:        cc.Green + cc.Bold,
		CmdShortDescr:   cc.Cyan,
		Example:         cc.Italic,
		ExecName:        cc.Bold,
		Aliases:         cc.Bold + cc.Italic,
		FlagsDataType:   cc.White,
		Flags:           cc.Green,
		FlagsDescr:      cc.Cyan,
		NoExtraNewlines: true,
		NoBottomNewline: true,
	})

	cmd.SetOut(color.Output)

	pflags := cmd.PersistentFlags()
	pflags.StringVarP(&cli.configFile, "config", "c", os.Getenv("SQLITRACE_CONFIG"), "path to the configuration file")
	pflags.StringVarP(&cli.outputFormat, "output", "o", "", "Output format: human, json, raw")
	pflags.StringVarP(&cli.outputColor, "color", "", "", "Output color: yes, no, auto")
	pflags.BoolVar(&cli.logDebug, "debug", false, "Set logging to debug")
	pflags.BoolVar(&cli.logInfo, "info", false, "Set logging to info")
	pflags.BoolVar(&cli.logWarn, "warning", false, "Set logging to warning")
	pflags.BoolVar(&cli.logErr, "error", false, "Set logging to error")
	pflags.BoolVar(&cli.logTrace, "trace", false, "Set logging to trace")
	pflags.SortFlags = false

	cmd.AddCommand(NewCLIVersion().NewCommand())
	cmd.AddCommand(NewCLIAnalyze(cli.config).NewCommand())
	cmd.AddCommand(NewCLIExplain(cli.config).NewCommand())
	cmd.AddCommand(NewCLIWatch(cli.config).NewCommand())
	cmd.AddCommand(NewCLIServe(cli.config).NewCommand())

	return cmd
}

func main() {
	// set the formatter asap and worry about level later
	log.SetFormatter(&log.TextFormatter{TimestampFormat: "02-01-2006 15:04:05", FullTimestamp: true})

	cmd := newCliRoot().NewCommand()

	if err := cmd.Execute(); err != nil {
		var exitErr *exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}

		log.Fatal(err)
	}
}
