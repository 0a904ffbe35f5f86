package logging

import (
	"cmp"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"
)

// Log media. The console media write to stderr: stdout carries the reports.
const (
	MediaStdout = "stdout"
	MediaStderr = "stderr"
	MediaFile   = "file"
)

const (
	defLogLevel    = logrus.InfoLevel
	defLogFilename = "sqlitrace.log"
)

// IsConsole reports whether media logs to the terminal.
func IsConsole(media string) bool {
	switch media {
	case MediaStdout, MediaStderr, "":
		return true
	default:
		return false
	}
}

func mediaWriter(cfg LogConfig, filename string) (io.Writer, error) {
	switch media := cfg.GetMedia(); {
	case media == MediaFile:
		return cfg.NewRotatingLogger(filename), nil
	case IsConsole(media):
		return os.Stderr, nil
	default:
		return nil, fmt.Errorf("unknown log_media %q", media)
	}
}

func newFormatter(format string, forceColors bool) (logrus.Formatter, error) {
	switch format {
	case "text", "":
		return &logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
			ForceColors:     forceColors,
		}, nil
	case "json":
		return &logrus.JSONFormatter{TimestampFormat: time.RFC3339}, nil
	default:
		return nil, fmt.Errorf("unknown log_format %q", format)
	}
}

// SetupStandardLogger points logrus.StandardLogger() to the configured media
// and format. A zero level means info. The logger is left untouched when the
// configuration is invalid.
func SetupStandardLogger(cfg LogConfig, level logrus.Level, forceColors bool) error {
	out, err := mediaWriter(cfg, defLogFilename)
	if err != nil {
		return err
	}

	formatter, err := newFormatter(cfg.GetFormat(), forceColors)
	if err != nil {
		return err
	}

	logrus.SetOutput(out)
	logrus.SetFormatter(formatter)
	logrus.SetLevel(cmp.Or(level, defLogLevel))

	return nil
}
