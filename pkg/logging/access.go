package logging

import (
	"github.com/sirupsen/logrus"
)

const accessLogFilename = "sqlitrace_api.log"

// CreateAccessLogger returns the logger used for HTTP access logs. With the
// file media it writes to its own rotated file in the log directory,
// otherwise it shares the destination of the standard logger.
// A zero level inherits the level of the standard logger.
func CreateAccessLogger(cfg LogConfig, level logrus.Level) *logrus.Logger {
	clog := CloneLogger(logrus.StandardLogger(), level)

	if cfg.GetMedia() != MediaFile {
		return clog
	}

	logger := cfg.NewRotatingLogger(accessLogFilename)
	logrus.Debugf("starting router, logging to %s", logger.Filename)

	clog.SetOutput(logger)

	return clog
}
