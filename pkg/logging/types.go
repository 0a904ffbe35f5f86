package logging

import (
	"gopkg.in/natefinch/lumberjack.v2"
)

// LogConfig is implemented by the configuration sections that carry logging
// settings.
type LogConfig interface {
	GetFormat() string
	GetMedia() string
	NewRotatingLogger(filename string) *lumberjack.Logger
}
