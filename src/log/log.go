// Package log configures the process-wide logrus logger.
package log

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// Setup sets the standard logger's level and text format and returns it.
// Unknown level names fall back to info.
func Setup(level string, out io.Writer) logrus.FieldLogger {
	logger := logrus.StandardLogger()
	customFormatter := new(logrus.TextFormatter)
	customFormatter.TimestampFormat = time.RFC3339
	customFormatter.FullTimestamp = true
	logger.SetFormatter(customFormatter)
	if out != nil {
		logger.SetOutput(out)
	}
	logger.SetLevel(ParseLevel(level))
	return logger
}

// ParseLevel maps a level name to a logrus level. It accepts every name the
// config validator does, and unknown or empty names give info.
func ParseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
