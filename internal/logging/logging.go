// Package logging configures the logrus logger shared by the CLI and the
// evaluation packages.
package logging

import (
	"github.com/sirupsen/logrus"
)

// New returns a logger with the harness's formatting. verbose lowers the
// level to Debug, which includes per-row SQL mismatch details.
func New(verbose bool) *logrus.Logger {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "15:04:05",
	})
	if verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	return log
}
