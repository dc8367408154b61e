// Package logging centralizes logrus setup so every cmd/ entrypoint
// configures the same formatter and level parsing, grounded on
// ethpandaops-cbt's cmd/root.go logger initialization.
package logging

import (
	"github.com/sirupsen/logrus"
)

// New returns a logrus.Logger configured with a full-timestamp text
// formatter and level parsed from levelName. An invalid or empty
// levelName falls back to info, matching the pack's "warn and default"
// convention rather than failing startup over a bad flag.
func New(levelName string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		logger.WithError(err).Warn("invalid log level, defaulting to info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

// SetStandard installs logger as logrus's package-level standard logger,
// so every component constructed with logrus.WithField (rather than a
// logger passed explicitly) picks up the same formatter and level.
func SetStandard(logger *logrus.Logger) {
	logrus.SetFormatter(logger.Formatter)
	logrus.SetLevel(logger.GetLevel())
	logrus.SetOutput(logger.Out)
}
