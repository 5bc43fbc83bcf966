// internal/logging/logging.go
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/estatechain/ledger-backend/internal/config"
)

// Setup configures the standard logrus logger from configuration.
func Setup(cfg config.LogConfig) {
	Configure(logrus.StandardLogger(), cfg, os.Stdout)
}

// Configure applies level and formatter to the given logger.
func Configure(logger *logrus.Logger, cfg config.LogConfig, out io.Writer) {
	logger.SetOutput(out)

	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		})
		return
	}
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
}
