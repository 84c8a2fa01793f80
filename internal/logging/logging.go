// internal/logging/logging.go
package logging

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/javajoker/cart-engine/internal/config"
)

// Setup configures the package-level logrus logger.
func Setup(cfg config.LogConfig) {
	level, err := logrus.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if err != nil && cfg.Level != "" {
		logrus.WithField("level", cfg.Level).Warn("Unknown log level, falling back to info")
	}
}
