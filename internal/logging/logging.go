package logging

import (
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"calcdesk/internal/config"
)

// New builds a logger from cfg. The returned closer releases a log file and
// is a no-op for stdout/stderr.
func New(cfg config.LoggingConfig) (*logrus.Logger, io.Closer) {
	log := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		log.Warnf("Invalid log level '%s', using 'info' instead. Error: %v", cfg.Level, err)
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		log.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
			DisableColors: true,
		})
	}

	var closer io.Closer = nopCloser{}
	switch strings.ToLower(strings.TrimSpace(cfg.Output)) {
	case "stdout":
		log.SetOutput(os.Stdout)
	case "stderr", "":
		log.SetOutput(os.Stderr)
	case "discard", "none":
		log.SetOutput(io.Discard)
	default:
		file, err := os.OpenFile(cfg.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.SetOutput(os.Stderr)
			log.Warnf("Failed to open log file '%s', using 'stderr' instead. Error: %v", cfg.Output, err)
		} else {
			log.SetOutput(file)
			closer = file
		}
	}

	log.WithFields(logrus.Fields{"level": level.String(), "output": cfg.Output}).Debug("Logger initialized")
	return log, closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
