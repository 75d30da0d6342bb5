package logging

import (
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"

	"dictation/internal/config"
)

// NewLogger creates a logrus.Logger from the log settings.
func NewLogger(cfg config.LogConfig) *logrus.Logger {
	return newLogger(cfg, os.Stderr)
}

func newLogger(cfg config.LogConfig, output io.Writer) *logrus.Logger {
	logger := logrus.New()

	level := logrus.InfoLevel
	if cfg.Level != "" {
		if lv, err := logrus.ParseLevel(strings.ToLower(cfg.Level)); err == nil {
			level = lv
		}
	}
	logger.SetLevel(level)
	logger.SetOutput(output)

	var underlying logrus.Formatter
	switch strings.ToLower(cfg.Format) {
	case "json":
		underlying = &logrus.JSONFormatter{
			CallerPrettyfier: func(*runtime.Frame) (string, string) { return "", "" },
		}
	default:
		underlying = &logrus.TextFormatter{
			FullTimestamp:    true,
			CallerPrettyfier: func(*runtime.Frame) (string, string) { return "", "" },
		}
	}

	logger.SetFormatter(&SourceFormatter{Underlying: underlying})
	logger.SetReportCaller(cfg.ReportCaller)
	return logger
}
