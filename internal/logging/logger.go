// Package logging provides zap logger helpers and the process-wide logger.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// L is the process-wide logger. It is a no-op until Init runs, so packages
// may log during early startup without a nil check.
var L = zap.NewNop()

// Init builds the process logger and installs it as L. The TAXCRAWLER_DEV
// environment variable switches to the colorized development encoder.
func Init() {
	development := os.Getenv("TAXCRAWLER_DEV") != ""
	logger, err := New(development)
	if err != nil {
		// No logger to report with; stderr is all we have.
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		return
	}
	L = logger
}

// New builds a zap.Logger configured for development or production.
func New(development bool) (*zap.Logger, error) {
	if development {
		cfg := zap.NewDevelopmentConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		logger, err := cfg.Build()
		if err != nil {
			return nil, fmt.Errorf("build dev logger: %w", err)
		}
		return logger, nil
	}
	cfg := zap.NewProductionConfig()
	cfg.DisableStacktrace = false
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build prod logger: %w", err)
	}
	return logger, nil
}
