// Package logging builds the zap logger shared by the sitetree commands.
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds a logger. Debug uses the development configuration on stderr,
// otherwise a production JSON logger at info level.
func New(debug bool) (*zap.SugaredLogger, error) {
	var logger *zap.Logger
	var err error

	if debug {
		z := zap.NewDevelopmentConfig()
		z.OutputPaths = []string{"stderr"}
		logger, err = z.Build()
	} else {
		z := zap.NewProductionConfig()
		z.OutputPaths = []string{"stderr"}
		z.Sampling = nil
		logger, err = z.Build()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger.Sugar(), nil
}

// Or returns log, or a no-op logger when log is nil.
func Or(log *zap.SugaredLogger) *zap.SugaredLogger {
	if log == nil {
		return zap.NewNop().Sugar()
	}
	return log
}
