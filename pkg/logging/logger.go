package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds a zap logger for the given environment.
// "local" and "dev" get human-readable console output; everything else
// gets production JSON encoding.
func NewLogger(env string) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "local", "dev":
		cfg = zap.NewDevelopmentConfig()
	default:
		cfg = zap.NewProductionConfig()
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
