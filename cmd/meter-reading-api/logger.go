package main

import (
	"github.com/septivank/meter-reading-api/internal/config"
	"github.com/septivank/meter-reading-api/internal/logging"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName, cfg.LogLevel)
}

// bootLogger is used when the configured logger may not exist yet
func bootLogger() *zap.Logger {
	logger, err := logging.NewLogger("meter-reading-api", "info")
	if err != nil {
		return zap.NewNop()
	}
	return logger
}
