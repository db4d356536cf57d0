package main

import (
	"go.uber.org/zap"
)

// newLogger creates the structured logger used across the process.
func newLogger(serviceName string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.InitialFields = map[string]interface{}{
		"service": serviceName,
	}
	return config.Build()
}
