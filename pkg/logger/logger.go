package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const productionMode = "production"

// New builds a zap logger configured for the given environment.
func New(environment string) *zap.Logger {
	var config zap.Config
	if environment == productionMode {
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	zapLogger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return zapLogger
}
