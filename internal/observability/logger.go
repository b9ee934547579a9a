// Package observability builds the logger and the OpenTelemetry providers.
package observability

import (
	"os"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel/log/global"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ParseLevel maps LOG_LEVEL to a zap level, defaulting to info.
func ParseLevel(s string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(s)
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func consoleCore(level zapcore.Level) zapcore.Core {
	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.Lock(os.Stdout),
		level,
	)
}

func build(core zapcore.Core) *zap.Logger {
	return zap.New(core,
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
		zap.Fields(zap.String("service.name", ServiceName)),
	)
}

// NewLogger writes JSON to stdout.
func NewLogger(level string) *zap.Logger {
	return build(consoleCore(ParseLevel(level)))
}

// WithOTelBridge returns a logger that also ships records to the global OTLP log provider.
func WithOTelBridge(level string) *zap.Logger {
	otelCore := otelzap.NewCore(ServiceName,
		otelzap.WithLoggerProvider(global.GetLoggerProvider()),
	)
	return build(zapcore.NewTee(otelCore, consoleCore(ParseLevel(level))))
}
