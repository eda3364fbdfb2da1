// Package logger builds the application's structured logger
package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/amirphl/sms-receiver/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a zap logger writing to stdout, a rotated file, or both
func New(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	var encoder zapcore.Encoder
	if cfg.Format == "console" {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	}

	sink, err := writeSyncer(cfg)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(encoder, sink, zap.NewAtomicLevelAt(level))
	return zap.New(core, zap.AddCaller()).Named("sms_receiver"), nil
}

// ParseLevel maps a configured level name onto a zap level
func ParseLevel(level string) (zapcore.Level, error) {
	switch level {
	case "debug":
		return zap.DebugLevel, nil
	case "", "info":
		return zap.InfoLevel, nil
	case "warn", "warning":
		return zap.WarnLevel, nil
	case "error":
		return zap.ErrorLevel, nil
	default:
		return zap.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}

func writeSyncer(cfg config.LoggingConfig) (zapcore.WriteSyncer, error) {
	stdout := zapcore.Lock(os.Stdout)
	if cfg.Output == "" || cfg.Output == "stdout" {
		return stdout, nil
	}

	// Ensure the directory exists with secure permissions
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0750); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file := zapcore.AddSync(&lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize, // megabytes
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge, // days
		Compress:   cfg.Compress,
	})

	if cfg.Output == "file" {
		return file, nil
	}
	return zapcore.NewMultiWriteSyncer(stdout, file), nil
}
