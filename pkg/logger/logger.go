// Package logger builds the structured zap.Logger every core component
// takes as a constructor argument.
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a zap.Logger from a level ("debug"/"info"/...), an encoding
// format ("json" or anything else for console), and output targets.
// output may list several comma-separated targets — "stdout" and/or file
// paths — all written to by the same core, so a deployment can tee to the
// console and a log file without building two loggers.
func New(level string, format string, output string) (*zap.Logger, error) {
	var atomicLevel zap.AtomicLevel
	if err := atomicLevel.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	var encoderConfig zapcore.EncoderConfig
	if format == "json" {
		encoderConfig = zap.NewProductionEncoderConfig()
	} else {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	var encoder zapcore.Encoder
	if format == "json" {
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	}

	writer, err := fanOutWriters(output)
	if err != nil {
		return nil, err
	}

	core := zapcore.NewCore(encoder, writer, atomicLevel)
	return zap.New(core, zap.AddCaller()), nil
}

// fanOutWriters opens every comma-separated target in output and combines
// them into one WriteSyncer. An empty target, or the literal "stdout",
// writes to os.Stdout; anything else is opened as an append-only file.
func fanOutWriters(output string) (zapcore.WriteSyncer, error) {
	targets := strings.Split(output, ",")
	syncers := make([]zapcore.WriteSyncer, 0, len(targets))
	for _, target := range targets {
		target = strings.TrimSpace(target)
		if target == "" || target == "stdout" {
			syncers = append(syncers, zapcore.AddSync(os.Stdout))
			continue
		}
		file, err := os.OpenFile(target, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, err
		}
		syncers = append(syncers, zapcore.AddSync(file))
	}
	return zapcore.NewMultiWriteSyncer(syncers...), nil
}

// NewNop returns a logger that discards everything, for tests.
func NewNop() *zap.Logger {
	return zap.NewNop()
}
