// Package logging builds the process logger for the configured sinks.
package logging

import (
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/arjfabian/hostpulse/internal/config"
)

const (
	FileName      = "hostpulse.log"
	MaxSizeMB     = 10
	MaxBackups    = 5
	FlushInterval = time.Second
)

// New returns a logger writing to the sinks selected by output. The close
// func flushes buffered file output and must be called before exit.
func New(output config.LogOutput, dir string) (*zap.Logger, func() error, error) {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)

	var (
		cores   []zapcore.Core
		closers []func() error
	)

	if output == config.LogConsole || output == config.LogBoth {
		encCfg := zap.NewDevelopmentEncoderConfig()
		encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stdout),
			level,
		))
	}

	if output == config.LogFile || output == config.LogBoth {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, err
		}
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(dir, FileName),
			MaxSize:    MaxSizeMB,
			MaxBackups: MaxBackups,
			LocalTime:  true,
		}
		ws := &zapcore.BufferedWriteSyncer{
			WS:            zapcore.AddSync(rotator),
			FlushInterval: FlushInterval,
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			ws,
			level,
		))
		closers = append(closers, ws.Stop, rotator.Close)
	}

	logger := zap.New(zapcore.NewTee(cores...), zap.AddCaller())

	closeFn := func() error {
		// Sync on stdout fails on some terminals; only the file sinks matter here.
		_ = logger.Sync()
		var err error
		for _, c := range closers {
			err = multierr.Append(err, c())
		}
		return err
	}
	return logger, closeFn, nil
}
