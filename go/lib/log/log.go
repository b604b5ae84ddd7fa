// Copyright 2020 Anapaya Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log configures the process-wide structured logger used by every
// beacon server component.
package log

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ConsoleConfig configures the console logging sink.
type ConsoleConfig struct {
	// Level is one of "debug", "info", "warn", "error", "crit".
	Level string
}

// Config is the top-level logging configuration.
type Config struct {
	Console ConsoleConfig
}

var (
	mtx  sync.Mutex
	root = zap.NewNop()
)

// Setup installs the process-wide logger according to cfg. It is safe to
// call more than once; the most recent call wins.
func Setup(cfg Config) error {
	level, err := parseLevel(cfg.Console.Level)
	if err != nil {
		return err
	}
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "time"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	core := zapcore.NewCore(
		zapcore.NewConsoleEncoder(encoderCfg),
		zapcore.Lock(zapcore.AddSync(os.Stdout)),
		level,
	)
	l := zap.New(core)
	mtx.Lock()
	root = l
	mtx.Unlock()
	return nil
}

func parseLevel(s string) (zapcore.Level, error) {
	switch s {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	case "crit":
		return zapcore.DPanicLevel, nil
	default:
		var lvl zapcore.Level
		if err := lvl.Set(s); err != nil {
			return 0, err
		}
		return lvl, nil
	}
}

// Root returns the process-wide logger.
func Root() *zap.Logger {
	mtx.Lock()
	defer mtx.Unlock()
	return root
}

func Debug(msg string, fields ...zap.Field) { Root().Debug(msg, fields...) }
func Info(msg string, fields ...zap.Field)  { Root().Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Root().Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Root().Error(msg, fields...) }
