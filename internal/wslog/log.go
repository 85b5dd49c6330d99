// Package wslog builds the process-wide zap logger and the conventions
// for deriving subsystem-scoped child loggers from it, instead of
// reaching for a package-level global everywhere.
package wslog

import (
	"fmt"
	"os"

	"github.com/DeRuina/timberjack"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a logger at the given level name ("debug", "info", "warn",
// "error"); an empty level defaults to "info". It always logs to the
// console; when logFile is non-empty it additionally logs JSON-encoded
// lines to that file, rotated by timberjack once it passes 100 MiB, with
// up to 10 rotated backups kept for 28 days and compressed.
func New(level, logFile string) (*zap.Logger, error) {
	var lvl zapcore.Level
	if level == "" {
		level = "info"
	}
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("parsing log level %q: %w", level, err)
	}
	atomicLvl := zap.NewAtomicLevelAt(lvl)

	consoleEncCfg := zap.NewProductionEncoderConfig()
	consoleEncCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	consoleEncCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(consoleEncCfg), zapcore.Lock(zapcore.AddSync(os.Stderr)), atomicLvl)

	if logFile != "" {
		roller := &timberjack.Logger{
			Filename:   logFile,
			MaxSize:    100,
			MaxBackups: 10,
			MaxAge:     28,
			Compress:   true,
		}
		fileEncCfg := zap.NewProductionEncoderConfig()
		fileEncCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(fileEncCfg), zapcore.AddSync(roller), atomicLvl)
		core = zapcore.NewTee(core, fileCore)
	}

	return zap.New(core, zap.AddCaller(), zap.ErrorOutput(zapcore.Lock(zapcore.AddSync(os.Stderr)))), nil
}

// Named returns a child logger scoped to the given subsystem name.
func Named(base *zap.Logger, name string) *zap.Logger {
	return base.Named(name)
}
