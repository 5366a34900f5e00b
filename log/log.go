// SPDX-License-Identifier: MIT

// Package log holds the process-wide zap logger shared by the device layer,
// the linear-algebra core and the command-line front-end.
package log

import (
	"os"
	"sync"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Flag names registered by AddFlags.
const (
	FlagDebug      = "debug"
	FlagPath       = "log-path"
	FlagMaxSize    = "log-max-size"
	FlagMaxAge     = "log-max-age"
	FlagMaxBackups = "log-max-backups"
)

const timeLayout = "2006-01-02 15:04:05.999999"

var (
	mu     sync.RWMutex
	logger = zap.NewNop()
)

// Logger returns the current logger. It is a no-op logger until SetLogger
// or Use is called, so library callers stay silent by default.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Use replaces the current logger. Passing nil installs a no-op logger.
func Use(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	mu.Lock()
	logger = l
	mu.Unlock()
}

// FileSink describes an optional rotating log file.
type FileSink struct {
	Path       string
	MaxSize    int // megabytes
	MaxAge     int // days
	MaxBackups int
}

// SetLogger builds a logger writing to stderr and, when sink.Path is set,
// to a rotating file. Debug mode uses the console encoder at debug level;
// otherwise JSON at info level.
func SetLogger(debug bool, sink FileSink) {
	var (
		encoder zapcore.Encoder
		level   zapcore.LevelEnabler
	)
	timeEncoder := zapcore.TimeEncoderOfLayout(timeLayout)
	if debug {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = timeEncoder
		encoder = zapcore.NewConsoleEncoder(cfg)
		level = zap.DebugLevel
	} else {
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = timeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
		level = zap.InfoLevel
	}
	writers := []zapcore.WriteSyncer{zapcore.AddSync(os.Stderr)}
	if sink.Path != "" {
		writers = append(writers, zapcore.AddSync(&lumberjack.Logger{
			Filename:   sink.Path,
			MaxSize:    sink.MaxSize,
			MaxAge:     sink.MaxAge,
			MaxBackups: sink.MaxBackups,
		}))
	}
	core := zapcore.NewCore(encoder, zap.CombineWriteSyncers(writers...), level)
	Use(zap.New(core))
}

// AddFlags registers the logging flags on flagSet.
func AddFlags(flagSet *pflag.FlagSet) {
	flagSet.Bool(FlagDebug, false, "enable debug logging")
	flagSet.String(FlagPath, "", "path of log file")
	flagSet.Int(FlagMaxSize, 100, "maximum size in megabytes of the log file")
	flagSet.Int(FlagMaxAge, 0, "maximum number of days to retain old log files")
	flagSet.Int(FlagMaxBackups, 0, "maximum number of old log files to retain")
}

// Sync flushes buffered entries; errors from syncing stderr are ignored.
func Sync() {
	_ = Logger().Sync()
}
