package zap

import (
	"fmt"
	"runtime"
	"strings"
	"sync/atomic"

	"github.com/go-kratos/kratos/v2/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tileplay/carcassonne/library/log/zap/conf"
)

var _ log.Logger = (*Logger)(nil)

const sensitiveMask = "***"

// Logger adapts zap to the kratos log.Logger interface. Values of keys
// marked sensitive are masked.
type Logger struct {
	b         *backend
	sensitive atomic.Pointer[map[string]struct{}]
}

// NewLogger panics on an invalid config; it runs once at startup.
func NewLogger(c *conf.Bootstrap) *Logger {
	if c == nil {
		c = conf.DefaultConfig()
	}
	if err := c.Validate(); err != nil {
		panic(err)
	}
	lc := c.Log.Logger
	b, err := build(lc)
	if err != nil {
		panic(err)
	}
	l := &Logger{b: b}
	l.SetSensitive(lc.Sensitive)
	b.log.Debug("logger ready",
		zap.Int32("mode", int32(lc.Mode)), zap.String("level", lc.Level), zap.String("directory", lc.Directory))
	return l
}

func zapLevel(level log.Level) zapcore.Level {
	switch level {
	case log.LevelDebug:
		return zapcore.DebugLevel
	case log.LevelWarn:
		return zapcore.WarnLevel
	case log.LevelError:
		return zapcore.ErrorLevel
	case log.LevelFatal:
		return zapcore.FatalLevel
	default:
		return zapcore.InfoLevel
	}
}

func (l *Logger) Log(level log.Level, keyvals ...any) error {
	zl := zapLevel(level)
	if !l.b.log.Core().Enabled(zl) {
		return nil
	}
	if len(keyvals) == 0 || len(keyvals)%2 != 0 {
		l.b.log.Warn(fmt.Sprint("Keyvalues must appear in pairs: ", keyvals))
		return nil
	}

	var msg string
	mask := l.sensitive.Load()
	fields := make([]zap.Field, 0, len(keyvals)/2)
	for i := 0; i < len(keyvals); i += 2 {
		key := fmt.Sprint(keyvals[i])
		switch {
		case key == log.DefaultMessageKey:
			msg, _ = keyvals[i+1].(string)
		case mask != nil && masked(*mask, key):
			fields = append(fields, zap.String(key, sensitiveMask))
		default:
			fields = append(fields, zap.Any(key, keyvals[i+1]))
		}
	}

	if ce := l.b.log.WithOptions(zap.AddCallerSkip(callerSkip())).Check(zl, msg); ce != nil {
		ce.Write(fields...)
	}
	return nil
}

func masked(set map[string]struct{}, key string) bool {
	_, ok := set[strings.ToLower(key)]
	return ok
}

func (l *Logger) Close() error {
	return l.b.close()
}

func (l *Logger) GetLevel() string {
	return l.b.level.String()
}

// SetLevel changes the level of every core at runtime.
func (l *Logger) SetLevel(level string) {
	if err := l.b.level.UnmarshalText([]byte(level)); err != nil {
		l.b.log.Warn("invalid log level", zap.String("level", level), zap.Error(err))
		return
	}
	l.b.log.Info("log level updated", zap.String("level", level))
}

// SetSensitive replaces the masked keys. Matching ignores case.
func (l *Logger) SetSensitive(keys []string) {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[strings.ToLower(k)] = struct{}{}
	}
	l.sensitive.Store(&set)
}

// callerSkip points the caller annotation past the kratos facade. Calls via
// log.Helper add one frame over the global log functions.
func callerSkip() int {
	pc := make([]uintptr, 8)
	n := runtime.Callers(3, pc)
	frames := runtime.CallersFrames(pc[:n])
	for {
		frame, more := frames.Next()
		if strings.Contains(frame.Function, "kratos/v2/log.(*") {
			return 3
		}
		if !more {
			return 2
		}
	}
}
