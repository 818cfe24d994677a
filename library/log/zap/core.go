package zap

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tileplay/carcassonne/library/log/zap/conf"
)

const timeFormat = "2006/01/02 15:04:05.000"

// backend is the zap logger behind Logger together with its level switch and
// the rotated files it writes to.
type backend struct {
	log   *zap.Logger
	level zap.AtomicLevel
	files []io.Closer
}

func (b *backend) close() error {
	_ = b.log.Sync()
	var errs []error
	for _, f := range b.files {
		errs = append(errs, f.Close())
	}
	return errors.Join(errs...)
}

// build tees stderr with, in production mode, the application file and an
// optional errors-only file.
func build(c *conf.Logger) (*backend, error) {
	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}

	b := &backend{level: level}
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig(true)), zapcore.Lock(os.Stderr), level),
	}
	if c.Mode == conf.MODE_PROD && c.Directory != "" {
		name := c.AppName
		if name == "" {
			name = "app"
		}
		cores = append(cores, b.fileCore(c, name+".log", level))
		if c.ErrorFile {
			cores = append(cores, b.fileCore(c, name+"_error.log", zap.ErrorLevel))
		}
	}

	b.log = zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zap.PanicLevel),
		zap.WrapCore(func(core zapcore.Core) zapcore.Core {
			return zapcore.NewSamplerWithOptions(core, time.Second, 2000, 10)
		}),
	)
	return b, nil
}

func (b *backend) fileCore(c *conf.Logger, filename string, enab zapcore.LevelEnabler) zapcore.Core {
	w := &lumberjack.Logger{
		Filename:   filepath.Join(c.Directory, filename),
		MaxSize:    int(c.Rotate.MaxSizeMB),
		MaxBackups: int(c.Rotate.MaxBackups),
		MaxAge:     int(c.Rotate.MaxAgeDays),
		Compress:   c.Rotate.Compress,
		LocalTime:  c.Rotate.LocalTime,
	}
	b.files = append(b.files, w)

	enc := zapcore.NewConsoleEncoder(encoderConfig(false))
	if c.FormatJson {
		enc = zapcore.NewJSONEncoder(encoderConfig(false))
	}
	return zapcore.NewCore(enc, zapcore.AddSync(w), enab)
}

func encoderConfig(color bool) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.ConsoleSeparator = " "
	cfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString("[" + t.Format(timeFormat) + "]")
	}
	cfg.EncodeCaller = func(c zapcore.EntryCaller, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString("[" + c.TrimmedPath() + "]")
	}
	cfg.EncodeLevel = func(l zapcore.Level, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString("[" + l.CapitalString() + "]")
	}
	if color {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return cfg
}
