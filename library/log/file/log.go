package file

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	timeFormat        = "2006/01/02 15:04:05"
	defaultMaxSize    = 10 // MB
	defaultMaxAge     = 7  // days
	defaultMaxBackups = 3
)

// Log writes a single rotated plain-text file, one line per record.
type Log struct {
	logger *zap.Logger
	lj     *lumberjack.Logger
}

func NewFileLog(filename string) *Log {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeLevel = nil
	encoderCfg.EncodeCaller = nil
	encoderCfg.EncodeTime = customTimeEncoder
	encoderCfg.ConsoleSeparator = " "
	fileEnc := zapcore.NewConsoleEncoder(encoderCfg)
	lj := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    defaultMaxSize,
		MaxAge:     defaultMaxAge,
		MaxBackups: defaultMaxBackups,
		LocalTime:  true,
		Compress:   true,
	}
	return &Log{
		logger: zap.New(zapcore.NewCore(fileEnc, zapcore.AddSync(lj), zapcore.InfoLevel)),
		lj:     lj,
	}
}

func customTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString("[" + t.Format(timeFormat) + "]")
}

func (l *Log) Sync() error {
	return l.logger.Sync()
}

// Close flushes and releases the underlying file.
func (l *Log) Close() error {
	_ = l.logger.Sync()
	return l.lj.Close()
}

// Infow writes a structured record.
func (l *Log) Infow(msg string, kvs ...any) {
	l.logger.Sugar().Infow(msg, kvs...)
}

func (l *Log) WriteLog(msg string, args ...any) {
	l.logger.Sugar().Infof(msg, args...)
}
