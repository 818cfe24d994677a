package conf

import "fmt"

type Mode int32

const (
	MODE_DEV  Mode = 0
	MODE_PROD Mode = 1
)

type Bootstrap struct {
	Log *Log `json:"log"`
}

type Log struct {
	Logger *Logger `json:"logger"`
}

type Logger struct {
	Mode       Mode     `json:"mode"`
	AppName    string   `json:"app_name"`
	Level      string   `json:"level"`
	Directory  string   `json:"directory"`
	FormatJson bool     `json:"format_json"`
	ErrorFile  bool     `json:"error_file"`
	Sensitive  []string `json:"sensitive"`
	Rotate     *Rotate  `json:"rotate"`
}

type Rotate struct {
	MaxSizeMB  int32 `json:"max_size_mb"`
	MaxBackups int32 `json:"max_backups"`
	MaxAgeDays int32 `json:"max_age_days"`
	Compress   bool  `json:"compress"`
	LocalTime  bool  `json:"local_time"`
}

// Validate fills unset sections with defaults and rejects unusable values.
func (b *Bootstrap) Validate() error {
	def := DefaultConfig().Log
	if b.Log == nil {
		b.Log = def
	}
	if b.Log.Logger == nil {
		b.Log.Logger = def.Logger
	}
	l := b.Log.Logger
	if l.Rotate == nil {
		l.Rotate = def.Logger.Rotate
	}
	if l.Level == "" {
		l.Level = def.Logger.Level
	}
	if l.Mode != MODE_DEV && l.Mode != MODE_PROD {
		return fmt.Errorf("log.logger.mode: unknown mode %d", l.Mode)
	}
	return nil
}

func DefaultConfig(opts ...Option) *Bootstrap {
	c := &Log{
		Logger: &Logger{
			Mode:       MODE_DEV,
			AppName:    "app",
			Level:      "debug",
			Directory:  "./logs",
			FormatJson: false,
			ErrorFile:  false,
			Sensitive:  []string{},
			Rotate: &Rotate{
				MaxSizeMB:  100,
				MaxBackups: 7,
				MaxAgeDays: 7,
				Compress:   true,
				LocalTime:  true,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return &Bootstrap{Log: c}
}

type Option func(*Log)

func WithAppName(appName string) Option {
	return func(c *Log) { c.Logger.AppName = appName }
}

func WithProduction() Option {
	return func(c *Log) {
		c.Logger.Mode = MODE_PROD
		c.Logger.Level = "info"
	}
}

func WithLevel(level string) Option {
	return func(c *Log) { c.Logger.Level = level }
}

func WithDirectory(dir string) Option {
	return func(c *Log) { c.Logger.Directory = dir }
}

func WithErrorFile(enabled bool) Option {
	return func(c *Log) { c.Logger.ErrorFile = enabled }
}
