// Package logging builds the zap logger used by the command line tool.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Conf configures the logger. Output is stderr, stdout or file.
type Conf struct {
	Level      string `mapstructure:"level"`
	Output     string `mapstructure:"output"`
	Path       string `mapstructure:"path"`
	Filename   string `mapstructure:"filename"`
	RotateSize int    `mapstructure:"rotate_size"` // MB
	RotateNum  int    `mapstructure:"rotate_num"`
	KeepDays   int    `mapstructure:"keep_days"`
}

// SetDefaults returns a logger configuration writing warnings to stderr.
// Patterns go to stdout, so logs stay off it by default.
func SetDefaults() *Conf {
	return &Conf{
		Level:      "warn",
		Output:     "stderr",
		Path:       "./logs",
		Filename:   "sngram.log",
		RotateSize: 100,
		RotateNum:  10,
		KeepDays:   7,
	}
}

func (c *Conf) Validate() error {
	switch c.Output {
	case "", "stderr", "stdout":
	case "file":
		if c.Path == "" {
			return fmt.Errorf("log path is required when output is 'file'")
		}
		if c.Filename == "" {
			c.Filename = "sngram.log"
		}
		if c.RotateSize <= 0 {
			c.RotateSize = 100
		}
		if c.RotateNum <= 0 {
			c.RotateNum = 10
		}
		if c.KeepDays <= 0 {
			c.KeepDays = 7
		}
	default:
		return fmt.Errorf("unknown log output %q", c.Output)
	}
	if _, err := zapcore.ParseLevel(c.Level); c.Level != "" && err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	return nil
}

// NewLog builds a console logger from conf.
func NewLog(conf *Conf) (*zap.Logger, error) {
	if err := conf.Validate(); err != nil {
		return nil, fmt.Errorf("invalid log config: %w", err)
	}

	var ws zapcore.WriteSyncer
	switch conf.Output {
	case "stdout":
		ws = zapcore.AddSync(os.Stdout)
	case "file":
		if err := os.MkdirAll(conf.Path, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		ws = zapcore.AddSync(fileWriter(conf))
	default:
		ws = zapcore.AddSync(os.Stderr)
	}

	level := zapcore.WarnLevel
	if conf.Level != "" {
		level, _ = zapcore.ParseLevel(strings.ToLower(conf.Level))
	}
	core := zapcore.NewCore(encoder(), ws, level)
	return zap.New(core, zap.AddCaller()), nil
}

// New writes to w at level. Used by tests and for quick setups.
func New(w io.Writer, level zapcore.Level) *zap.Logger {
	return zap.New(zapcore.NewCore(encoder(), zapcore.AddSync(w), level))
}

func fileWriter(conf *Conf) io.Writer {
	return &lumberjack.Logger{
		Filename:   filepath.Join(conf.Path, conf.Filename),
		MaxSize:    conf.RotateSize,
		MaxBackups: conf.RotateNum,
		MaxAge:     conf.KeepDays,
		Compress:   true,
	}
}

func encoder() zapcore.Encoder {
	cfg := zap.NewDevelopmentEncoderConfig()
	cfg.TimeKey = "time"
	cfg.LevelKey = "level"
	cfg.CallerKey = "caller"
	cfg.MessageKey = "msg"
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.EncodeTime = timeEncoder
	cfg.EncodeDuration = zapcore.SecondsDurationEncoder
	cfg.EncodeCaller = zapcore.ShortCallerEncoder
	return zapcore.NewConsoleEncoder(cfg)
}

func timeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(t.Format("2006-01-02 15:04:05"))
}
