package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/feichai0017/document-intake/config"
)

// Options controls how NewLogger builds its sinks.
type Options struct {
	Level       string
	Encoding    string
	OutputPaths []string
	MaxSizeMB   int
	MaxBackups  int
	MaxAgeDays  int
	Compress    bool
	Development bool
	Fields      map[string]interface{}
}

type Option func(*Options)

func WithLevel(level string) Option {
	return func(o *Options) {
		if level != "" {
			o.Level = level
		}
	}
}

func WithEncoding(encoding string) Option {
	return func(o *Options) {
		if encoding != "" {
			o.Encoding = encoding
		}
	}
}

// WithOutputPaths sets the sinks. "stdout" and "stderr" are streams; any
// other entry is a file rotated by lumberjack.
func WithOutputPaths(paths []string) Option {
	return func(o *Options) {
		if len(paths) > 0 {
			o.OutputPaths = paths
		}
	}
}

func WithDevelopment(dev bool) Option {
	return func(o *Options) { o.Development = dev }
}

// WithInitialFields attaches fields to every entry, e.g. the service name.
func WithInitialFields(fields map[string]interface{}) Option {
	return func(o *Options) {
		for k, v := range fields {
			o.Fields[k] = v
		}
	}
}

// WithConfig applies a loaded LogConfig. Zero rotation settings keep the defaults.
func WithConfig(cfg config.LogConfig) Option {
	return func(o *Options) {
		WithLevel(cfg.Level)(o)
		WithEncoding(cfg.Encoding)(o)
		WithOutputPaths(cfg.OutputPaths)(o)
		o.Development = cfg.Development
		o.Compress = cfg.Compress
		if cfg.MaxSizeMB > 0 {
			o.MaxSizeMB = cfg.MaxSizeMB
		}
		if cfg.MaxBackups > 0 {
			o.MaxBackups = cfg.MaxBackups
		}
		if cfg.MaxAgeDays > 0 {
			o.MaxAgeDays = cfg.MaxAgeDays
		}
	}
}

// New builds the process logger for one binary from its configuration.
func New(cfg config.LogConfig, service string) (Logger, error) {
	return NewLogger(WithConfig(cfg), WithInitialFields(map[string]interface{}{"service": service}))
}

func NewLogger(opts ...Option) (Logger, error) {
	o := &Options{
		Level:       "info",
		Encoding:    "json",
		OutputPaths: []string{"stdout"},
		MaxSizeMB:   100,
		MaxBackups:  3,
		MaxAgeDays:  7,
		Compress:    true,
		Fields:      make(map[string]interface{}),
	}
	for _, opt := range opts {
		opt(o)
	}

	level := zap.NewAtomicLevel()
	if err := level.UnmarshalText([]byte(o.Level)); err != nil {
		return nil, fmt.Errorf("can't parse log level: %w", err)
	}

	encoder := newEncoder(o.Encoding)
	cores := make([]zapcore.Core, 0, len(o.OutputPaths))
	for _, path := range o.OutputPaths {
		sink, err := o.sink(path)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(encoder, sink, level))
	}

	zapOpts := []zap.Option{zap.AddCaller(), zap.AddCallerSkip(1)}
	if o.Development {
		zapOpts = append(zapOpts, zap.Development())
	}
	if len(o.Fields) > 0 {
		fields := make([]zap.Field, 0, len(o.Fields))
		for k, v := range o.Fields {
			fields = append(fields, zap.Any(k, v))
		}
		zapOpts = append(zapOpts, zap.Fields(fields...))
	}

	return &logger{zap: zap.New(zapcore.NewTee(cores...), zapOpts...)}, nil
}

func (o *Options) sink(path string) (zapcore.WriteSyncer, error) {
	switch path {
	case "stdout":
		return zapcore.Lock(os.Stdout), nil
	case "stderr":
		return zapcore.Lock(os.Stderr), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("can't create log directory: %w", err)
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   path,
		MaxSize:    o.MaxSizeMB,
		MaxBackups: o.MaxBackups,
		MaxAge:     o.MaxAgeDays,
		Compress:   o.Compress,
	}), nil
}

func newEncoder(encoding string) zapcore.Encoder {
	ec := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}
	if encoding == "console" {
		return zapcore.NewConsoleEncoder(ec)
	}
	return zapcore.NewJSONEncoder(ec)
}
