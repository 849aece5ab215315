package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// options collects the settings applied by New.
type options struct {
	sink       zapcore.WriteSyncer
	level      zapcore.LevelEnabler
	color      bool
	zapOptions []zap.Option
}

// Option configures a logger built by New.
type Option func(*options)

// WithSink replaces stderr as the destination. Colors are turned off,
// since a sink other than stderr is usually a file or a test buffer.
func WithSink(sink zapcore.WriteSyncer) Option {
	return func(o *options) {
		o.sink = sink
		o.color = false
	}
}

// WithLevel replaces the shared level with a fixed one.
func WithLevel(level zapcore.LevelEnabler) Option {
	return func(o *options) {
		if level != nil {
			o.level = level
		}
	}
}

// WithZapOptions passes options through to zap.New.
func WithZapOptions(zapOptions ...zap.Option) Option {
	return func(o *options) {
		o.zapOptions = append(o.zapOptions, zapOptions...)
	}
}
