package logging

import (
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a JSON slog logger configured at the provided level. If the
// level string is invalid it defaults to info. When file is non-empty the
// output is also written to a size-rotated log file.
func New(level, file string) *slog.Logger {
	return NewTo(os.Stdout, level, file)
}

// NewTo is New writing to console instead of stdout.
func NewTo(console io.Writer, level, file string) *slog.Logger {
	out := console
	if file != "" {
		out = io.MultiWriter(console, &lumberjack.Logger{
			Filename:   file,
			MaxSize:    20,
			MaxBackups: 5,
			MaxAge:     14,
			Compress:   true,
		})
	}
	return NewWithWriter(level, out)
}

// NewWithWriter builds the same masked JSON logger on an arbitrary writer.
func NewWithWriter(level string, w io.Writer) *slog.Logger {
	lvl := new(slog.LevelVar)
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl.Set(slog.LevelInfo)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	return slog.New(NewMaskingHandler(handler))
}

// Discard returns a logger that drops all output. Useful for tests.
func Discard() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError})
	return slog.New(handler)
}
