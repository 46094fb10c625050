package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"gopkg.in/natefinch/lumberjack.v2"
)

// setupLogging installs the default logger: colour on a terminal, JSON lines
// in a rotated file when logFile is set. The returned func closes the file.
func setupLogging(level slog.Level, logFile string, stderr *os.File) func() error {
	if logFile != "" {
		w := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
			LocalTime:  true,
		}
		slog.SetDefault(slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})))
		return w.Close
	}

	slog.SetDefault(slog.New(
		tint.NewHandler(stderr, &tint.Options{
			Level:      level,
			TimeFormat: time.DateTime,
			NoColor:    !isatty.IsTerminal(stderr.Fd()),
		}),
	))
	return func() error { return nil }
}
