package logs

import (
	"log/slog"
	"os"
)

var IsDebugMode = os.Getenv("DEBUG") != "" && os.Getenv("DEBUG") != "0" && os.Getenv("DEBUG") != "false"

var logger = newLogger()

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if IsDebugMode {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With("service", "payment-service")
}

// ShowLogs prints msg only when DEBUG is enabled.
func ShowLogs(msg string, args ...any) {
	if IsDebugMode {
		logger.Debug(msg, args...)
	}
}

func Info(msg string, args ...any) {
	logger.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	logger.Warn(msg, args...)
}

func Error(msg string, args ...any) {
	logger.Error(msg, args...)
}
