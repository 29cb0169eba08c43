package utils

import (
	"log/slog"
	"os"
	"sync"
)

var (
	logger     = slog.Default()
	loggerOnce sync.Once
)

func InfoLog(component string, msg string, args ...any) {
	logger.Info(msg, append([]any{"component", component}, args...)...)
}

func DebugLog(component string, msg string, args ...any) {
	logger.Debug(msg, append([]any{"component", component}, args...)...)
}

func ErrorLog(component string, msg string, args ...any) {
	logger.Error(msg, append([]any{"component", component}, args...)...)
}

func WarnLog(component string, msg string, args ...any) {
	logger.Warn(msg, append([]any{"component", component}, args...)...)
}

// GetComponentLogger 组件日志 后续日志都会携带 component 字段
func GetComponentLogger(component string) *slog.Logger {
	return logger.With("component", component)
}

func InitLogger(debug bool) {
	loggerOnce.Do(func() {
		var level = slog.LevelInfo
		if debug {
			level = slog.LevelDebug
		}

		jsonHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: level,
			ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
				if attr.Key == slog.TimeKey {
					formattedTime := attr.Value.Time().Format("2006-01-02 15:04:05")
					return slog.String(slog.TimeKey, formattedTime)
				}
				return attr
			},
		})
		logger = slog.New(jsonHandler)
	})
}
