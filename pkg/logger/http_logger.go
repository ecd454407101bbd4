package logger

import (
	"log/slog"
	"time"
)

// HTTPLogger renders request access logs in a consistent shape, separate from
// application logging so the access log stream can be filtered or shipped on
// its own.
type HTTPLogger struct {
	log *slog.Logger
}

func NewHTTPLogger(log *slog.Logger) *HTTPLogger {
	return &HTTPLogger{log: log.With(Scope("http"))}
}

// LogRequest emits one access log record per completed request.
func (h *HTTPLogger) LogRequest(ip, method, uri string, status int, latency time.Duration, userAgent, requestID string) {
	level := slog.LevelInfo
	if status >= 500 {
		level = slog.LevelError
	} else if status >= 400 {
		level = slog.LevelWarn
	}

	h.log.LogAttrs(nil, level, "request",
		slog.String("ip", ip),
		slog.String("method", method),
		slog.String("uri", uri),
		slog.Int("status", status),
		slog.Duration("latency", latency),
		slog.String("user_agent", userAgent),
		slog.String("request_id", requestID),
	)
}
