package monitoring

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with convenience helpers for the scoring service.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a JSON logger writing to stdout at the given level.
func NewLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Value = slog.StringValue(a.Value.Time().UTC().Format(time.RFC3339Nano))
			}
			return a
		},
	})

	return &Logger{Logger: slog.New(handler)}
}

// SetAsDefault installs this logger as the process default.
func (l *Logger) SetAsDefault() {
	slog.SetDefault(l.Logger)
}

// WithComponent returns a logger scoped to a named component.
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{Logger: l.Logger.With("component", name)}
}

// PredictionLogger logs a completed scoring run for one lead, carrying the
// request id when the context holds one.
func (l *Logger) PredictionLogger(ctx context.Context, leadID, modelID string, probability float64, durationMs int64) {
	l.LogWithContext(ctx, slog.LevelInfo, "prediction computed",
		"lead_id", leadID,
		"model_id", modelID,
		"conversion_probability", probability,
		"duration_ms", durationMs,
	)
}

// BatchLogger logs a completed batch scoring run.
func (l *Logger) BatchLogger(ctx context.Context, size int, durationMs int64) {
	l.LogWithContext(ctx, slog.LevelInfo, "batch prediction computed",
		"batch_size", size,
		"duration_ms", durationMs,
	)
}

// TrainingLogger logs training job state transitions.
func (l *Logger) TrainingLogger(jobID, status string, progress int) {
	l.Info("training job update",
		"job_id", jobID,
		"status", status,
		"progress", progress,
	)
}

// RequestLogger logs an HTTP request in structured form.
func (l *Logger) RequestLogger(method, path, ip string, status int, duration time.Duration) {
	l.Info("http request",
		"method", method,
		"path", path,
		"ip", ip,
		"status", status,
		"duration_ms", duration.Milliseconds(),
	)
}

// APIErrorLogger logs an API-level failure with request context.
func (l *Logger) APIErrorLogger(method, path string, status int, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	l.Error("api error",
		"method", method,
		"path", path,
		"status", status,
		"error", msg,
	)
}

// LogWithContext extracts a request ID from the context when present.
func (l *Logger) LogWithContext(ctx context.Context, level slog.Level, msg string, args ...any) {
	if requestID, ok := ctx.Value(requestIDKey{}).(string); ok && requestID != "" {
		args = append(args, "request_id", requestID)
	}
	l.Log(ctx, level, msg, args...)
}

type requestIDKey struct{}

// ContextWithRequestID stores a request ID for downstream log calls.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
