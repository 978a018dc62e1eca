package events

import "log/slog"

// LogEmitter broadcasts events as structured log lines. It is the default
// production sink when no subscriber transport is configured.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter wraps the supplied logger. A nil logger falls back to the
// process default.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger.With("component", "events")}
}

// Emit implements the Emitter interface.
func (e *LogEmitter) Emit(evt Event) {
	if evt == nil {
		return
	}
	rec := evt.Record()
	if rec == nil {
		return
	}
	attrs := make([]any, 0, len(rec.Attributes)*2)
	for key, value := range rec.Attributes {
		attrs = append(attrs, slog.String(key, value))
	}
	e.logger.Info(rec.Type, attrs...)
}
