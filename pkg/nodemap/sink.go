package nodemap

import "log/slog"

// Sink receives the advisory events raised while registering matchers:
// deprecated filter spellings and conflicting registrations. Events
// are informational only; registration always proceeds.
type Sink interface {
	// DeprecatedFilter reports use of a legacy filter spelling.
	DeprecatedFilter(key, used, replacement string)

	// OverrideConflict reports a registration whose filters collide
	// with an existing registration carrying a different value.
	OverrideConflict(key string, newValue, existingValue any)
}

// slogSink routes advisory events to a slog.Logger at warn level.
type slogSink struct {
	logger *slog.Logger
}

// NewSlogSink returns a Sink logging through logger, or through
// slog.Default() when logger is nil.
func NewSlogSink(logger *slog.Logger) Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &slogSink{logger: logger}
}

func (s *slogSink) DeprecatedFilter(key, used, replacement string) {
	s.logger.Warn("deprecated filter spelling",
		"key", key,
		"used", used,
		"replacement", replacement)
}

func (s *slogSink) OverrideConflict(key string, newValue, existingValue any) {
	s.logger.Warn("conflicting value registered without override",
		"key", key,
		"new_value", newValue,
		"existing_value", existingValue)
}

// NopSink discards all advisory events.
type NopSink struct{}

// DeprecatedFilter implements Sink.
func (NopSink) DeprecatedFilter(string, string, string) {}

// OverrideConflict implements Sink.
func (NopSink) OverrideConflict(string, any, any) {}

var (
	_ Sink = (*slogSink)(nil)
	_ Sink = NopSink{}
)
