package gcp

import (
	"github.com/emergentdev/emergent/internal/security"
)

// SecureSink wraps a LogSink with automatic sanitization so engine
// keys and other credentials never reach the log backend, even when a
// tool echoes them.
type SecureSink struct {
	sink      LogSink
	sanitizer *security.LogSanitizer
}

// NewSecureSink wraps the given sink with sanitization.
func NewSecureSink(sink LogSink) *SecureSink {
	return &SecureSink{
		sink:      sink,
		sanitizer: security.NewLogSanitizer(),
	}
}

func (s *SecureSink) sanitizeFields(fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		return nil
	}
	clean := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		if str, ok := v.(string); ok {
			clean[k] = s.sanitizer.Sanitize(str)
		} else {
			clean[k] = v
		}
	}
	return clean
}

// Info logs a sanitized INFO entry.
func (s *SecureSink) Info(message string, fields map[string]interface{}) {
	s.sink.Info(s.sanitizer.Sanitize(message), s.sanitizeFields(fields))
}

// Warning logs a sanitized WARNING entry.
func (s *SecureSink) Warning(message string, fields map[string]interface{}) {
	s.sink.Warning(s.sanitizer.Sanitize(message), s.sanitizeFields(fields))
}

// Error logs a sanitized ERROR entry.
func (s *SecureSink) Error(message string, fields map[string]interface{}) {
	s.sink.Error(s.sanitizer.Sanitize(message), s.sanitizeFields(fields))
}

// Close closes the wrapped sink.
func (s *SecureSink) Close() error {
	return s.sink.Close()
}

var _ LogSink = (*SecureSink)(nil)
