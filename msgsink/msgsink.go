// Package msgsink adapts the spec's symbolic message severities onto a
// github.com/go-logr/logr.Logger, the logging collaborator the rest of
// the pack (rstms-iso-kit) threads through its image type via
// WithLogger. The teacher (goiso9660) just calls log.Printf directly;
// here that becomes a severity-tagged call into a caller-supplied sink
// so the client controls the threshold.
package msgsink

import "github.com/go-logr/logr"

// Severity names the symbolic thresholds from spec.md §6.
type Severity int

const (
	Never Severity = iota
	Fatal
	Sorry
	Warning
	Hint
	Note
	Update
	Debug
	All
)

func (s Severity) String() string {
	switch s {
	case Never:
		return "NEVER"
	case Fatal:
		return "FATAL"
	case Sorry:
		return "SORRY"
	case Warning:
		return "WARNING"
	case Hint:
		return "HINT"
	case Note:
		return "NOTE"
	case Update:
		return "UPDATE"
	case Debug:
		return "DEBUG"
	case All:
		return "ALL"
	default:
		return "UNKNOWN"
	}
}

// Sink is the message collaborator named in spec.md §6. Fatal and Sorry
// are reported as errors (they carry an error value); everything else is
// an informational message at the severity's logr V-level.
type Sink struct {
	log       logr.Logger
	threshold Severity
}

// New wraps a logr.Logger as a severity-aware sink. Messages whose
// severity is above threshold are dropped, so the zero threshold
// (Never) reports nothing, Fatal reports only fatal messages, and All
// reports every message.
func New(log logr.Logger, threshold Severity) *Sink {
	return &Sink{log: log, threshold: threshold}
}

// Discard returns a sink that drops every message, the default when a
// caller does not supply one (mirrors rstms-iso-kit's nil-logger default).
func Discard() *Sink {
	return New(logr.Discard(), Never)
}

// Report emits a message at the given severity, tagged with a component
// name (e.g. "ecma119", "rockridge") for the logr key/value pairs.
func (s *Sink) Report(sev Severity, component, msg string, keysAndValues ...interface{}) {
	if s == nil || sev > s.threshold {
		return
	}
	kv := append([]interface{}{"component", component, "severity", sev.String()}, keysAndValues...)
	switch sev {
	case Fatal, Sorry:
		s.log.Error(nil, msg, kv...)
	default:
		// higher Severity constants are progressively more verbose; map
		// them onto increasing logr V-levels.
		s.log.V(int(sev)).Info(msg, kv...)
	}
}

// ReportErr is Report for a message carrying an actual error value.
func (s *Sink) ReportErr(sev Severity, component string, err error, msg string, keysAndValues ...interface{}) {
	if s == nil || sev > s.threshold {
		return
	}
	kv := append([]interface{}{"component", component, "severity", sev.String()}, keysAndValues...)
	s.log.Error(err, msg, kv...)
}
