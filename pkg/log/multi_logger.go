package log

// MultiLogger sends events to multiple loggers, for example a SlogAdapter
// and a FileLogger at the same time. Nil loggers are skipped.
type MultiLogger struct {
	loggers []Logger
}

// NewMultiLogger creates a MultiLogger that sends events to all provided loggers.
func NewMultiLogger(loggers ...Logger) *MultiLogger {
	m := &MultiLogger{}
	for _, l := range loggers {
		if l != nil {
			m.loggers = append(m.loggers, l)
		}
	}
	return m
}

// Log sends the event to all configured loggers.
func (m *MultiLogger) Log(event Event) {
	for _, l := range m.loggers {
		l.Log(event)
	}
}

// Len returns the number of loggers events are sent to.
func (m *MultiLogger) Len() int { return len(m.loggers) }

var _ Logger = (*MultiLogger)(nil)
