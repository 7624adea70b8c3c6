package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zapcore"
)

// logCounterCore counts every log record by severity level. It wraps the
// real core so counting stays in step with level filtering.
type logCounterCore struct {
	zapcore.Core
	counter *prometheus.CounterVec
}

// NewLogCounterCore returns a zapcore wrapper that bridges log records into
// the LogRecords counter. Attach via logger.WithCore.
func (m *Metrics) NewLogCounterCore(inner zapcore.Core) zapcore.Core {
	return &logCounterCore{Core: inner, counter: m.LogRecords}
}

func (c *logCounterCore) With(fields []zapcore.Field) zapcore.Core {
	return &logCounterCore{Core: c.Core.With(fields), counter: c.counter}
}

func (c *logCounterCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *logCounterCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	c.counter.WithLabelValues(entry.Level.String()).Inc()
	return c.Core.Write(entry, fields)
}
