package transport

import (
	"go.uber.org/zap"

	applog "studio/internal/log"
)

// LoggingTransport implements the Transport interface by logging every
// event at debug level.
type LoggingTransport struct {
	log *zap.SugaredLogger
}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	lt := &LoggingTransport{log: applog.Named("events")}
	lt.log.Infow("Transport: Using LoggingTransport")
	return lt
}

// Send logs the received data. Level meter events are too frequent to log.
func (lt *LoggingTransport) Send(data interface{}) error {
	if ev, ok := data.(Event); ok {
		if ev.Type != AudioLevel {
			lt.log.Debugw("event", "type", ev.Type, "data", ev.Data)
		}
		return nil
	}
	lt.log.Debugw("event", "type", "raw", "data", data)
	return nil // Logging transport never fails to "send"
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	lt.log.Debugw("close called")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
