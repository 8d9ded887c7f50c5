package transport

import (
	applog "smoothfade/internal/log"
)

// LoggingTransport implements the Transport interface by logging data at
// debug level.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	applog.Infof("Transport: Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs the received data.
func (lt *LoggingTransport) Send(data any) error {
	if s, ok := data.(Snapshot); ok {
		applog.Debugf("LOG_TRANSPORT: t=%.3f value=%.5f %s -> %.5f by %.3f",
			s.Time, s.Value, s.Direction, s.Target, s.EndTime)
		return nil
	}
	applog.Debugf("LOG_TRANSPORT: Received (%T): %+v", data, data)
	return nil // Logging transport never fails to "send"
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	applog.Debugf("LOG_TRANSPORT: Close called.")
	return nil
}

// Ensure LoggingTransport satisfies the interface at compile time.
var _ Transport = (*LoggingTransport)(nil)
