package logger

// Logger is the minimal structured logging surface the authorizer needs.
// Implementations take alternating key/value pairs after the message.
type Logger interface {
	Error(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Debug(msg string, keyvals ...any)
}
