// Package logger provides structured logging for photon-sync on top of zap.
package logger

// Fields is the key/value set passed to WithFields for structured logging.
type Fields map[string]interface{}

// Logger is the logging contract used across the codebase.
type Logger interface {
	Debugf(format string, args ...interface{})

	Infof(format string, args ...interface{})

	Warnf(format string, args ...interface{})

	Errorf(format string, args ...interface{})

	Fatalf(format string, args ...interface{})

	WithFields(fields Fields) Logger
}

// Config controls where and how verbosely log output is written.
type Config struct {
	// Level is one of debug, info, warn, error, fatal.
	Level string
	// Location is "stdout" or a file path. File output is rotated.
	Location string
}

// New builds a Logger from the given configuration.
func New(cfg *Config) Logger {
	if cfg == nil {
		cfg = &Config{Level: "info", Location: "stdout"}
	}
	return newZapLogger(cfg)
}

// Discard returns a Logger that drops everything. Useful in tests.
func Discard() Logger {
	return newNopLogger()
}
