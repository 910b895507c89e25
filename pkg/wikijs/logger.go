package wikijs

// Logger interface for logging.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
}

// NopLogger discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, map[string]interface{}) {}

func (NopLogger) Info(string, map[string]interface{}) {}

func (NopLogger) Warn(string, map[string]interface{}) {}

func (NopLogger) Error(string, map[string]interface{}) {}
