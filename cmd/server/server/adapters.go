// Package server wires the NL2SQL HTTP server together.
package server

import (
	"time"

	"github.com/rs/zerolog"
)

// loggerAdapter adapts zerolog to the handlers/services Logger interface.
type loggerAdapter struct {
	logger zerolog.Logger
}

func (l *loggerAdapter) Debug(msg string, keysAndValues ...interface{}) {
	event := l.logger.Debug()
	l.addFields(event, keysAndValues...)
	event.Msg(msg)
}

func (l *loggerAdapter) Info(msg string, keysAndValues ...interface{}) {
	event := l.logger.Info()
	l.addFields(event, keysAndValues...)
	event.Msg(msg)
}

func (l *loggerAdapter) Warn(msg string, keysAndValues ...interface{}) {
	event := l.logger.Warn()
	l.addFields(event, keysAndValues...)
	event.Msg(msg)
}

func (l *loggerAdapter) Error(msg string, keysAndValues ...interface{}) {
	event := l.logger.Error()
	l.addFields(event, keysAndValues...)
	event.Msg(msg)
}

func (l *loggerAdapter) addFields(event *zerolog.Event, keysAndValues ...interface{}) {
	for i := 0; i < len(keysAndValues); i += 2 {
		if i+1 < len(keysAndValues) {
			key := keysAndValues[i].(string)
			value := keysAndValues[i+1]

			switch v := value.(type) {
			case string:
				event.Str(key, v)
			case int:
				event.Int(key, v)
			case int32:
				event.Int32(key, v)
			case int64:
				event.Int64(key, v)
			case float64:
				event.Float64(key, v)
			case bool:
				event.Bool(key, v)
			case error:
				event.Err(v)
			case time.Duration:
				event.Dur(key, v)
			case time.Time:
				event.Time(key, v)
			default:
				event.Interface(key, v)
			}
		}
	}
}
