package logging

import (
	"fmt"

	"github.com/rs/zerolog"
)

// Leveled is the printf style logger handed to background work.
type Leveled interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Sink receives one formatted line.
type Sink func(level zerolog.Level, msg string)

// Zerolog writes every line to l at its level.
func Zerolog(l zerolog.Logger) Sink {
	return func(level zerolog.Level, msg string) {
		l.WithLevel(level).Msg(msg)
	}
}

var _ Leveled = Tee(nil)

// Tee formats a line once and passes it to every sink in order.
type Tee []Sink

func (t Tee) Debug(format string, args ...any) { t.emit(zerolog.DebugLevel, format, args) }
func (t Tee) Info(format string, args ...any)  { t.emit(zerolog.InfoLevel, format, args) }
func (t Tee) Warn(format string, args ...any)  { t.emit(zerolog.WarnLevel, format, args) }
func (t Tee) Error(format string, args ...any) { t.emit(zerolog.ErrorLevel, format, args) }

func (t Tee) emit(level zerolog.Level, format string, args []any) {
	msg := fmt.Sprintf(format, args...)
	for _, sink := range t {
		sink(level, msg)
	}
}
