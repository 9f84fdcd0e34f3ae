// Package logger — единый вывод логов dgtclock (zerolog) с учётом quiet и именованными компонентами.
package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Quiet при true отключает информационные и отладочные сообщения; Warn и Error выводятся всегда.
var Quiet bool

var (
	mu   sync.RWMutex
	base = newBase(os.Stderr, false).Level(zerolog.InfoLevel)
	root = Named("dgtclock")
)

func newBase(w io.Writer, json bool) zerolog.Logger {
	if !json {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.StampMilli}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

// SetOutput переключает вывод; json=false — человекочитаемый консольный формат.
func SetOutput(w io.Writer, json bool) {
	mu.Lock()
	defer mu.Unlock()
	lvl := base.GetLevel()
	base = newBase(w, json).Level(lvl)
}

// SetLevel задаёт минимальный уровень: trace, debug, info, warn, error.
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	mu.Lock()
	base = base.Level(lvl)
	mu.Unlock()
	return nil
}

// Level возвращает текущий уровень.
func Level() string {
	mu.RLock()
	defer mu.RUnlock()
	return base.GetLevel().String()
}

// Logger — логгер компонента; имя попадает в поле component.
type Logger struct {
	name string
}

// Named возвращает логгер компонента (dispatch, ser, i2c, web ...).
func Named(name string) *Logger {
	return &Logger{name: name}
}

func (l *Logger) event(level zerolog.Level) *zerolog.Event {
	mu.RLock()
	zl := base
	mu.RUnlock()
	return zl.WithLevel(level).Str("component", l.name)
}

// Debug — отладочная трассировка.
func (l *Logger) Debug(format string, args ...interface{}) {
	if Quiet {
		return
	}
	l.log(zerolog.DebugLevel, format, args...)
}

// Info выводит сообщение, если Quiet == false.
func (l *Logger) Info(format string, args ...interface{}) {
	if Quiet {
		return
	}
	l.log(zerolog.InfoLevel, format, args...)
}

// Warn выводится всегда.
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(zerolog.WarnLevel, format, args...)
}

// Error выводится всегда.
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(zerolog.ErrorLevel, format, args...)
}

func (l *Logger) log(level zerolog.Level, format string, args ...interface{}) {
	mu.RLock()
	enabled := level >= base.GetLevel()
	mu.RUnlock()
	if !enabled {
		return
	}
	l.event(level).Msgf(format, args...)
}

// Info выводит сообщение корневого логгера, если Quiet == false.
func Info(format string, args ...interface{}) {
	root.Info(format, args...)
}

// Debug — отладочное сообщение корневого логгера.
func Debug(format string, args ...interface{}) {
	root.Debug(format, args...)
}

// Warn — предупреждение корневого логгера.
func Warn(format string, args ...interface{}) {
	root.Warn(format, args...)
}

// Error выводит сообщение об ошибке всегда.
func Error(format string, args ...interface{}) {
	root.Error(format, args...)
}
