package etsyapi

import (
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"
)

// Logger receives debug output when debug logging is enabled. Key/value
// pairs alternate in keysAndValues.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// SimpleLogger writes logfmt-ish lines to stderr. Meant for development;
// production hosts plug in their own logger (see NewZapLogger).
type SimpleLogger struct {
	l *log.Logger
}

// NewSimpleLogger creates a console logger.
func NewSimpleLogger() *SimpleLogger {
	return &SimpleLogger{l: log.New(os.Stderr, "etsyapi ", log.LstdFlags|log.Lmsgprefix)}
}

func (s *SimpleLogger) Debug(msg string, kv ...any) { s.write("DEBUG", msg, kv) }
func (s *SimpleLogger) Info(msg string, kv ...any)  { s.write("INFO", msg, kv) }
func (s *SimpleLogger) Warn(msg string, kv ...any)  { s.write("WARN", msg, kv) }
func (s *SimpleLogger) Error(msg string, kv ...any) { s.write("ERROR", msg, kv) }

func (s *SimpleLogger) write(level, msg string, kv []any) {
	line := level + " " + msg
	for i := 0; i+1 < len(kv); i += 2 {
		line += fmt.Sprintf(" %v=%v", kv[i], kv[i+1])
	}
	if len(kv)%2 == 1 {
		line += fmt.Sprintf(" %v", kv[len(kv)-1])
	}
	s.l.Print(line)
}

// zapLogger adapts a zap.Logger to the Logger interface so host apps that
// standardize on zap can pass their logger straight through.
type zapLogger struct {
	s *zap.SugaredLogger
}

// NewZapLogger wraps a zap logger. The caller keeps ownership (and Sync
// responsibility).
func NewZapLogger(l *zap.Logger) Logger {
	return &zapLogger{s: l.Sugar()}
}

func (z *zapLogger) Debug(msg string, kv ...any) { z.s.Debugw(msg, kv...) }
func (z *zapLogger) Info(msg string, kv ...any)  { z.s.Infow(msg, kv...) }
func (z *zapLogger) Warn(msg string, kv ...any)  { z.s.Warnw(msg, kv...) }
func (z *zapLogger) Error(msg string, kv ...any) { z.s.Errorw(msg, kv...) }
