package telemetry

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stdout, zerolog.InfoLevel)
)

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.TimestampFieldName = "ts"
	zerolog.MessageFieldName = "msg"
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Configure sets the output writer and minimum level. An unknown level keeps info.
func Configure(w io.Writer, level string) {
	if w == nil {
		w = os.Stdout
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	mu.Lock()
	logger = newLogger(w, lvl)
	mu.Unlock()
}

// SetOutput redirects log output, keeping the current level.
func SetOutput(w io.Writer) {
	mu.Lock()
	logger = newLogger(w, logger.GetLevel())
	mu.Unlock()
}

// Debug writes a debug-level log line with the given fields.
func Debug(msg string, fields map[string]any) {
	write(zerolog.DebugLevel, msg, fields)
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	write(zerolog.InfoLevel, msg, fields)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	write(zerolog.WarnLevel, msg, fields)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	write(zerolog.ErrorLevel, msg, fields)
}

func write(level zerolog.Level, msg string, fields map[string]any) {
	mu.RLock()
	l := logger
	mu.RUnlock()
	l.WithLevel(level).Fields(fields).Msg(msg)
}
