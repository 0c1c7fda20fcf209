package logger

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var zapLevels = map[Level]zapcore.Level{
	DEBUG: zapcore.DebugLevel,
	INFO:  zapcore.InfoLevel,
	WARN:  zapcore.WarnLevel,
	ERROR: zapcore.ErrorLevel,
}

// ParseLevel maps "debug", "info", "warn" and "error" to a Level.
// Anything else is INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// Logger provides structured JSON logging with optional PII redaction.
type Logger struct {
	mu        sync.RWMutex
	level     zap.AtomicLevel
	base      *zap.Logger
	redactPII bool
}

var defaultLogger = New("mailroom", INFO, os.Stderr)

// New builds a logger writing JSON lines to w. serviceName is attached to
// every entry as service_name.
func New(serviceName string, level Level, w zapcore.WriteSyncer) *Logger {
	atom := zap.NewAtomicLevelAt(zapLevels[level])

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "time"
	encCfg.MessageKey = "msg"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	encCfg.EncodeDuration = zapcore.StringDurationEncoder

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.Lock(w), atom)
	base := zap.New(core)
	if serviceName != "" {
		base = base.With(zap.String("service_name", serviceName))
	}
	return &Logger{level: atom, base: base, redactPII: true}
}

// Default returns the process-wide logger.
func Default() *Logger { return defaultLogger }

// SetDefault replaces the process-wide logger.
func SetDefault(l *Logger) {
	if l != nil {
		defaultLogger = l
	}
}

// Init configures the process-wide logger for a binary.
func Init(serviceName, level string) {
	SetDefault(New(serviceName, ParseLevel(level), os.Stderr))
}

// Sync flushes buffered entries of the default logger.
func Sync() { _ = defaultLogger.base.Sync() }

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) { defaultLogger.level.SetLevel(zapLevels[l]) }

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) {
	defaultLogger.mu.Lock()
	defaultLogger.redactPII = r
	defaultLogger.mu.Unlock()
}

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { defaultLogger.log(DEBUG, msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { defaultLogger.log(INFO, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { defaultLogger.log(WARN, msg, fields...) }

// Error emits an ERROR-level structured log entry.
func Error(msg string, fields ...interface{}) { defaultLogger.log(ERROR, msg, fields...) }

// Info emits an INFO-level entry on l.
func (l *Logger) Info(msg string, fields ...interface{}) { l.log(INFO, msg, fields...) }

// Warn emits a WARN-level entry on l.
func (l *Logger) Warn(msg string, fields ...interface{}) { l.log(WARN, msg, fields...) }

// Error emits an ERROR-level entry on l.
func (l *Logger) Error(msg string, fields ...interface{}) { l.log(ERROR, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	ce := l.base.Check(zapLevels[level], msg)
	if ce == nil {
		return
	}

	l.mu.RLock()
	redact := l.redactPII
	l.mu.RUnlock()

	// Parse key-value pairs from fields
	zf := make([]zap.Field, 0, len(fields)/2)
	for i := 0; i < len(fields)-1; i += 2 {
		zf = append(zf, toField(fmt.Sprintf("%v", fields[i]), fields[i+1], redact))
	}
	ce.Write(zf...)
}

// toField keeps numbers, bools, durations and times typed. Everything else
// is logged as a string and redacted when redact is set.
func toField(key string, v interface{}, redact bool) zap.Field {
	switch val := v.(type) {
	case int:
		return zap.Int(key, val)
	case int32:
		return zap.Int32(key, val)
	case int64:
		return zap.Int64(key, val)
	case uint:
		return zap.Uint(key, val)
	case uint64:
		return zap.Uint64(key, val)
	case float64:
		return zap.Float64(key, val)
	case bool:
		return zap.Bool(key, val)
	case time.Duration:
		return zap.Duration(key, val)
	case time.Time:
		return zap.Time(key, val)
	}

	var str string
	switch val := v.(type) {
	case error:
		if val != nil {
			str = val.Error()
		}
	case string:
		str = val
	default:
		str = fmt.Sprintf("%v", v)
	}
	if redact {
		str = redactPIIValue(key, str)
	}
	return zap.String(key, str)
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	// Redact email fields
	if strings.Contains(key, "email") || strings.Contains(key, "recipient") {
		return RedactEmail(val)
	}
	// Redact any embedded emails in generic fields
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
