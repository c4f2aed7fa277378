// Package logging wraps zap with key-based redaction so form values and credentials never reach
// the log stream.
package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const redacted = "[REDACTED]"

// Logger is a sugared zap logger whose key/value pairs pass through redaction.
type Logger struct {
	sugar  *zap.SugaredLogger
	redact bool
	salt   string
}

// New builds a logger. mode is "prod" for JSON output, anything else for console output.
// level is a zap level name; empty means info.
func New(mode, level string) (*Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	zl, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return wrap(zl), nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return wrap(zap.NewNop())
}

// FromZap wraps an existing zap logger, e.g. an observer core in tests.
func FromZap(zl *zap.Logger) *Logger {
	return wrap(zl)
}

func wrap(zl *zap.Logger) *Logger {
	return &Logger{
		sugar:  zl.Sugar(),
		redact: redactionEnabled(),
		salt:   strings.TrimSpace(os.Getenv("LOG_HASH_SALT")),
	}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() {
	_ = l.sugar.Sync()
}

func (l *Logger) Debug(msg string, kv ...any) { l.sugar.Debugw(msg, l.sanitize(kv)...) }
func (l *Logger) Info(msg string, kv ...any)  { l.sugar.Infow(msg, l.sanitize(kv)...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.sugar.Warnw(msg, l.sanitize(kv)...) }
func (l *Logger) Error(msg string, kv ...any) { l.sugar.Errorw(msg, l.sanitize(kv)...) }

// With returns a child logger carrying the given pairs on every entry.
func (l *Logger) With(kv ...any) *Logger {
	return &Logger{sugar: l.sugar.With(l.sanitize(kv)...), redact: l.redact, salt: l.salt}
}

func (l *Logger) sanitize(kv []any) []any {
	if len(kv) == 0 || !l.redact {
		return kv
	}
	out := make([]any, 0, len(kv))
	for i := 0; i < len(kv); i += 2 {
		if i == len(kv)-1 {
			out = append(out, kv[i])
			break
		}
		key := fmt.Sprint(kv[i])
		out = append(out, key, l.sanitizeValue(strings.ToLower(strings.TrimSpace(key)), kv[i+1]))
	}
	return out
}

func (l *Logger) sanitizeValue(key string, val any) any {
	if key != "" {
		if IsSensitiveKey(key) {
			return redacted
		}
		if isHashKey(key) {
			return l.hash(val)
		}
	}
	switch v := val.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, inner := range v {
			out[k] = l.sanitizeValue(strings.ToLower(k), inner)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, inner := range v {
			out[i] = l.sanitizeValue("", inner)
		}
		return out
	}
	return val
}

// IsSensitiveKey reports whether values stored under key must never be logged or persisted.
func IsSensitiveKey(key string) bool {
	key = strings.ToLower(key)
	for _, marker := range []string{"password", "secret", "token", "cookie", "api_key", "apikey", "authorization", "email", "storage_state"} {
		if strings.Contains(key, marker) {
			return true
		}
	}
	return false
}

func isHashKey(key string) bool {
	return strings.Contains(key, "user_id") || strings.Contains(key, "actor_id") || strings.Contains(key, "session_id")
}

func (l *Logger) hash(val any) string {
	raw := strings.TrimSpace(fmt.Sprint(val))
	if raw == "" || val == nil {
		return ""
	}
	h := sha256.New()
	h.Write([]byte(l.salt))
	h.Write([]byte(raw))
	return "hash:" + hex.EncodeToString(h.Sum(nil))[:12]
}

func redactionEnabled() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("LOG_REDACTION_ENABLED"))) {
	case "0", "false", "no", "off":
		return false
	}
	return true
}
