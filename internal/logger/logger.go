// Package logger builds the node's zap logger: console plus rotating
// JSON file output, and a bridging zapcore.Core that forwards entries
// to the monitor's websocket hub for live log tailing. It is a direct
// descendant of the teacher's logger package, narrowed from flow/node
// context helpers to this node's interface/alias context and retargeted
// at the monitor hub instead of a frontend LogPanel.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// BroadcastFunc is called for each log entry that should reach the
// monitor's live log tail.
type BroadcastFunc func(level, message string, fields map[string]interface{})

var (
	globalLogger *zap.Logger
	broadcastFn  BroadcastFunc
	mu           sync.RWMutex
)

// Config holds logger configuration.
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	FilePath   string // rotating log file path (empty = no file logging)
	MaxSizeMB  int
	MaxBackups int
}

// DefaultConfig returns sensible defaults for an edge node.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "console",
		MaxSizeMB:  50,
		MaxBackups: 5,
	}
}

// Init builds and installs the global logger from cfg.
func Init(cfg Config) error {
	logLevel, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		logLevel = zapcore.InfoLevel
	}

	encoderCfg := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	var cores []zapcore.Core

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)
	if cfg.Format == "json" {
		consoleEncoder = zapcore.NewJSONEncoder(encoderCfg)
	}
	cores = append(cores, zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), logLevel))

	if cfg.FilePath != "" {
		if mkErr := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); mkErr != nil {
			return fmt.Errorf("logger: create log directory: %w", mkErr)
		}
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
		}
		jsonEncoder := zapcore.NewJSONEncoder(encoderCfg)
		cores = append(cores, zapcore.NewCore(jsonEncoder, zapcore.AddSync(fileWriter), logLevel))
	}

	cores = append(cores, &monitorBridgeCore{level: logLevel})

	l := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddCallerSkip(1))

	mu.Lock()
	globalLogger = l
	mu.Unlock()

	return nil
}

// SetBroadcaster sets the function the monitor bridge forwards entries
// to. Call after the monitor's websocket hub is up.
func SetBroadcaster(fn BroadcastFunc) {
	mu.Lock()
	defer mu.Unlock()
	broadcastFn = fn
}

// Get returns the global logger, building a development default if Init
// was never called.
func Get() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger == nil {
		l, _ := zap.NewDevelopment()
		return l
	}
	return globalLogger
}

// Sync flushes buffered log entries.
func Sync() error {
	mu.RLock()
	defer mu.RUnlock()
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}

func Info(msg string, fields ...zap.Field)  { Get().Info(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Get().Error(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Get().Warn(msg, fields...) }
func Debug(msg string, fields ...zap.Field) { Get().Debug(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { Get().Fatal(msg, fields...) }

// WithInterface returns a logger tagged with a given interface's local
// NodeID and current alias, for a node running more than one interface.
func WithInterface(nodeID, alias string) *zap.Logger {
	return Get().With(zap.String("node_id", nodeID), zap.String("alias", alias))
}

// Writer returns an io.Writer that writes to the logger at Info level,
// for bridging stdlib-log-only dependencies.
func Writer() io.Writer {
	return &logWriter{}
}

type logWriter struct{}

func (w *logWriter) Write(p []byte) (n int, err error) {
	msg := string(p)
	if len(msg) > 0 && msg[len(msg)-1] == '\n' {
		msg = msg[:len(msg)-1]
	}
	Get().Info(msg)
	return len(p), nil
}

// monitorBridgeCore is a zapcore.Core that forwards entries to the
// monitor's live log tail instead of writing them anywhere itself.
type monitorBridgeCore struct {
	level  zapcore.Level
	fields []zapcore.Field
}

func (c *monitorBridgeCore) Enabled(lvl zapcore.Level) bool {
	return lvl >= c.level
}

func (c *monitorBridgeCore) With(fields []zapcore.Field) zapcore.Core {
	combined := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	combined = append(combined, c.fields...)
	combined = append(combined, fields...)
	return &monitorBridgeCore{level: c.level, fields: combined}
}

func (c *monitorBridgeCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		ce = ce.AddCore(entry, c)
	}
	return ce
}

func (c *monitorBridgeCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	mu.RLock()
	fn := broadcastFn
	mu.RUnlock()
	if fn == nil {
		return nil
	}

	level := entry.Level.String()
	extra := make(map[string]interface{})

	allFields := append(c.fields, fields...)
	for _, f := range allFields {
		switch f.Type {
		case zapcore.StringType:
			extra[f.Key] = f.String
		case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type:
			extra[f.Key] = f.Integer
		case zapcore.Float64Type:
			extra[f.Key] = float64(f.Integer)
		case zapcore.BoolType:
			extra[f.Key] = f.Integer == 1
		case zapcore.DurationType:
			extra[f.Key] = time.Duration(f.Integer).String()
		case zapcore.ErrorType:
			if f.Interface != nil {
				extra[f.Key] = fmt.Sprintf("%v", f.Interface)
			}
		}
	}

	fn(level, entry.Message, extra)
	return nil
}

func (c *monitorBridgeCore) Sync() error { return nil }
