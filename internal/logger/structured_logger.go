package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// LogLevel represents logging severity levels
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

// String returns string representation of log level
func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel accepts the names used in config files; unknown names map to INFO.
func ParseLevel(name string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	case "fatal":
		return FATAL
	default:
		return INFO
	}
}

func (l LogLevel) zerolog() zerolog.Level {
	switch l {
	case DEBUG:
		return zerolog.DebugLevel
	case WARN:
		return zerolog.WarnLevel
	case ERROR:
		return zerolog.ErrorLevel
	case FATAL:
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// StructuredLogger writes JSON lines through zerolog
type StructuredLogger struct {
	zl     zerolog.Logger
	closer io.Closer
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level        LogLevel
	Service      string
	Version      string
	Environment  string
	OutputPath   string
	EnableCaller bool
	// Output overrides OutputPath when set.
	Output io.Writer
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(config LoggerConfig) (*StructuredLogger, error) {
	var (
		output io.Writer
		closer io.Closer
	)

	switch {
	case config.Output != nil:
		output = config.Output
	case config.OutputPath == "" || config.OutputPath == "stdout":
		output = os.Stdout
	case config.OutputPath == "stderr":
		output = os.Stderr
	default:
		if err := os.MkdirAll(filepath.Dir(config.OutputPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(config.OutputPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output, closer = f, f
	}

	ctx := zerolog.New(output).
		Level(config.Level.zerolog()).
		With().
		Timestamp().
		Str("service", config.Service).
		Str("version", config.Version).
		Str("environment", config.Environment)
	if config.EnableCaller {
		ctx = ctx.CallerWithSkipFrameCount(4)
	}

	return &StructuredLogger{zl: ctx.Logger(), closer: closer}, nil
}

// Nop returns a logger that discards everything.
func Nop() *StructuredLogger {
	return &StructuredLogger{zl: zerolog.Nop()}
}

// With returns a child logger that adds fields to every entry.
func (sl *StructuredLogger) With(fields map[string]interface{}) *StructuredLogger {
	return &StructuredLogger{zl: sl.zl.With().Fields(fields).Logger()}
}

func (sl *StructuredLogger) log(ev *zerolog.Event, message string, fields map[string]interface{}) {
	if ev == nil {
		return
	}
	ev.Fields(fields).Msg(message)
}

// Debug logs debug messages
func (sl *StructuredLogger) Debug(message string, fields ...map[string]interface{}) {
	sl.log(sl.zl.Debug(), message, mergeFields(fields...))
}

// Info logs info messages
func (sl *StructuredLogger) Info(message string, fields ...map[string]interface{}) {
	sl.log(sl.zl.Info(), message, mergeFields(fields...))
}

// Warn logs warning messages
func (sl *StructuredLogger) Warn(message string, fields ...map[string]interface{}) {
	sl.log(sl.zl.Warn(), message, mergeFields(fields...))
}

// Error logs error messages
func (sl *StructuredLogger) Error(message string, err error, fields ...map[string]interface{}) {
	sl.log(sl.zl.Error().Err(err), message, mergeFields(fields...))
}

// Fatal logs fatal messages and exits
func (sl *StructuredLogger) Fatal(message string, err error, fields ...map[string]interface{}) {
	sl.log(sl.zl.WithLevel(zerolog.FatalLevel).Err(err), message, mergeFields(fields...))
	os.Exit(1)
}

// LogRequest logs HTTP request details
func (sl *StructuredLogger) LogRequest(c *gin.Context, duration time.Duration, fields ...map[string]interface{}) {
	ev := sl.zl.Info()
	if c.Writer.Status() >= 500 {
		ev = sl.zl.Error()
	}
	ev.Str("request_id", getRequestID(c)).
		Str("method", c.Request.Method).
		Str("path", c.Request.URL.Path).
		Int("status_code", c.Writer.Status()).
		Str("duration", duration.String()).
		Str("ip", c.ClientIP()).
		Str("user_agent", c.GetHeader("User-Agent")).
		Fields(mergeFields(fields...)).
		Msg("HTTP Request")
}

// LogBusinessEvent logs business-specific events
func (sl *StructuredLogger) LogBusinessEvent(event string, resource string, operation string, fields ...map[string]interface{}) {
	logFields := mergeFields(fields...)
	logFields["component"] = "business"
	logFields["operation"] = operation
	logFields["resource"] = resource

	sl.log(sl.zl.Info(), event, logFields)
}

// LogSecurityEvent logs security-related events
func (sl *StructuredLogger) LogSecurityEvent(event string, severity string, fields ...map[string]interface{}) {
	ev := sl.zl.Info()
	switch severity {
	case "high":
		ev = sl.zl.Error()
	case "medium":
		ev = sl.zl.Warn()
	}

	logFields := mergeFields(fields...)
	logFields["component"] = "security"
	logFields["severity"] = severity

	sl.log(ev, event, logFields)
}

// LogSystemEvent logs system-level events
func (sl *StructuredLogger) LogSystemEvent(event string, fields ...map[string]interface{}) {
	logFields := mergeFields(fields...)
	logFields["component"] = "system"

	sl.log(sl.zl.Info(), event, logFields)
}

// LogDeviceEvent logs printer and scanner link activity at debug level
func (sl *StructuredLogger) LogDeviceEvent(event string, device string, fields ...map[string]interface{}) {
	logFields := mergeFields(fields...)
	logFields["component"] = "device"
	logFields["device"] = device

	sl.log(sl.zl.Debug(), event, logFields)
}

// WithRequestContext returns a request-aware logger
func (sl *StructuredLogger) WithRequestContext(c *gin.Context) *RequestLogger {
	return &RequestLogger{
		logger: sl,
		ctx:    c,
	}
}

// mergeFields merges multiple field maps
func mergeFields(fields ...map[string]interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for _, field := range fields {
		for k, v := range field {
			result[k] = v
		}
	}
	return result
}

// getRequestID extracts or generates request ID
func getRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return fmt.Sprintf("%d", time.Now().UnixNano())
}

// RequestLogger provides request-aware logging
type RequestLogger struct {
	logger *StructuredLogger
	ctx    *gin.Context
}

// Info logs info with request context
func (rl *RequestLogger) Info(message string, fields ...map[string]interface{}) {
	rl.logger.Info(message, rl.enrichWithRequestContext(fields...))
}

// Warn logs warning with request context
func (rl *RequestLogger) Warn(message string, fields ...map[string]interface{}) {
	rl.logger.Warn(message, rl.enrichWithRequestContext(fields...))
}

// Error logs error with request context
func (rl *RequestLogger) Error(message string, err error, fields ...map[string]interface{}) {
	rl.logger.Error(message, err, rl.enrichWithRequestContext(fields...))
}

func (rl *RequestLogger) enrichWithRequestContext(fields ...map[string]interface{}) map[string]interface{} {
	enriched := mergeFields(fields...)
	enriched["request_id"] = getRequestID(rl.ctx)
	enriched["method"] = rl.ctx.Request.Method
	enriched["path"] = rl.ctx.Request.URL.Path
	enriched["ip"] = rl.ctx.ClientIP()
	return enriched
}

// LoggingMiddleware provides request logging middleware
func (sl *StructuredLogger) LoggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		if path == "/health" {
			c.Next()
			return
		}

		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = fmt.Sprintf("%d", start.UnixNano())
		}
		c.Set("request_id", requestID)
		c.Header("X-Request-ID", requestID)

		c.Next()

		fields := map[string]interface{}{
			"bytes_in":  c.Request.ContentLength,
			"bytes_out": c.Writer.Size(),
		}
		if raw := c.Request.URL.RawQuery; raw != "" {
			fields["query"] = raw
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		sl.LogRequest(c, time.Since(start), fields)
	}
}

// Close closes the logger output
func (sl *StructuredLogger) Close() error {
	if sl.closer != nil {
		return sl.closer.Close()
	}
	return nil
}

// Global logger instance
var GlobalLogger = Nop()

// InitializeLogger initializes the global logger
func InitializeLogger(config LoggerConfig) error {
	l, err := NewStructuredLogger(config)
	if err != nil {
		return err
	}
	GlobalLogger = l
	return nil
}
