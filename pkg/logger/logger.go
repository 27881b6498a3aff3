package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Leveled process logger shared by the API and the loader.
// Init(level) picks the threshold; the Gin middleware below replaces
// gin.Logger so request lines share the same format.

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var (
	mu     sync.RWMutex
	logger *log.Logger = log.New(os.Stdout, "", 0)
	level  Level       = LevelInfo
)

// ParseLevel maps debug|info|warn|error|fatal (any case) to a Level.
// Unknown input yields LevelInfo.
func ParseLevel(l string) Level {
	switch strings.ToLower(strings.TrimSpace(l)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	}
	return LevelInfo
}

// Init sets the global log level. Call early during startup.
func Init(l string) {
	mu.Lock()
	defer mu.Unlock()
	level = ParseLevel(l)
}

// SetOutput redirects log lines, e.g. to a buffer in tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	logger = log.New(w, "", 0)
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	case LevelFatal:
		return "fatal"
	}
	return "info"
}

func output(l Level, format string, v ...interface{}) {
	mu.RLock()
	lg, threshold := logger, level
	mu.RUnlock()
	if l < threshold && l != LevelFatal {
		return
	}
	lg.Printf("%s [%s] %s", time.Now().UTC().Format(time.RFC3339), strings.ToUpper(l.String()), fmt.Sprintf(format, v...))
}

func Debugf(format string, v ...interface{}) { output(LevelDebug, format, v...) }
func Infof(format string, v ...interface{})  { output(LevelInfo, format, v...) }
func Warnf(format string, v ...interface{})  { output(LevelWarn, format, v...) }
func Errorf(format string, v ...interface{}) { output(LevelError, format, v...) }

func Fatalf(format string, v ...interface{}) {
	output(LevelFatal, format, v...)
	os.Exit(1)
}

func Debug(v string) { Debugf("%s", v) }
func Info(v string)  { Infof("%s", v) }
func Warn(v string)  { Warnf("%s", v) }
func Error(v string) { Errorf("%s", v) }

// LevelString returns the current level as text.
func LevelString() string {
	mu.RLock()
	defer mu.RUnlock()
	return level.String()
}

// GinMiddleware logs one line per request: method, path, status, latency,
// client ip and, when authenticated, the token subject. 5xx responses are
// logged at error level, 4xx at warn.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		status := c.Writer.Status()
		line := fmt.Sprintf("%s %s status=%d latency=%s ip=%s", c.Request.Method, path, status, time.Since(start).Round(time.Microsecond), c.ClientIP())
		if sub := c.GetString("sub"); sub != "" {
			line += " sub=" + sub
		}
		if len(c.Errors) > 0 {
			line += " errors=" + c.Errors.String()
		}
		switch {
		case status >= 500:
			Error(line)
		case status >= 400:
			Warn(line)
		default:
			Info(line)
		}
	}
}
