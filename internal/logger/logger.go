package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"
)

// LogLevel represents different logging levels
type LogLevel int

const (
	// DEBUG level for frame-by-frame stream details
	DEBUG LogLevel = iota
	// INFO level for request lifecycle messages
	INFO
	// WARN level for abnormal but recoverable conditions
	WARN
	// ERROR level for failed requests
	ERROR
	// FATAL level for startup failures; exits the process
	FATAL
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

func (l LogLevel) String() string {
	return levelNames[l]
}

// ParseLevel converts a config value such as "debug" into a LogLevel
func ParseLevel(s string) (LogLevel, error) {
	for level, name := range levelNames {
		if strings.EqualFold(strings.TrimSpace(s), name) {
			return level, nil
		}
	}
	if strings.EqualFold(s, "warning") {
		return WARN, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", s)
}

// Logger is a leveled logger tagged with a component name.
// Loggers derived with WithComponent share level and output with their parent.
type Logger struct {
	shared    *sink
	component string
}

type sink struct {
	mu     sync.Mutex
	level  LogLevel
	logger *log.Logger
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// New creates a logger writing to w
func New(w io.Writer, level LogLevel, component string) *Logger {
	return &Logger{
		shared: &sink{
			level:  level,
			logger: log.New(w, "", log.LstdFlags|log.Lmicroseconds),
		},
		component: component,
	}
}

// InitLogger initializes the default logger
func InitLogger(level LogLevel, component string) {
	once.Do(func() {
		defaultLogger = New(os.Stdout, level, component)
	})
}

// GetLogger returns the default logger instance
func GetLogger() *Logger {
	if defaultLogger == nil {
		InitLogger(INFO, "yuanbao2api")
	}
	return defaultLogger
}

// WithComponent creates a new logger with the specified component name
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{shared: l.shared, component: component}
}

// WithError returns a logger whose messages carry err
func (l *Logger) WithError(err error) *Logger {
	return &Logger{shared: l.shared, component: fmt.Sprintf("%s: %v", l.component, err)}
}

// SetLevel sets the logging level for this logger and everything derived from it
func (l *Logger) SetLevel(level LogLevel) {
	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()
	l.shared.level = level
}

// SetOutput redirects every logger sharing this one's sink
func (l *Logger) SetOutput(w io.Writer) {
	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()
	l.shared.logger.SetOutput(w)
}

// Level reports the current level
func (l *Logger) Level() LogLevel {
	l.shared.mu.Lock()
	defer l.shared.mu.Unlock()
	return l.shared.level
}

// Writer exposes the output as an io.Writer at INFO level, for libraries that
// want a plain writer (gin's access log)
func (l *Logger) Writer() io.Writer {
	return writerFunc(func(p []byte) (int, error) {
		l.Info("%s", strings.TrimRight(string(p), "\n"))
		return len(p), nil
	})
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	s := l.shared
	s.mu.Lock()
	defer s.mu.Unlock()

	if level < s.level {
		return
	}

	msg := fmt.Sprintf(format, args...)
	s.logger.Printf("[%s][%s] %s", levelNames[level], l.component, msg)

	if level == FATAL {
		os.Exit(1)
	}
}

// Debug logs debug level messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.log(DEBUG, format, args...)
}

// Info logs info level messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.log(INFO, format, args...)
}

// Warn logs warning level messages
func (l *Logger) Warn(format string, args ...interface{}) {
	l.log(WARN, format, args...)
}

// Error logs error level messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.log(ERROR, format, args...)
}

// Fatal logs fatal level messages and exits
func (l *Logger) Fatal(format string, args ...interface{}) {
	l.log(FATAL, format, args...)
}
