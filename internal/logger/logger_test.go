package logger

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, INFO, "test")

	tests := []struct {
		name     string
		logFunc  func(format string, args ...interface{})
		message  string
		wantLog  bool
		contains string
	}{
		{
			name:     "Debug message below INFO level",
			logFunc:  l.Debug,
			message:  "debug message",
			wantLog:  false,
			contains: "[DEBUG]",
		},
		{
			name:     "Info message at INFO level",
			logFunc:  l.Info,
			message:  "info message",
			wantLog:  true,
			contains: "[INFO]",
		},
		{
			name:     "Warning message above INFO level",
			logFunc:  l.Warn,
			message:  "warning message",
			wantLog:  true,
			contains: "[WARN]",
		},
		{
			name:     "Error message above INFO level",
			logFunc:  l.Error,
			message:  "error message",
			wantLog:  true,
			contains: "[ERROR]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf.Reset()
			tt.logFunc(tt.message)

			output := buf.String()
			if tt.wantLog {
				assert.Contains(t, output, tt.contains)
				assert.Contains(t, output, tt.message)
				assert.Contains(t, output, "[test]")
			} else {
				assert.Empty(t, output)
			}
		})
	}
}

func TestLoggerSharesLevelWithChildren(t *testing.T) {
	var buf bytes.Buffer
	parent := New(&buf, INFO, "parent")
	child := parent.WithComponent("child")

	child.Debug("hidden")
	assert.Empty(t, buf.String())

	parent.SetLevel(DEBUG)
	child.Debug("frame %d", 3)
	assert.Contains(t, buf.String(), "[DEBUG][child] frame 3")
	assert.Equal(t, DEBUG, child.Level())
}

func TestLoggerWithError(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, INFO, "translator").WithError(fmt.Errorf("reset by peer"))
	l.Error("stream aborted")
	assert.Contains(t, buf.String(), "[translator: reset by peer] stream aborted")
}

func TestLoggerWriter(t *testing.T) {
	var buf bytes.Buffer
	l := New(&buf, INFO, "http")
	n, err := l.Writer().Write([]byte("GET /v1/models 200\n"))
	require.NoError(t, err)
	assert.Equal(t, len("GET /v1/models 200\n"), n)
	assert.True(t, strings.HasSuffix(buf.String(), "[INFO][http] GET /v1/models 200\n"))
}

func TestLoggerSetOutput(t *testing.T) {
	var first, second bytes.Buffer
	l := New(&first, INFO, "root")
	child := l.WithComponent("child")

	l.SetOutput(&second)
	child.Info("moved")

	assert.Empty(t, first.String())
	assert.Contains(t, second.String(), "[INFO][child] moved")
}

func TestParseLevel(t *testing.T) {
	for input, want := range map[string]LogLevel{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warn":    WARN,
		"warning": WARN,
		" error ": ERROR,
	} {
		got, err := ParseLevel(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLogLevelNames(t *testing.T) {
	assert.Equal(t, "DEBUG", DEBUG.String())
	assert.Equal(t, "INFO", INFO.String())
	assert.Equal(t, "WARN", WARN.String())
	assert.Equal(t, "ERROR", ERROR.String())
	assert.Equal(t, "FATAL", FATAL.String())
}

func TestInitLoggerSingleton(t *testing.T) {
	defaultLogger = nil

	for i := 0; i < 3; i++ {
		InitLogger(DEBUG, "test")
	}

	logger1 := GetLogger()
	logger2 := GetLogger()
	assert.Same(t, logger1, logger2)
}
